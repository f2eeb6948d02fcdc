// Package logging configures the global zerolog logger and hands out loggers
// scoped to the editor's components, transcripts and segments.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	TimeFormat string // zerolog.TimeFieldFormat for json output
	// Output defaults to stdout.
	Output io.Writer
}

// DefaultConfig returns the service defaults: info level JSON on stdout.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "json",
		TimeFormat: time.RFC3339Nano,
	}
}

// Init replaces the global logger. Unknown levels fall back to info.
func Init(cfg Config) {
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()
}

// Logger returns the global logger.
func Logger() zerolog.Logger {
	return log.Logger
}

// WithComponent tags log lines with the subsystem that wrote them.
func WithComponent(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithTranscript scopes a logger to one transcript.
func WithTranscript(transcriptID string) zerolog.Logger {
	return log.With().Str("transcriptId", transcriptID).Logger()
}

// WithSegment scopes a logger to one segment of a transcript. An empty
// segmentID is omitted.
func WithSegment(transcriptID, segmentID string) zerolog.Logger {
	ctx := log.With().Str("transcriptId", transcriptID)
	if segmentID != "" {
		ctx = ctx.Str("segmentId", segmentID)
	}
	return ctx.Logger()
}

// WithEdit scopes a logger to one edit of a transcript.
func WithEdit(transcriptID, editType string, segmentIDs []string) zerolog.Logger {
	return log.With().
		Str("transcriptId", transcriptID).
		Str("editType", editType).
		Strs("segmentIds", segmentIDs).
		Logger()
}
