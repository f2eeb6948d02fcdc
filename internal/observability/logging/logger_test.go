package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func capture(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})
	var buf bytes.Buffer
	Init(Config{Level: level, Format: "json", Output: &buf})
	return &buf
}

func TestInit_LevelFallback(t *testing.T) {
	capture(t, "loud")
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("expected info level, got %s", zerolog.GlobalLevel())
	}
}

func TestWithEdit_Fields(t *testing.T) {
	buf := capture(t, "debug")

	logger := WithEdit("t1", "merge", []string{"a", "b"})
	logger.Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode: %v (%s)", err, buf.String())
	}
	if line["transcriptId"] != "t1" || line["editType"] != "merge" {
		t.Errorf("missing edit fields: %v", line)
	}
	if ids, ok := line["segmentIds"].([]any); !ok || len(ids) != 2 {
		t.Errorf("expected two segment ids, got %v", line["segmentIds"])
	}
}

func TestWithSegment_OmitsEmptySegment(t *testing.T) {
	buf := capture(t, "info")

	logger := WithSegment("t1", "")
	logger.Info().Msg("x")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := line["segmentId"]; ok {
		t.Errorf("expected no segmentId, got %v", line)
	}
}
