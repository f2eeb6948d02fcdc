// Audit Viewer - prints editor audit events as they are published.
// Consumes the edit and confirmation topics from Kafka.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"transcript-editor-service/internal/events"
	"transcript-editor-service/internal/models"
	"transcript-editor-service/internal/observability/logging"
)

func consumeKafka(ctx context.Context, brokers []string, topic string, since time.Duration) {
	// Partition reader without consumer group (works better through port-forward)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	logger := log.With().Str("topic", topic).Logger()
	if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
		logger.Warn().Err(err).Msg("Failed to rewind, reading from the current offset")
	}
	logger.Info().Dur("since", since).Msg("Consuming audit events")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error().Err(err).Msg("Kafka read error")
			time.Sleep(time.Second)
			continue
		}
		printEvent(logger, msg.Value)
	}
}

func printEvent(logger zerolog.Logger, value []byte) {
	var head struct {
		EventType string `json:"eventType"`
	}
	if err := json.Unmarshal(value, &head); err != nil {
		logger.Warn().Err(err).Msg("Undecodable message")
		return
	}

	switch head.EventType {
	case events.EventTranscriptConfirmed:
		var ev models.TranscriptConfirmed
		if err := json.Unmarshal(value, &ev); err != nil {
			logger.Warn().Err(err).Msg("Undecodable confirmation")
			return
		}
		logger.Info().
			Str("transcriptId", ev.TranscriptID).
			Time("at", time.UnixMilli(ev.Timestamp)).
			Msg("Transcript confirmed")
	default:
		var ev models.EditEvent
		if err := json.Unmarshal(value, &ev); err != nil {
			logger.Warn().Err(err).Msg("Undecodable edit event")
			return
		}
		logger.Info().
			Str("event", ev.EventType).
			Str("transcriptId", ev.TranscriptID).
			Str("editType", ev.EditType).
			Strs("segments", ev.SegmentIDs).
			Bool("persisted", ev.Persisted).
			Msg("Edit")
	}
}

func main() {
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topicEdits := flag.String("topic-edits", "transcript.edits", "Edit events topic")
	topicConfirmed := flag.String("topic-confirmed", "transcript.confirmed", "Confirmation topic")
	since := flag.Duration("since", time.Hour, "How far back to start reading")
	flag.Parse()

	logging.Init(logging.Config{Level: "info", Format: "console", TimeFormat: time.RFC3339})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	list := strings.Split(*brokers, ",")
	var wg sync.WaitGroup
	for _, topic := range []string{*topicEdits, *topicConfirmed} {
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			consumeKafka(ctx, list, topic, *since)
		}(topic)
	}
	wg.Wait()
}
