// Package events publishes editor audit events.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"transcript-editor-service/internal/models"
	"transcript-editor-service/internal/observability/metrics"
)

// Event types carried in the eventType field and header.
const (
	EventEditCommitted       = "transcript.edit.committed"
	EventEditUndone          = "transcript.edit.undone"
	EventEditRedone          = "transcript.edit.redone"
	EventTranscriptConfirmed = "transcript.confirmed"
)

// Publisher publishes edit and confirmation events to separate Kafka topics.
type Publisher struct {
	writerEdits     *kafka.Writer
	writerConfirmed *kafka.Writer
	principal       string
	topicEdits      string
	topicConfirmed  string
	enabled         bool
	metrics         *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers        []string
	TopicEdits     string
	TopicConfirmed string
	Principal      string
	Enabled        bool
}

// New creates a Kafka event publisher. Without brokers it runs in log-only mode.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:      cfg.Principal,
			topicEdits:     cfg.TopicEdits,
			topicConfirmed: cfg.TopicConfirmed,
			enabled:        false,
			metrics:        m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicEdits", cfg.TopicEdits).
		Str("topicConfirmed", cfg.TopicConfirmed).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerEdits:     newWriter(cfg.TopicEdits),
		writerConfirmed: newWriter(cfg.TopicConfirmed),
		principal:       cfg.Principal,
		topicEdits:      cfg.TopicEdits,
		topicConfirmed:  cfg.TopicConfirmed,
		enabled:         true,
		metrics:         m,
	}
}

// PublishEdit publishes an edit event keyed by transcript, so all edits of
// one transcript land on the same partition in order.
func (p *Publisher) PublishEdit(ctx context.Context, event models.EditEvent) error {
	return p.publish(ctx, p.writerEdits, p.topicEdits, event.EventType, event.TranscriptID, event)
}

// PublishConfirmed publishes a transcript confirmation.
func (p *Publisher) PublishConfirmed(ctx context.Context, event models.TranscriptConfirmed) error {
	return p.publish(ctx, p.writerConfirmed, p.topicConfirmed, event.EventType, event.TranscriptID, event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerEdits != nil {
		if e := p.writerEdits.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing edits writer")
			err = e
		}
	}
	if p.writerConfirmed != nil {
		if e := p.writerConfirmed.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing confirmed writer")
			err = e
		}
	}
	return err
}

// EditEvent builds the audit record for a committed, undone or redone edit.
func EditEvent(eventType, transcriptID string, delta models.RevertData, persisted bool) models.EditEvent {
	return models.EditEvent{
		EventType:    eventType,
		TranscriptID: transcriptID,
		EditType:     delta.EditType.String(),
		SegmentIDs:   delta.SegmentIDs(),
		Persisted:    persisted,
		Timestamp:    time.Now().UnixMilli(),
	}
}

// Confirmed builds the confirmation record for a transcript.
func Confirmed(transcriptID string) models.TranscriptConfirmed {
	return models.TranscriptConfirmed{
		EventType:    EventTranscriptConfirmed,
		TranscriptID: transcriptID,
		Timestamp:    time.Now().UnixMilli(),
	}
}
