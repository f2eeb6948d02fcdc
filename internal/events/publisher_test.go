package events

import (
	"context"
	"reflect"
	"testing"

	"transcript-editor-service/internal/models"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.enabled {
				t.Error("expected publisher to be disabled")
			}
			if p.writerEdits != nil || p.writerConfirmed != nil {
				t.Error("expected nil writers when disabled")
			}
		})
	}
}

func TestNew_ConfigValues(t *testing.T) {
	p := New(&Config{
		Enabled:        false,
		Brokers:        []string{"localhost:9092"},
		TopicEdits:     "test.edits",
		TopicConfirmed: "test.confirmed",
		Principal:      "test-principal",
	})

	if p.principal != "test-principal" {
		t.Errorf("expected principal 'test-principal', got %s", p.principal)
	}
	if p.topicEdits != "test.edits" {
		t.Errorf("expected topic 'test.edits', got %s", p.topicEdits)
	}
	if p.topicConfirmed != "test.confirmed" {
		t.Errorf("expected topic 'test.confirmed', got %s", p.topicConfirmed)
	}
}

func TestNew_EnabledCreatesWriters(t *testing.T) {
	p := New(&Config{
		Enabled:        true,
		Brokers:        []string{"localhost:9092"},
		TopicEdits:     "test.edits",
		TopicConfirmed: "test.confirmed",
	})
	defer p.Close()

	if !p.enabled {
		t.Fatal("expected publisher to be enabled")
	}
	if p.writerEdits.Topic != "test.edits" || p.writerConfirmed.Topic != "test.confirmed" {
		t.Errorf("unexpected writer topics %q %q", p.writerEdits.Topic, p.writerConfirmed.Topic)
	}
}

func TestPublisher_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false, TopicEdits: "test.edits", Principal: "test-svc"})
	ctx := context.Background()

	delta := models.RevertData{
		EditType: models.EditSplit,
		Before:   []models.Segment{{ID: "s1"}},
		After:    []models.Segment{{ID: "s1"}, {ID: "s2"}},
	}
	if err := p.PublishEdit(ctx, EditEvent(EventEditCommitted, "t1", delta, true)); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
	if err := p.PublishConfirmed(ctx, Confirmed("t1")); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_Close_NilPublisher(t *testing.T) {
	p := &Publisher{}

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing publisher with nil writers, got %v", err)
	}
}

func TestEditEvent(t *testing.T) {
	delta := models.RevertData{
		EditType: models.EditMerge,
		Before:   []models.Segment{{ID: "a"}, {ID: "b"}},
		After:    []models.Segment{{ID: "a"}},
	}

	ev := EditEvent(EventEditUndone, "t1", delta, false)

	if ev.EventType != EventEditUndone || ev.TranscriptID != "t1" {
		t.Errorf("unexpected header fields %+v", ev)
	}
	if ev.EditType != "merge" {
		t.Errorf("expected edit type 'merge', got %q", ev.EditType)
	}
	if !reflect.DeepEqual(ev.SegmentIDs, []string{"a", "b"}) {
		t.Errorf("expected deduplicated ids [a b], got %v", ev.SegmentIDs)
	}
	if ev.Persisted || ev.Timestamp == 0 {
		t.Errorf("unexpected persisted/timestamp %+v", ev)
	}
}
