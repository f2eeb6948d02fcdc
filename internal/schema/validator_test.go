package schema

import (
	"errors"
	"strings"
	"testing"

	"transcript-editor-service/internal/models"
)

func TestValidateSegments(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		seg     models.Segment
		wantErr string
	}{
		{
			name: "valid",
			seg: models.Segment{ID: "s1", Start: 0, Length: 2, WordAlignments: []models.WordAlignment{
				{Word: "hi", Start: 0, Length: 1, Confidence: 0.5},
			}},
		},
		{
			name:    "missing id",
			seg:     models.Segment{Start: 0, Length: 1},
			wantErr: "Segment.ID",
		},
		{
			name:    "zero length",
			seg:     models.Segment{ID: "s1", Length: 0},
			wantErr: "'gt'",
		},
		{
			name: "confidence above one",
			seg: models.Segment{ID: "s1", Length: 1, WordAlignments: []models.WordAlignment{
				{Word: "hi", Length: 1, Confidence: 1.5},
			}},
			wantErr: "Confidence",
		},
		{
			name: "empty word",
			seg: models.Segment{ID: "s1", Length: 1, WordAlignments: []models.WordAlignment{
				{Length: 1},
			}},
			wantErr: "Word",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateSegments([]models.Segment{tt.seg})
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected %q in %q", tt.wantErr, err.Error())
			}
		})
	}
}
