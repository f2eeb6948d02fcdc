package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"transcript-editor-service/internal/models"
	"transcript-editor-service/internal/observability/logging"
	"transcript-editor-service/internal/observability/metrics"
	"transcript-editor-service/internal/schema"
)

// ClientConfig configures the REST client.
type ClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client is a Bridge over the backing store's REST/JSON API.
type Client struct {
	base      string
	token     string
	http      *http.Client
	validator *schema.Validator
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewClient creates a REST bridge. A nil httpClient uses one with cfg.Timeout.
func NewClient(cfg ClientConfig, httpClient *http.Client, m *metrics.Metrics) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Client{
		base:      strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.Token,
		http:      httpClient,
		validator: schema.New(),
		metrics:   m,
		log:       logging.WithComponent("bridge"),
	}
}

type segmentsResponse struct {
	Segments []models.Segment `json:"segments"`
}

type segmentResponse struct {
	Segment models.Segment `json:"segment"`
}

type wordsRequest struct {
	WordAlignments []models.WordAlignment `json:"wordAlignments"`
}

type timeRequest struct {
	Start  float64 `json:"start"`
	Length float64 `json:"length"`
}

type splitRequest struct {
	SplitIndex *int     `json:"splitIndex,omitempty"`
	Time       *float64 `json:"time,omitempty"`
	CharOffset *int     `json:"charOffset,omitempty"`
}

type mergeRequest struct {
	FirstSegmentID  string `json:"firstSegmentId"`
	SecondSegmentID string `json:"secondSegmentId"`
}

type problemBody struct {
	Message string `json:"message"`
}

// GetSegments fetches every segment of a transcript.
func (c *Client) GetSegments(ctx context.Context, transcriptID string) ([]models.Segment, error) {
	var out segmentsResponse
	if err := c.do(ctx, "get_segments", http.MethodGet, c.path("transcripts", transcriptID, "segments"), nil, &out); err != nil {
		return nil, err
	}
	if err := c.validator.ValidateSegments(out.Segments); err != nil {
		return nil, c.badData("get_segments", err)
	}
	return out.Segments, nil
}

// UpdateSegmentWords replaces the word alignments of a segment.
func (c *Client) UpdateSegmentWords(ctx context.Context, transcriptID, segmentID string, words []models.WordAlignment) (models.Segment, error) {
	var out segmentResponse
	body := wordsRequest{WordAlignments: words}
	path := c.path("transcripts", transcriptID, "segments", segmentID, "words")
	if err := c.do(ctx, "update_words", http.MethodPut, path, body, &out); err != nil {
		return models.Segment{}, err
	}
	return c.checkSegment("update_words", out.Segment)
}

// UpdateSegmentTime rewrites the window of a segment.
func (c *Client) UpdateSegmentTime(ctx context.Context, transcriptID, segmentID string, start, length float64) (models.Segment, error) {
	var out segmentResponse
	body := timeRequest{Start: start, Length: length}
	path := c.path("transcripts", transcriptID, "segments", segmentID, "time")
	if err := c.do(ctx, "update_time", http.MethodPut, path, body, &out); err != nil {
		return models.Segment{}, err
	}
	return c.checkSegment("update_time", out.Segment)
}

// SplitSegment splits a segment in two.
func (c *Client) SplitSegment(ctx context.Context, transcriptID, segmentID string, at SplitPoint) ([]models.Segment, error) {
	var body splitRequest
	if at.ByTime {
		t, off := at.Time, at.CharOffset
		body.Time, body.CharOffset = &t, &off
	} else {
		k := at.WordIndex
		body.SplitIndex = &k
	}

	var out segmentsResponse
	path := c.path("transcripts", transcriptID, "segments", segmentID, "split")
	if err := c.do(ctx, "split", http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	if len(out.Segments) != 2 {
		return nil, c.badData("split", fmt.Errorf("expected 2 segments, got %d", len(out.Segments)))
	}
	if err := c.validator.ValidateSegments(out.Segments); err != nil {
		return nil, c.badData("split", err)
	}
	return out.Segments, nil
}

// MergeSegments merges two adjacent segments.
func (c *Client) MergeSegments(ctx context.Context, transcriptID, firstSegmentID, secondSegmentID string) (models.Segment, error) {
	var out segmentResponse
	body := mergeRequest{FirstSegmentID: firstSegmentID, SecondSegmentID: secondSegmentID}
	path := c.path("transcripts", transcriptID, "segments", "merge")
	if err := c.do(ctx, "merge", http.MethodPost, path, body, &out); err != nil {
		return models.Segment{}, err
	}
	return c.checkSegment("merge", out.Segment)
}

// ConfirmTranscript marks a transcript as reviewed.
func (c *Client) ConfirmTranscript(ctx context.Context, transcriptID string) error {
	return c.do(ctx, "confirm", http.MethodPost, c.path("transcripts", transcriptID, "confirm"), nil, nil)
}

func (c *Client) checkSegment(op string, seg models.Segment) (models.Segment, error) {
	if err := c.validator.Validate(seg); err != nil {
		return models.Segment{}, c.badData(op, err)
	}
	return seg, nil
}

func (c *Client) path(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.base + "/" + strings.Join(escaped, "/")
}

func (c *Client) badData(op string, err error) *Problem {
	c.log.Error().Err(err).Str("operation", op).Msg("Backend returned malformed data")
	return &Problem{Kind: KindUnknown, Message: "The server returned malformed data.", err: err}
}

// do sends one request and decodes a 2xx body into out. Every failure comes
// back as a *Problem.
func (c *Client) do(ctx context.Context, op, method, target string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return &Problem{Kind: KindUnknown, err: fmt.Errorf("encode %s request: %w", op, err)}
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return &Problem{Kind: KindUnknown, err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	latency := time.Since(start).Seconds()
	if err != nil {
		c.metrics.RecordBackendRequest(op, "error", latency)
		kind := KindUnknown
		if isNetwork(err) {
			kind = KindNetwork
		}
		c.log.Warn().Err(err).Str("operation", op).Msg("Backend request failed")
		return &Problem{Kind: kind, err: err}
	}
	defer resp.Body.Close()
	c.metrics.RecordBackendRequest(op, fmt.Sprintf("%d", resp.StatusCode), latency)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Problem{Kind: KindNetwork, Status: resp.StatusCode, err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var pb problemBody
		_ = json.Unmarshal(data, &pb)
		p := &Problem{
			Kind:    statusKind(resp.StatusCode),
			Message: pb.Message,
			Status:  resp.StatusCode,
			err:     errors.New(http.StatusText(resp.StatusCode)),
		}
		c.log.Warn().
			Str("operation", op).
			Int("status", resp.StatusCode).
			Str("kind", string(p.Kind)).
			Msg("Backend rejected request")
		return p
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		if out != nil {
			return c.badData(op, errors.New("empty response body"))
		}
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return c.badData(op, err)
	}
	return nil
}
