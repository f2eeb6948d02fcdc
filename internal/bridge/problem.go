package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"transcript-editor-service/internal/service/edit"
)

// Kind classifies a failed request.
type Kind string

const (
	// KindNotFound means the segment or transcript is gone server-side; the
	// session must reload rather than retry.
	KindNotFound Kind = "not-found"
	// KindConflict means a concurrent edit was detected.
	KindConflict Kind = "conflict"
	// KindValidation means the edit violates a model invariant.
	KindValidation Kind = "validation"
	// KindNetwork is transient; retrying the identical commit is safe.
	KindNetwork Kind = "network"
	KindUnknown Kind = "unknown"
)

const genericMessage = "Something went wrong. Please try again."

// Problem is a classified failure with an optional human-readable message.
type Problem struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message,omitempty"`
	Status  int    `json:"status,omitempty"`
	err     error
}

func (p *Problem) Error() string {
	msg := p.Message
	if msg == "" && p.err != nil {
		msg = p.err.Error()
	}
	if p.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", p.Kind, p.Status, msg)
	}
	return fmt.Sprintf("%s: %s", p.Kind, msg)
}

func (p *Problem) Unwrap() error { return p.err }

// Temporary reports whether an identical retry may succeed.
func (p *Problem) Temporary() bool { return p.Kind == KindNetwork }

// UserMessage returns the message to show, falling back to a generic one.
func (p *Problem) UserMessage() string {
	if p.Message != "" {
		return p.Message
	}
	return genericMessage
}

// KindOf maps any error to a problem kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var p *Problem
	if errors.As(err, &p) {
		return p.Kind
	}
	if edit.IsValidation(err) {
		return KindValidation
	}
	if isNetwork(err) {
		return KindNetwork
	}
	return KindUnknown
}

// AsProblem wraps err into a Problem, keeping an existing one as is.
func AsProblem(err error) *Problem {
	if err == nil {
		return nil
	}
	var p *Problem
	if errors.As(err, &p) {
		return p
	}
	kind := KindOf(err)
	msg := ""
	if kind == KindValidation {
		msg = err.Error()
	}
	return &Problem{Kind: kind, Message: msg, err: err}
}

// statusKind classifies an HTTP error status.
func statusKind(status int) Kind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindUnknown
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return KindNetwork
	case status >= 500:
		return KindNetwork
	case status >= 400:
		return KindValidation
	default:
		return KindUnknown
	}
}

func isNetwork(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
