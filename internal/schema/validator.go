// Package schema validates payloads crossing the service boundary: segments
// from the backing store and commands from the page.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"transcript-editor-service/internal/models"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("schema validation failed")

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate checks the struct tags of v.
func (v *Validator) Validate(value any) error {
	err := v.validate.Struct(value)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(FormatErrors(verrs), "; "))
}

// ValidateSegments checks every segment of a list.
func (v *Validator) ValidateSegments(segments []models.Segment) error {
	for i := range segments {
		if err := v.Validate(segments[i]); err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
	}
	return nil
}

// FormatErrors renders validator errors one line per field.
func FormatErrors(errs validator.ValidationErrors) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := fmt.Sprintf("field '%s' failed on the '%s' tag", e.Namespace(), e.Tag())
		if e.Param() != "" {
			msg = fmt.Sprintf("%s (value: %s)", msg, e.Param())
		}
		out = append(out, msg)
	}
	return out
}
