package wizard

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError blocks step advancement. It stays inside the wizard
// surface and is never sent upstream.
type ValidationError struct {
	Msg    string
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s", e.Msg, strings.Join(e.Fields, ", "))
	}
	return e.Msg
}

// Validation builds a ValidationError naming the offending fields.
func Validation(msg string, fields ...string) error {
	return &ValidationError{Msg: msg, Fields: fields}
}

// AsValidation unwraps a ValidationError if err carries one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// ErrDraftTerminal is returned when an operation targets a draft whose
// lifecycle already ended at Committed or Failed.
var ErrDraftTerminal = errors.New("draft is already committed or failed")
