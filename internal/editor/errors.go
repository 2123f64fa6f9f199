package editor

import (
	"errors"
	"strings"
)

var (
	ErrUnknownField   = errors.New("unknown field")
	ErrDerivedField   = errors.New("field is derived from cost and cannot be edited")
	ErrInvalidValue   = errors.New("invalid field value")
	ErrNameRequired   = errors.New("product name is required")
	ErrNoDescriber    = errors.New("description service not configured")
	ErrClosed         = errors.New("editor is closed")
	ErrInvalidProduct = errors.New("invalid product")
)

// FieldError is a validation failure scoped to a single draft field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors lists every field that blocks a submit
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field has an error
func (v ValidationErrors) Has(field string) bool {
	for _, e := range v {
		if e.Field == field {
			return true
		}
	}
	return false
}

// PersistenceError is returned when the catalog rejects a create or update.
// Message carries the server's text unchanged.
type PersistenceError struct {
	Message string
	Err     error
}

func (e *PersistenceError) Error() string {
	return "failed to save product: " + e.Message
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// serverMessager is implemented by backend errors that carry a message for the user
type serverMessager interface {
	ServerMessage() string
}

func serverMessage(err error) string {
	var sm serverMessager
	if errors.As(err, &sm) && sm.ServerMessage() != "" {
		return sm.ServerMessage()
	}
	return err.Error()
}
