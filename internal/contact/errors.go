package contact

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError is one failed rule on one input field
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationErrors is returned when user input fails validation.
// Nothing is persisted when it is returned.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+": "+fe.Rule)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// ByField groups the messages by field name
func (v ValidationErrors) ByField() map[string][]string {
	out := make(map[string][]string, len(v))
	for _, fe := range v {
		out[fe.Field] = append(out[fe.Field], fe.Message)
	}
	return out
}

// Has reports whether field failed rule
func (v ValidationErrors) Has(field, rule string) bool {
	for _, fe := range v {
		if fe.Field == field && fe.Rule == rule {
			return true
		}
	}
	return false
}

var (
	ErrMissingField    = errors.New("required field missing")
	ErrMalformedField  = errors.New("field malformed")
	ErrInvalidDatetime = errors.New("preferred datetime cannot be parsed")
	ErrInactiveReason  = errors.New("contact reason is not active")
)

// ConstructionError means FormData could not be built from supposedly
// validated input.
type ConstructionError struct {
	Field string
	Err   error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("build contact form: %s: %v", e.Field, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// PersistenceError means the form request could not be stored
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist form request: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
