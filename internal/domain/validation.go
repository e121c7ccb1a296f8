package domain

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field-level failure of an inbound payload.
// It matches ErrValidation under errors.Is.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Validator accumulates field errors. The zero value is ready to use.
type Validator struct {
	errs []FieldError
}

// Check records message against field when ok is false.
func (v *Validator) Check(ok bool, field, message string) {
	if !ok {
		v.AddError(field, message)
	}
}

// AddError records a failure unconditionally.
func (v *Validator) AddError(field, message string) {
	v.errs = append(v.errs, FieldError{Field: field, Message: message})
}

// Valid reports whether no errors were recorded.
func (v *Validator) Valid() bool {
	return len(v.errs) == 0
}

// Err returns nil when valid, or a *ValidationError otherwise.
func (v *Validator) Err() error {
	if v.Valid() {
		return nil
	}
	return &ValidationError{Fields: v.errs}
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func between(s string, min, max int) bool {
	n := runeLen(s)
	return n >= min && n <= max
}

func outcomeField(i int) string {
	return "outcomes[" + strconv.Itoa(i) + "]"
}
