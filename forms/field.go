package forms

import (
	"context"
	"fmt"
	"mime/multipart"
)

// FieldError is a recoverable validation failure attached to a field's
// error list. Any other error returned by a validator is treated as a
// programming error and aborts the validation call.
type FieldError struct {
	Message string
}

func (e *FieldError) Error() string { return e.Message }

// Errorf builds a FieldError from a format string.
func Errorf(format string, args ...any) *FieldError {
	return &FieldError{Message: fmt.Sprintf(format, args...)}
}

// Validator runs synchronously during the first validation phase.
// Returning a *FieldError records it on the field; any other non-nil
// error aborts validation.
type Validator func(ctx context.Context, form *Form, field *Field) error

// AsyncValidator runs concurrently with other fields' async validators
// during the second validation phase. Intended for checks that await
// external resources, such as uniqueness lookups against a store.
type AsyncValidator func(ctx context.Context, form *Form, field *Field) error

// Kind is the field's value type.
type Kind int

const (
	KindText Kind = iota
	KindBool
	KindFile
)

// Field is one declared form field with its submitted data and the
// errors accumulated during validation. Errors are appended, never
// cleared, while a validation call runs.
type Field struct {
	Name string
	Kind Kind

	// Value is the first submitted value, or the declared default when
	// the field was absent.
	Value string

	// Values holds every submitted value for multi-valued fields.
	Values []string

	// Checked is the typed value of a KindBool field.
	Checked bool

	// File is the uploaded file of a KindFile field, if any.
	File *multipart.FileHeader

	Errors []string

	spec FieldSpec
}

// empty reports whether the field carries no usable submitted value,
// for required-field short-circuiting.
func (f *Field) empty() bool {
	switch f.Kind {
	case KindBool:
		return !f.Checked
	case KindFile:
		return f.File == nil
	default:
		return f.Value == ""
	}
}

// message resolves the error text for a failed rule, honoring per-field
// overrides.
func (f *Field) message(rule string) string {
	if msg, ok := f.spec.messages[rule]; ok {
		return msg
	}
	return defaultMessage(rule)
}

// FieldSpec declares a field: its name, kind, synchronous rule chain
// and any explicitly registered validators. Specs are immutable once
// the form is constructed.
type FieldSpec struct {
	name           string
	kind           Kind
	rules          string
	required       bool
	defaultValue   string
	defaultChecked bool
	messages       map[string]string
	validators     []Validator
	asyncValidator AsyncValidator
}

// Option configures a FieldSpec.
type Option func(*FieldSpec)

// Text declares a string field.
func Text(name string, opts ...Option) FieldSpec {
	return newSpec(name, KindText, opts)
}

// Bool declares a checkbox-style field: true when submitted with any
// value other than "", "false" or "0".
func Bool(name string, opts ...Option) FieldSpec {
	return newSpec(name, KindBool, opts)
}

// File declares a file-upload field.
func File(name string, opts ...Option) FieldSpec {
	return newSpec(name, KindFile, opts)
}

func newSpec(name string, kind Kind, opts []Option) FieldSpec {
	spec := FieldSpec{name: name, kind: kind}
	for _, opt := range opts {
		opt(&spec)
	}
	spec.required, spec.rules = splitRequired(spec.rules)
	return spec
}

// Rules attaches a comma-separated synchronous rule chain, evaluated by
// the validation engine ("required,email", "min=3,max=50", ...). The
// required rule short-circuits: a missing required field records only
// the required error and skips the rest of its validation, including
// its async validator.
func Rules(rules string) Option {
	return func(s *FieldSpec) { s.rules = rules }
}

// Default sets the value used when the field is absent from the
// submitted data, or when the form is built without data.
func Default(value string) Option {
	return func(s *FieldSpec) { s.defaultValue = value }
}

// Checked makes a Bool field default to true.
func Checked() Option {
	return func(s *FieldSpec) { s.defaultChecked = true }
}

// Message overrides the error text recorded when the given rule fails.
func Message(rule, message string) Option {
	return func(s *FieldSpec) {
		if s.messages == nil {
			s.messages = make(map[string]string)
		}
		s.messages[rule] = message
	}
}

// Validate registers an extra synchronous validator, run after the rule
// chain in registration order.
func Validate(fn Validator) Option {
	return func(s *FieldSpec) { s.validators = append(s.validators, fn) }
}

// ValidateAsync registers the field's asynchronous validator, run
// concurrently with other fields' async validators during phase two.
func ValidateAsync(fn AsyncValidator) Option {
	return func(s *FieldSpec) { s.asyncValidator = fn }
}
