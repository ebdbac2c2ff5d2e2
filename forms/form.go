// Package forms binds HTTP request data to declared form fields and
// validates them in two phases: a sequential synchronous pass over each
// field's rule chain and extra validators, then a concurrent pass over
// the explicitly registered asynchronous validators. An optional CSRF
// pseudo-field ties the form into the csrf package's token engine.
package forms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
)

const maxMultipartMemory = 32 << 20 // 32 MB

// Form is one request's form instance: declared fields bound to the
// submitted data, mutated only by validation, discarded with the
// request.
type Form struct {
	fields []*Field
	byName map[string]*Field
	method string
	csrf   *csrfBinding
}

// FormOption configures a Form at construction.
type FormOption func(f *Form, r *http.Request) error

// New builds a form from the request. For POST, PUT, PATCH and DELETE
// the fields are bound to the submitted data: a flat key/value object
// for JSON bodies, the standard form mapping (including uploaded files)
// otherwise. Any other method leaves the fields at their declared
// defaults.
func New(r *http.Request, specs []FieldSpec, opts ...FormOption) (*Form, error) {
	f := newForm(specs, r.Method)
	for _, opt := range opts {
		if err := opt(f, r); err != nil {
			return nil, err
		}
	}

	if f.IsSubmitted() {
		data, files, err := parseRequestData(r)
		if err != nil {
			return nil, err
		}
		f.bind(data, files)
	} else {
		f.bind(nil, nil)
	}
	return f, nil
}

// NewWithData builds a form from an explicit data mapping, bypassing
// request inference. The form is considered submitted.
func NewWithData(data url.Values, specs []FieldSpec, opts ...FormOption) (*Form, error) {
	f := newForm(specs, http.MethodPost)
	for _, opt := range opts {
		if err := opt(f, nil); err != nil {
			return nil, err
		}
	}
	f.bind(data, nil)
	return f, nil
}

func newForm(specs []FieldSpec, method string) *Form {
	f := &Form{
		byName: make(map[string]*Field, len(specs)),
		method: method,
	}
	for _, spec := range specs {
		field := &Field{
			Name: spec.name,
			Kind: spec.kind,
			spec: spec,
		}
		f.fields = append(f.fields, field)
		f.byName[spec.name] = field
	}
	return f
}

// IsSubmitted reports whether the request method is one of the mutating
// set, independent of validation outcome.
func (f *Form) IsSubmitted() bool {
	return isSubmitMethod(f.method)
}

// Field returns the declared field by name, or nil.
func (f *Form) Field(name string) *Field {
	return f.byName[name]
}

// Value returns the named field's string value, or "".
func (f *Form) Value(name string) string {
	if field := f.byName[name]; field != nil {
		return field.Value
	}
	return ""
}

// Errors aggregates per-field error lists, keyed by field name. Fields
// without errors are omitted. The CSRF pseudo-field appears under its
// configured name.
func (f *Form) Errors() map[string][]string {
	errs := make(map[string][]string)
	for _, field := range f.fields {
		if len(field.Errors) > 0 {
			errs[field.Name] = field.Errors
		}
	}
	if f.csrf != nil && len(f.csrf.field.Errors) > 0 {
		errs[f.csrf.field.Name] = f.csrf.field.Errors
	}
	return errs
}

func (f *Form) hasErrors() bool {
	for _, field := range f.fields {
		if len(field.Errors) > 0 {
			return true
		}
	}
	return f.csrf != nil && len(f.csrf.field.Errors) > 0
}

// bind populates field values from the submitted data. A nil mapping
// means "not submitted": fields take their declared defaults.
func (f *Form) bind(data url.Values, files map[string][]*multipart.FileHeader) {
	for _, field := range f.fields {
		values, present := data[field.Name]

		switch field.Kind {
		case KindBool:
			if data == nil {
				field.Checked = field.spec.defaultChecked
				break
			}
			// HTML checkbox semantics: absent means unchecked.
			field.Checked = present && isTruthy(values[0])
			field.Value = strconv.FormatBool(field.Checked)

		case KindFile:
			if fhs := files[field.Name]; len(fhs) > 0 {
				field.File = fhs[0]
			}

		default:
			if present {
				field.Values = values
				field.Value = values[0]
			} else {
				field.Value = field.spec.defaultValue
				if field.Value != "" {
					field.Values = []string{field.Value}
				}
			}
		}
	}

	if f.csrf != nil && data != nil {
		f.csrf.field.Value = data.Get(f.csrf.field.Name)
	}
}

func isTruthy(value string) bool {
	switch value {
	case "", "false", "0":
		return false
	}
	return true
}

// Submission methods trigger data binding and validation; everything
// else leaves the form at its defaults.
func isSubmitMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// parseRequestData returns the submitted multi-valued mapping plus any
// uploaded files, handling urlencoded, multipart and JSON bodies.
func parseRequestData(r *http.Request) (url.Values, map[string][]*multipart.FileHeader, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/json":
		data, err := parseJSONBody(r)
		return data, nil, err

	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, nil, fmt.Errorf("forms: parsing multipart body: %w", err)
		}
		var files map[string][]*multipart.FileHeader
		if r.MultipartForm != nil {
			files = r.MultipartForm.File
		}
		return r.PostForm, files, nil

	default:
		if err := r.ParseForm(); err != nil {
			return nil, nil, fmt.Errorf("forms: parsing form body: %w", err)
		}
		return r.PostForm, nil, nil
	}
}

// parseJSONBody flattens a JSON object into form values: strings pass
// through, numbers and booleans are rendered to strings, arrays become
// multi-valued entries, null and nested objects are skipped. The body
// is restored for downstream readers.
func parseJSONBody(r *http.Request) (url.Values, error) {
	if r.Body == nil {
		return url.Values{}, nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("forms: reading JSON body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	if len(bytes.TrimSpace(body)) == 0 {
		return url.Values{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("forms: parsing JSON body: %w", err)
	}

	data := make(url.Values, len(raw))
	for key, value := range raw {
		if items, ok := value.([]any); ok {
			for _, item := range items {
				if s, ok := scalarString(item); ok {
					data.Add(key, s)
				}
			}
			continue
		}
		if s, ok := scalarString(value); ok {
			data.Add(key, s)
		}
	}
	return data, nil
}

func scalarString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case json.Number:
		return v.String(), true
	}
	return "", false
}
