package forms

import (
	"errors"
	"net/http"

	"formguard/csrf"
	"formguard/session"
)

// csrfBinding is the form's CSRF pseudo-field: token generation and
// validation delegate to the engine, and validation is skipped when the
// gate already validated the request.
type csrfBinding struct {
	engine *csrf.Engine
	state  *csrf.State
	sess   session.Session
	field  *Field
}

// WithCSRF embeds the CSRF pseudo-field, pulling the per-request state
// and session from the request context (installed by the gate and the
// session middleware). A disabled engine makes this a no-op, so the
// same form definition works with protection on or off.
func WithCSRF(engine *csrf.Engine) FormOption {
	return func(f *Form, r *http.Request) error {
		if !engine.Enabled() {
			return nil
		}

		var st *csrf.State
		var sess session.Session
		if r != nil {
			st, _ = csrf.GetState(r.Context())
			sess, _ = session.FromContext(r.Context())
		}
		f.attachCSRF(engine, st, sess)
		return nil
	}
}

// WithCSRFSession embeds the CSRF pseudo-field with an explicit state
// and session, for forms built outside a request context.
func WithCSRFSession(engine *csrf.Engine, st *csrf.State, sess session.Session) FormOption {
	return func(f *Form, _ *http.Request) error {
		if !engine.Enabled() {
			return nil
		}
		f.attachCSRF(engine, st, sess)
		return nil
	}
}

func (f *Form) attachCSRF(engine *csrf.Engine, st *csrf.State, sess session.Session) {
	if st == nil {
		st = csrf.NewState()
	}
	f.csrf = &csrfBinding{
		engine: engine,
		state:  st,
		sess:   sess,
		field:  &Field{Name: engine.Config().FieldName},
	}
}

// CSRFToken returns the signed token to render into the form, identical
// across repeated calls within the same request. Returns "" when the
// form carries no CSRF field.
func (f *Form) CSRFToken() (string, error) {
	if f.csrf == nil {
		return "", nil
	}
	return f.csrf.engine.GenerateToken(f.csrf.state, f.csrf.sess)
}

// CSRFField returns the pseudo-field, or nil when CSRF is not embedded.
// Its Errors list carries any validation failure message.
func (f *Form) CSRFField() *Field {
	if f.csrf == nil {
		return nil
	}
	return f.csrf.field
}

// validate checks the submitted token unless the gate already validated
// this request. Failures are recoverable: they land on the
// pseudo-field's error list and fail the form.
func (b *csrfBinding) validate() {
	if b.state.Validated() {
		return
	}

	err := b.engine.ValidateToken(b.sess, b.field.Value)
	if err == nil {
		return
	}

	var cerr *csrf.Error
	if errors.As(err, &cerr) {
		b.field.Errors = append(b.field.Errors, cerr.Message)
		return
	}
	b.field.Errors = append(b.field.Errors, err.Error())
}
