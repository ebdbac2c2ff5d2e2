// Package csrf implements session-bound, time-limited CSRF protection:
// a token engine issuing signed tokens tied to a server-side session
// secret, and a per-route middleware gate enforcing them on mutating
// requests.
package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"formguard/internal/signer"
	"formguard/session"
)

// tokenSalt domain-separates CSRF token signatures from any other use
// of the application secret.
const tokenSalt = "wtf-csrf-token"

// Engine generates and validates CSRF tokens for one application.
// Safe for concurrent use; all configuration is read-only after New.
type Engine struct {
	cfg    Config
	signer *signer.Signer

	// failure-log throttling, keyed by client host
	mu          sync.Mutex
	logLimiters map[string]*rate.Limiter
}

// New creates an Engine from cfg, applying defaults and failing fast on
// misconfiguration.
func New(cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:         cfg,
		logLimiters: make(map[string]*rate.Limiter),
	}
	if cfg.Enabled {
		e.signer = signer.New(cfg.Secret, tokenSalt)
	}
	return e, nil
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Enabled reports whether protection is active.
func (e *Engine) Enabled() bool { return e.cfg.Enabled }

// GenerateToken returns a signed token for the request, creating the
// session-side token on first use. Within one request (one State) the
// signed value is cached, so repeated calls return the identical token.
func (e *Engine) GenerateToken(st *State, sess session.Session) (string, error) {
	if !e.cfg.Enabled {
		return "", fmt.Errorf("csrf: token generation on disabled engine")
	}
	if sess == nil {
		return "", fmt.Errorf("csrf: no session available to bind token")
	}
	if st == nil {
		st = NewState()
	}

	if token, ok := st.cachedToken(e.cfg.FieldName); ok {
		return token, nil
	}

	raw, ok := sess.Get(e.cfg.FieldName)
	if !ok || raw == "" {
		// Regenerating also covers an unusable stored value.
		var err error
		raw, err = newSessionToken()
		if err != nil {
			return "", err
		}
		sess.Set(e.cfg.FieldName, raw)
	}

	token := e.signer.Sign(raw)
	st.cacheToken(e.cfg.FieldName, token)
	tokensGeneratedTotal.Inc()

	return token, nil
}

// ValidateToken checks a candidate signed token against the session's
// current token. Returns nil on success or one of the *Error sentinels:
// ErrTokenMissing, ErrSessionMissing, ErrTokenExpired, ErrTokenInvalid,
// ErrTokenMismatch. On a disabled engine every candidate is valid.
func (e *Engine) ValidateToken(sess session.Session, candidate string) error {
	if !e.cfg.Enabled {
		return nil
	}

	err := e.validateToken(sess, candidate)
	if err != nil {
		var cerr *Error
		if errors.As(err, &cerr) {
			validationsTotal.WithLabelValues("failure", string(cerr.Reason)).Inc()
		}
		return err
	}
	validationsTotal.WithLabelValues("success", "").Inc()
	return nil
}

func (e *Engine) validateToken(sess session.Session, candidate string) error {
	if candidate == "" {
		return ErrTokenMissing
	}

	var stored string
	if sess != nil {
		stored, _ = sess.Get(e.cfg.FieldName)
	}
	if stored == "" {
		return ErrSessionMissing
	}

	payload, err := e.signer.Unsign(candidate, e.cfg.maxAge())
	switch {
	case errors.Is(err, signer.ErrExpired):
		return ErrTokenExpired
	case err != nil:
		return ErrTokenInvalid
	}

	if !hmac.Equal([]byte(stored), []byte(payload)) {
		return ErrTokenMismatch
	}
	return nil
}

// newSessionToken returns the hex digest of 64 bytes of cryptographic
// randomness; this is the long-lived per-session secret the signed
// tokens are derived from.
func newSessionToken() (string, error) {
	buf := make([]byte, 64)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:]), nil
}
