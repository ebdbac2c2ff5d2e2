package csrf

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"

	"formguard/session"
)

const maxMultipartMemory = 32 << 20 // 32 MB

// Failure logs are throttled per client so a flood of bad tokens cannot
// drown the log output.
const (
	logsPerSecond  = 1
	logBurst       = 5
	maxLogLimiters = 10000
)

// Protect returns a chi-compatible middleware enforcing CSRF validation
// before the wrapped handler runs.
//
// Non-mutating methods pass through untouched. For POST, PUT, PATCH and
// DELETE the candidate token is taken from the submitted form or JSON
// body under the configured field name, falling back to the configured
// headers in declared order. Failures are rejected with 403 and a
// plain-text body carrying the exact failure message. On secure
// requests with SSLStrict set, the referrer must match the request's
// scheme, host and port.
//
// A per-request State is installed into the context for every request
// so downstream token generation and form-level validation share the
// gate's bookkeeping.
func (e *Engine) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !e.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		st, ok := GetState(r.Context())
		if !ok {
			st = NewState()
			r = r.WithContext(WithState(r.Context(), st))
		}

		if !isMutating(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		sess, _ := session.FromContext(r.Context())

		if err := e.ValidateToken(sess, e.TokenFromRequest(r)); err != nil {
			e.reject(w, r, err)
			return
		}

		if r.TLS != nil && e.cfg.SSLStrict {
			if err := checkReferrer(r); err != nil {
				e.reject(w, r, err)
				return
			}
		}

		st.MarkValidated()
		next.ServeHTTP(w, r)
	})
}

// TokenFromRequest extracts the candidate token: first from the
// submitted body under the configured field name, then from the
// configured headers in declared order. Header lookup is
// case-insensitive. Returns "" when no token is present.
func (e *Engine) TokenFromRequest(r *http.Request) string {
	if token := tokenFromBody(r, e.cfg.FieldName); token != "" {
		return token
	}
	for _, name := range e.cfg.HeaderNames {
		if token := r.Header.Get(name); token != "" {
			return token
		}
	}
	return ""
}

// tokenFromBody pulls the token from form or JSON data. The JSON body
// is restored after reading so downstream handlers can consume it;
// form bodies are parsed through the request's own cache.
func tokenFromBody(r *http.Request, fieldName string) string {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		if r.Body == nil {
			return ""
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return ""
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		var data map[string]any
		if err := json.Unmarshal(body, &data); err != nil {
			return ""
		}
		token, _ := data[fieldName].(string)
		return token
	}

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return ""
		}
	}
	return r.PostFormValue(fieldName)
}

func (e *Engine) reject(w http.ResponseWriter, r *http.Request, err error) {
	cerr := ErrTokenInvalid
	var ce *Error
	if errors.As(err, &ce) {
		cerr = ce
	}

	gateRejectionsTotal.WithLabelValues(string(cerr.Reason)).Inc()

	if e.allowLog(r.RemoteAddr) {
		slog.Warn("CSRF validation failed",
			slog.String("reason", string(cerr.Reason)),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr),
		)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusForbidden)
	_, _ = io.WriteString(w, cerr.Message)
}

// checkReferrer enforces the same-origin policy on secure requests.
func checkReferrer(r *http.Request) error {
	referrer := r.Header.Get("Referer")
	if referrer == "" {
		return ErrReferrerMissing
	}

	ref, err := url.Parse(referrer)
	if err != nil || !sameOrigin(ref, r) {
		return ErrReferrerMismatch
	}
	return nil
}

// sameOrigin reports whether ref matches the request's own scheme,
// hostname and port. Only called for TLS requests, so the request
// scheme is https.
func sameOrigin(ref *url.URL, r *http.Request) bool {
	host, port, err := net.SplitHostPort(r.Host)
	if err != nil {
		host, port = r.Host, ""
	}

	return ref.Scheme == "https" &&
		ref.Hostname() == host &&
		portOrDefault(ref.Scheme, ref.Port()) == portOrDefault("https", port)
}

func portOrDefault(scheme, port string) string {
	if port != "" {
		return port
	}
	switch scheme {
	case "https":
		return "443"
	case "http":
		return "80"
	}
	return ""
}

// Mutating methods trigger CSRF validation; everything else passes
// through unconditionally.
func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func (e *Engine) allowLog(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	lim, ok := e.logLimiters[host]
	if !ok {
		// Bound memory under address churn; resetting drops at most a
		// few suppressed log lines.
		if len(e.logLimiters) >= maxLogLimiters {
			e.logLimiters = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(rate.Limit(logsPerSecond), logBurst)
		e.logLimiters[host] = lim
	}
	return lim.Allow()
}
