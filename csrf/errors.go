package csrf

// Reason identifies why CSRF validation failed.
type Reason string

const (
	ReasonTokenMissing     Reason = "token_missing"
	ReasonSessionMissing   Reason = "session_missing"
	ReasonTokenExpired     Reason = "token_expired"
	ReasonTokenInvalid     Reason = "token_invalid"
	ReasonTokenMismatch    Reason = "token_mismatch"
	ReasonReferrerMissing  Reason = "referrer_missing"
	ReasonReferrerMismatch Reason = "referrer_mismatch"
)

// Error is a recoverable CSRF validation failure. Message is the exact
// user-facing text the gate returns in the 403 response body.
type Error struct {
	Reason  Reason
	Message string
}

func (e *Error) Error() string { return e.Message }

// Validation failures. Compared by identity with errors.Is.
var (
	ErrTokenMissing     = &Error{ReasonTokenMissing, "The CSRF token is missing."}
	ErrSessionMissing   = &Error{ReasonSessionMissing, "The CSRF session token is missing."}
	ErrTokenExpired     = &Error{ReasonTokenExpired, "The CSRF token has expired."}
	ErrTokenInvalid     = &Error{ReasonTokenInvalid, "The CSRF token is invalid."}
	ErrTokenMismatch    = &Error{ReasonTokenMismatch, "The CSRF tokens do not match."}
	ErrReferrerMissing  = &Error{ReasonReferrerMissing, "The referrer header is missing."}
	ErrReferrerMismatch = &Error{ReasonReferrerMismatch, "The referrer does not match the host."}
)
