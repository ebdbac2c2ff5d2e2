// Package session defines the session collaborator consumed by the CSRF
// engine: a mutable string-keyed mapping scoped to a single user agent
// and persisted across its requests. Applications bring their own
// backend; MemoryStore is a reference implementation for tests and
// development.
package session

import "context"

// Session is a mutable view over one client's server-side session data.
//
// A session is only written by its own request; see MemoryStore for the
// concurrency contract of the reference backend.
type Session interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

type contextKey string

const sessionKey contextKey = "session"

// WithSession returns a context carrying the request's session.
func WithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// FromContext returns the session stored by the session middleware.
func FromContext(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(sessionKey).(Session)
	return sess, ok
}
