package csrf

import (
	"context"
	"sync"
)

type contextKey string

const stateKey contextKey = "csrf_state"

// State carries a request's CSRF bookkeeping: the signed-token cache
// that makes token generation idempotent within one request, and the
// marker the gate sets after a successful validation so form-level
// checks can skip re-validating. One State per request; never reused.
type State struct {
	mu        sync.Mutex
	tokens    map[string]string
	validated bool
}

// NewState returns an empty per-request state.
func NewState() *State {
	return &State{tokens: make(map[string]string)}
}

// MarkValidated records that the gate validated this request.
func (s *State) MarkValidated() {
	s.mu.Lock()
	s.validated = true
	s.mu.Unlock()
}

// Validated reports whether the gate already validated this request.
func (s *State) Validated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validated
}

func (s *State) cachedToken(fieldName string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[fieldName]
	return token, ok
}

func (s *State) cacheToken(fieldName, token string) {
	s.mu.Lock()
	s.tokens[fieldName] = token
	s.mu.Unlock()
}

// WithState returns a context carrying the request's CSRF state.
func WithState(ctx context.Context, st *State) context.Context {
	return context.WithValue(ctx, stateKey, st)
}

// GetState returns the CSRF state installed by the gate or by the
// application's own middleware.
func GetState(ctx context.Context) (*State, bool) {
	st, ok := ctx.Value(stateKey).(*State)
	return st, ok
}
