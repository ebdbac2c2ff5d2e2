package session

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// CookieName is the cookie carrying the session ID set by Middleware.
const CookieName = "session_id"

// MemoryStore keeps sessions in process memory, keyed by session ID.
// It is a reference backend for tests and development servers; data does
// not survive a restart and is never shared between processes.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memorySession)}
}

// New creates a session under a fresh random ID and returns both.
func (s *MemoryStore) New() (string, Session) {
	id := uuid.New().String()

	sess := &memorySession{values: make(map[string]string)}
	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	return id, sess
}

// Get returns the session stored under id, if any.
func (s *MemoryStore) Get(id string) (Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return sess, true
}

// Delete removes the session stored under id.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

type memorySession struct {
	mu     sync.RWMutex
	values map[string]string
}

func (s *memorySession) Get(key string) (string, bool) {
	s.mu.RLock()
	v, ok := s.values[key]
	s.mu.RUnlock()
	return v, ok
}

func (s *memorySession) Set(key, value string) {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
}

func (s *memorySession) Delete(key string) {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
}

// Middleware loads the request's session from store using the session_id
// cookie, creating a session (and setting the cookie) when absent, and
// stashes it in the request context for downstream handlers.
func Middleware(store *MemoryStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sess Session

			cookie, err := r.Cookie(CookieName)
			if err == nil {
				sess, _ = store.Get(cookie.Value)
			}

			if sess == nil {
				var id string
				id, sess = store.New()
				http.SetCookie(w, &http.Cookie{
					Name:     CookieName,
					Value:    id,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}
