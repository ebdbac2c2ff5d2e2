package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()

	id, sess := store.New()
	if id == "" {
		t.Fatal("New() returned empty session ID")
	}

	sess.Set("key", "value")

	got, ok := store.Get(id)
	if !ok {
		t.Fatalf("Get(%q) not found", id)
	}
	v, ok := got.Get("key")
	if !ok || v != "value" {
		t.Errorf("session value = %q, %v, want %q, true", v, ok, "value")
	}

	got.Delete("key")
	if _, ok := got.Get("key"); ok {
		t.Error("value still present after Delete")
	}

	store.Delete(id)
	if _, ok := store.Get(id); ok {
		t.Error("session still present after store Delete")
	}
}

func TestMiddlewareCreatesAndReusesSession(t *testing.T) {
	store := NewMemoryStore()

	handler := Middleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := FromContext(r.Context())
		if !ok {
			t.Fatal("no session in request context")
		}

		if v, ok := sess.Get("counter"); ok {
			sess.Set("counter", v+"+1")
		} else {
			sess.Set("counter", "1")
		}
		w.WriteHeader(http.StatusOK)
	}))

	// First request creates a session and sets the cookie.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName {
		t.Fatalf("cookies = %v, want one %q cookie", cookies, CookieName)
	}
	if store.Len() != 1 {
		t.Fatalf("store.Len() = %d, want 1", store.Len())
	}

	// Second request with the cookie reuses the same session.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	handler.ServeHTTP(httptest.NewRecorder(), req)

	sess, ok := store.Get(cookies[0].Value)
	if !ok {
		t.Fatal("session not found after second request")
	}
	if v, _ := sess.Get("counter"); v != "1+1" {
		t.Errorf("counter = %q, want %q", v, "1+1")
	}
}

func TestMiddlewareIgnoresUnknownCookie(t *testing.T) {
	store := NewMemoryStore()

	handler := Middleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			t.Fatal("no session in request context")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "stale-or-forged"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	// A fresh session must have been created under a new ID.
	if store.Len() != 1 {
		t.Fatalf("store.Len() = %d, want 1", store.Len())
	}
	if len(w.Result().Cookies()) != 1 {
		t.Error("expected replacement session cookie")
	}
}
