package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestAPIKeyMiddleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash key: %v", err)
	}
	mw := NewAPIKeyMiddleware(string(hash))

	called := false
	handler := mw.Handle(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	t.Run("missing key", func(t *testing.T) {
		called = false
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/admin/queue", nil))
		if rec.Code != http.StatusUnauthorized || called {
			t.Errorf("Expected 401 without key, got %d called=%v", rec.Code, called)
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodGet, "/admin/queue", nil)
		req.Header.Set("X-API-Key", "guessing")
		rec := httptest.NewRecorder()
		handler(rec, req)
		if rec.Code != http.StatusUnauthorized || called {
			t.Errorf("Expected 401 with wrong key, got %d called=%v", rec.Code, called)
		}
	})

	t.Run("valid key", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodGet, "/admin/queue", nil)
		req.Header.Set("X-API-Key", "letmein")
		rec := httptest.NewRecorder()
		handler(rec, req)
		if rec.Code != http.StatusOK || !called {
			t.Errorf("Expected pass-through, got %d called=%v", rec.Code, called)
		}
	})
}
