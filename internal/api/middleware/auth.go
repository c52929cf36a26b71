package middleware

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
	"udl/internal/pkg/errors"
)

// APIKeyMiddleware guards the admin endpoints with an X-API-Key header
// compared against a bcrypt hash from config.
type APIKeyMiddleware struct {
	keyHash string
}

func NewAPIKeyMiddleware(keyHash string) *APIKeyMiddleware {
	return &APIKeyMiddleware{keyHash: keyHash}
}

func (m *APIKeyMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Missing API key", nil)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(m.keyHash), []byte(key)); err != nil {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid API key", nil)
			return
		}

		next(w, r)
	}
}
