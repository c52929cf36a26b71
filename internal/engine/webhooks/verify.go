package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultSignatureHeader = "X-Webhook-Signature"

// Sign computes the hex HMAC-SHA256 signature senders are expected to put
// in the signature header.
func Sign(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// HMACVerifier returns a VerifyFunc checking a hex HMAC-SHA256 signature of
// the raw body against the given header.
func HMACVerifier(secret, header string) VerifyFunc {
	if header == "" {
		header = DefaultSignatureHeader
	}
	return func(rawBody []byte, headers http.Header) (bool, error) {
		sig := headers.Get(header)
		if sig == "" {
			return false, nil
		}
		return hmac.Equal([]byte(sig), []byte(Sign(secret, rawBody))), nil
	}
}

// JWTVerifier returns a VerifyFunc accepting an HS256 bearer token in the
// Authorization header. Malformed or expired tokens report false rather
// than an error; an error is reserved for verifier misconfiguration.
func JWTVerifier(secret string) VerifyFunc {
	return func(rawBody []byte, headers http.Header) (bool, error) {
		if secret == "" {
			return false, errors.New("jwt verifier: empty secret")
		}

		authHeader := headers.Get("Authorization")
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return false, nil
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil {
			return false, nil
		}
		return token.Valid, nil
	}
}
