package daemon

import (
	"crypto/subtle"
	"io"
	"net/http"
	"strings"
)

// authMiddleware returns a middleware that validates bearer tokens. An empty
// token disables authentication entirely, which is the expected setup for
// loopback binds. Otherwise requests must carry an
// "Authorization: Bearer <token>" header matching the configured token.
func authMiddleware(token string, next http.HandlerFunc) http.HandlerFunc {
	token = strings.TrimSpace(token)
	if token == "" {
		return next
	}
	expected := []byte("Bearer " + token)
	return func(w http.ResponseWriter, r *http.Request) {
		supplied := []byte(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare(supplied, expected) != 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"unauthorized"}`+"\n")
			return
		}
		next(w, r)
	}
}
