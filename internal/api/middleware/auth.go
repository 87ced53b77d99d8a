// Package middleware holds HTTP middleware shared by the API routes.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/newthinker/tradecost/internal/api/response"
	"github.com/newthinker/tradecost/internal/core"
)

// APIKeyAuth rejects requests that do not carry apiKey, either in X-API-Key
// or as an "Authorization: Bearer" token. An empty apiKey disables the check.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	if apiKey == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	want := []byte(apiKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := requestKey(r)
			if key == "" {
				response.FromError(w, core.Errorf(core.ErrUnauthorized, "missing X-API-Key header or bearer token"))
				return
			}
			if subtle.ConstantTimeCompare([]byte(key), want) != 1 {
				response.FromError(w, core.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
