package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// QueryParam carries the token for clients that cannot set headers (browsers opening websockets).
const QueryParam = "token"

// Middleware rejects requests that do not present token. A nil token disables the check.
func Middleware(token Token, next http.Handler) http.Handler {
	if len(token) == 0 {
		return next
	}
	want := []byte(token.String())
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := presented(r)
		if got == "" {
			http.Error(w, "missing request token", http.StatusUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(strings.ToLower(got)), want) != 1 {
			http.Error(w, "invalid request token", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func presented(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if v, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(v)
		}
	}
	return r.URL.Query().Get(QueryParam)
}
