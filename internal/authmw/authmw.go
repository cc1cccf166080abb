// Package authmw guards the ingest endpoints with bearer token auth.
package authmw

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerToken returns middleware requiring an Authorization header with
// a Bearer token matching the expected value. Comparison is constant
// time. Rejections carry a WWW-Authenticate challenge so gateway probes
// and misconfigured producers get an actionable 401.
func BearerToken(token string) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := bearerFrom(r)
			if !ok {
				unauthorized(w, `{"error":"missing or malformed authorization header"}`)
				return
			}
			if subtle.ConstantTimeCompare(got, expected) != 1 {
				unauthorized(w, `{"error":"invalid token"}`)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerFrom(r *http.Request) ([]byte, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return nil, false
	}
	return []byte(auth[len("Bearer "):]), true
}

func unauthorized(w http.ResponseWriter, body string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="beacon"`)
	http.Error(w, body, http.StatusUnauthorized)
}
