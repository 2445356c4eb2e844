package middleware

import (
	"net/http"
	"strings"

	"github.com/authkit-go/authkit"
	"github.com/authkit-go/authkit/token"
)

// AccessCookie is the cookie consulted when no bearer header is present.
// It matches the name set by the httpapi package.
const AccessCookie = "access_token"

// Require wraps a handler so it only runs with a valid session token.
func Require(signer *token.Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extract(r)
			if raw == "" {
				unauthorized(w)
				return
			}

			claims, err := signer.Verify(raw)
			if err != nil {
				// The sub-reason stays server-side; the response never
				// distinguishes expired from forged.
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(authkit.WithClaims(r.Context(), claims)))
		})
	}
}

func extract(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	if cookie, err := r.Cookie(AccessCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}
