package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Keys are the API keys accepted by the read-only and trigger routes.
type Keys struct {
	Public []string
	Admin  []string
}

func (k Keys) enabled() bool { return len(k.Public) > 0 || len(k.Admin) > 0 }

// presentedKey reads "Authorization: Bearer <key>" or "X-API-Key".
func presentedKey(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func matches(given string, set []string) bool {
	if given == "" {
		return false
	}
	found := 0
	for _, k := range set {
		found |= subtle.ConstantTimeCompare([]byte(k), []byte(given))
	}
	return found == 1
}

func deny(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

// RequireAny lets through a public or an admin key.
// With no keys configured at all every request passes (local dev).
func RequireAny(keys Keys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !keys.enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := presentedKey(r)
			if matches(key, keys.Public) || matches(key, keys.Admin) {
				next.ServeHTTP(w, r)
				return
			}
			deny(w, http.StatusUnauthorized, "unauthorized")
		})
	}
}

// RequireAdmin lets through admin keys only: 401 without a key, 403 with
// a key that is not an admin key. With no admin keys configured every
// request passes (local dev).
func RequireAdmin(keys Keys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(keys.Admin) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := presentedKey(r)
			switch {
			case key == "":
				deny(w, http.StatusUnauthorized, "unauthorized")
			case matches(key, keys.Admin):
				next.ServeHTTP(w, r)
			default:
				deny(w, http.StatusForbidden, "forbidden")
			}
		})
	}
}
