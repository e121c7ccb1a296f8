package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// Auth guards the admin routes: market curation (PATCH /api/markets/{id})
// and bet settlement. The operator key travels in X-API-Key or as a Bearer
// token. An empty apiKey leaves the routes open.
func Auth(apiKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	want := sha256.Sum256([]byte(apiKey))
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := presentedKey(r)
			if !ok {
				deny(w, "admin API key required")
				return
			}
			// Comparing digests keeps the check constant-time in the key length.
			got := sha256.Sum256([]byte(key))
			if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
				logger.WarnContext(r.Context(), "admin request rejected",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("client_ip", clientIP(r)),
				)
				deny(w, "invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func presentedKey(r *http.Request) (string, bool) {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key, true
	}
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if found && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(token) != "" {
		return strings.TrimSpace(token), true
	}
	return "", false
}

func deny(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="predictmarket-admin"`)
	writeJSONError(w, http.StatusUnauthorized, msg)
}
