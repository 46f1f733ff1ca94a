package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"memberverify/pkg/platform/secrets"
	"memberverify/pkg/requestcontext"
)

const (
	// HeaderAdminToken carries the shared admin secret.
	HeaderAdminToken = "X-Admin-Token"
	// HeaderAdminID identifies the acting administrator for audit entries.
	HeaderAdminID = "X-Admin-ID"
)

// RequireAdminToken guards admin routes with a shared token and records the
// acting administrator in the request context.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return requireAdmin(func(token string) bool {
		return expectedToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) == 1
	}, logger)
}

// RequireAdminTokenHash is RequireAdminToken for a bcrypt-hashed token.
func RequireAdminTokenHash(hash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return requireAdmin(func(token string) bool {
		return hash != "" && token != "" && secrets.Verify(token, hash) == nil
	}, logger)
}

func requireAdmin(valid func(token string) bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if !valid(r.Header.Get(HeaderAdminToken)) {
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "admin token required")
				return
			}

			adminID := strings.TrimSpace(r.Header.Get(HeaderAdminID))
			if adminID == "" {
				adminID = "admin"
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithAdminID(ctx, adminID)))
		})
	}
}

// RequireBearer guards job triggers with "Authorization: Bearer <secret>".
// The header must match exactly.
func RequireBearer(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	expected := []byte("Bearer " + secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get("Authorization"))
			if secret == "" || subtle.ConstantTimeCompare(got, expected) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "job trigger bearer mismatch",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
				)
				writeUnauthorized(w, "bearer secret required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
