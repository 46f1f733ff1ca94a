// Package requesttime pins a single "now" for each HTTP request so domain
// timestamps and audit records written during one request agree.
package requesttime

import (
	"net/http"
	"time"

	"memberverify/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
