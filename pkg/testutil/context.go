package testutil

import (
	"net/http"
	"time"

	"memberverify/pkg/requestcontext"
)

// WithAdminID marks the request as coming from an authenticated administrator,
// as the admin token middleware would.
func WithAdminID(req *http.Request, adminID string) *http.Request {
	return req.WithContext(requestcontext.WithAdminID(req.Context(), adminID))
}

// WithRequestTime pins the request clock.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

func WithClientIP(req *http.Request, ip string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, req.UserAgent()))
}
