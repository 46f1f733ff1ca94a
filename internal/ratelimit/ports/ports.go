// Package ports defines the counter store contract shared by the rate limit
// service and its store implementations.
package ports

import (
	"context"
	"time"

	"memberverify/internal/ratelimit/models"
)

// Store manages fixed-window counters.
type Store interface {
	// Hit counts one request against key. A key seen after its window expired
	// starts a fresh window. When the count already reached limit the request is
	// rejected and the counter is left untouched.
	Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (*models.Result, error)

	// Reset clears the counter for a key.
	Reset(ctx context.Context, key string) error
}
