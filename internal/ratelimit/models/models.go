package models

import (
	"strings"
	"time"
)

// Namespace separates counters for different protected actions.
type Namespace string

const (
	// NamespaceContact guards the public contact form (5 req/min per client).
	NamespaceContact Namespace = "contact"
	// NamespaceVerify guards the public verification endpoints (10 req/min per client).
	NamespaceVerify Namespace = "verify"
)

// Policy is the limit applied to one namespace.
type Policy struct {
	Limit  int
	Window time.Duration
}

// DefaultPolicies returns the limits used by the HTTP surface.
func DefaultPolicies() map[Namespace]Policy {
	return map[Namespace]Policy{
		NamespaceContact: {Limit: 5, Window: time.Minute},
		NamespaceVerify:  {Limit: 10, Window: time.Minute},
	}
}

// Key builds the counter key for a namespace and client identifier.
func Key(ns Namespace, client string) string {
	client = strings.TrimSpace(client)
	if client == "" {
		client = "unknown"
	}
	return string(ns) + ":" + client
}

// Result represents the outcome of a rate limit check.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	// RetryAfter is in seconds, only set when not allowed.
	RetryAfter int `json:"retry_after,omitempty"`
}

// NewResult derives remaining capacity and retry hints from a window counter.
func NewResult(count, limit int, allowed bool, resetAt, now time.Time) *Result {
	remaining := max(limit-count, 0)
	res := &Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
	if !allowed {
		res.RetryAfter = max(int(resetAt.Sub(now).Seconds()+0.999), 1)
	}
	return res
}
