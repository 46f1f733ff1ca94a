package ratelimit

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

type TestContext interface {
	POST(path string, body any) error
	SetHeader(key, value string)
	GetLastResponseStatus() int
	GetLastResponseHeader(key string) string
}

// RegisterSteps registers steps for the per-client request limits.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I am a client at IP "([^"]*)"$`, steps.clientAtIP)
	ctx.Step(`^I submit the contact form (\d+) times$`, steps.submitContactNTimes)
	ctx.Step(`^every submission should have been accepted$`, steps.allAccepted)
	ctx.Step(`^the next submission should be rejected with retry information$`, steps.nextRejected)
}

type ratelimitSteps struct {
	tc       TestContext
	statuses []int
}

func (s *ratelimitSteps) clientAtIP(ctx context.Context, ip string) error {
	s.tc.SetHeader("X-Forwarded-For", ip)
	return nil
}

func (s *ratelimitSteps) submitContactNTimes(ctx context.Context, n int) error {
	s.statuses = s.statuses[:0]
	for i := 0; i < n; i++ {
		if err := s.tc.POST("/contact", contactForm(i)); err != nil {
			return err
		}
		s.statuses = append(s.statuses, s.tc.GetLastResponseStatus())
	}
	return nil
}

func (s *ratelimitSteps) allAccepted(ctx context.Context) error {
	for i, status := range s.statuses {
		if status == http.StatusTooManyRequests {
			return fmt.Errorf("submission %d was rate limited", i+1)
		}
	}
	return nil
}

func (s *ratelimitSteps) nextRejected(ctx context.Context) error {
	if err := s.tc.POST("/contact", contactForm(len(s.statuses))); err != nil {
		return err
	}
	if got := s.tc.GetLastResponseStatus(); got != http.StatusTooManyRequests {
		return fmt.Errorf("expected 429, got %d", got)
	}
	if s.tc.GetLastResponseHeader("Retry-After") == "" {
		return fmt.Errorf("expected Retry-After header")
	}
	return nil
}

func contactForm(i int) map[string]string {
	return map[string]string{
		"name":    "E2E Member",
		"email":   "e2e.member@example.org",
		"subject": fmt.Sprintf("Question %d", i+1),
		"message": "Checking the contact form limits.",
	}
}
