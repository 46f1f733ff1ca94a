package admin

import (
	"context"

	"github.com/cucumber/godog"
)

type TestContext interface {
	SetHeader(key, value string)
	GetAdminToken() string
	GetCronSecret() string
}

// RegisterSteps registers the credential steps for /admin and /cron.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &adminSteps{tc: tc}

	ctx.Step(`^I am authenticated as admin "([^"]*)"$`, steps.asAdmin)
	ctx.Step(`^I am the job scheduler$`, steps.asScheduler)
}

type adminSteps struct {
	tc TestContext
}

func (s *adminSteps) asAdmin(ctx context.Context, adminID string) error {
	if s.tc.GetAdminToken() == "" {
		return godog.ErrSkip
	}
	s.tc.SetHeader("X-Admin-Token", s.tc.GetAdminToken())
	s.tc.SetHeader("X-Admin-ID", adminID)
	return nil
}

func (s *adminSteps) asScheduler(ctx context.Context) error {
	if s.tc.GetCronSecret() == "" {
		return godog.ErrSkip
	}
	s.tc.SetHeader("Authorization", "Bearer "+s.tc.GetCronSecret())
	return nil
}
