package e2e

import (
	"github.com/cucumber/godog"

	"memberverify/e2e/steps/admin"
	"memberverify/e2e/steps/common"
	"memberverify/e2e/steps/ratelimit"
	"memberverify/e2e/steps/verification"
)

// RegisterSteps registers every step package against one scenario.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	ratelimit.RegisterSteps(ctx, tc)
	verification.RegisterSteps(ctx, tc)
	admin.RegisterSteps(ctx, tc)
}
