package verification

import (
	"context"

	"github.com/cucumber/godog"
)

type TestContext interface {
	POST(path string, body any) error
	POSTMultipart(path string, fields map[string]string, filename string, content []byte) error
}

// RegisterSteps registers the applicant-facing verification steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &verificationSteps{tc: tc}

	ctx.Step(`^I select method "([^"]*)" with token "([^"]*)"$`, steps.selectMethod)
	ctx.Step(`^I upload badge "([^"]*)" with token "([^"]*)"$`, steps.uploadBadge)
	ctx.Step(`^I upload no file with token "([^"]*)"$`, steps.uploadNoFile)
}

type verificationSteps struct {
	tc TestContext
}

func (s *verificationSteps) selectMethod(ctx context.Context, method, token string) error {
	return s.tc.POST("/verify/method", map[string]string{"token": token, "method": method})
}

func (s *verificationSteps) uploadBadge(ctx context.Context, filename, token string) error {
	// Smallest valid JPEG header; content is not decoded server side.
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0xFF, 0xD9}
	return s.tc.POSTMultipart("/verify/badge", map[string]string{"token": token}, filename, jpeg)
}

func (s *verificationSteps) uploadNoFile(ctx context.Context, token string) error {
	return s.tc.POSTMultipart("/verify/badge", map[string]string{"token": token}, "", nil)
}
