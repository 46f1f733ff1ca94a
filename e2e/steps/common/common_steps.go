package common

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

type TestContext interface {
	GET(path string, headers map[string]string) error
	POST(path string, body any) error
	SetHeader(key, value string)
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetLastResponseHeader(key string) string
}

// RegisterSteps registers request and assertion steps shared by all features.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^I GET "([^"]*)"$`, steps.get)
	ctx.Step(`^I POST to "([^"]*)" with an empty body$`, steps.postEmpty)
	ctx.Step(`^I set header "([^"]*)" to "([^"]*)"$`, steps.setHeader)
	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
	ctx.Step(`^the response should contain field "([^"]*)"$`, steps.shouldContainField)
	ctx.Step(`^the response header "([^"]*)" should be set$`, steps.headerShouldBeSet)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) get(ctx context.Context, path string) error {
	return s.tc.GET(path, nil)
}

func (s *commonSteps) postEmpty(ctx context.Context, path string) error {
	return s.tc.POST(path, map[string]any{})
}

func (s *commonSteps) setHeader(ctx context.Context, key, value string) error {
	s.tc.SetHeader(key, value)
	return nil
}

func (s *commonSteps) statusShouldBe(ctx context.Context, expected int) error {
	if got := s.tc.GetLastResponseStatus(); got != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, got, string(s.tc.GetLastResponseBody()))
	}
	return nil
}

func (s *commonSteps) fieldShouldBe(ctx context.Context, field, expected string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("expected %s=%q, got %q", field, expected, got)
	}
	return nil
}

func (s *commonSteps) shouldContainField(ctx context.Context, field string) error {
	_, err := s.tc.GetResponseField(field)
	return err
}

func (s *commonSteps) headerShouldBeSet(ctx context.Context, key string) error {
	if s.tc.GetLastResponseHeader(key) == "" {
		return fmt.Errorf("expected response header %s", key)
	}
	return nil
}
