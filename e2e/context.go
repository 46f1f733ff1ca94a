// Package e2e drives a running memberverify server through its HTTP surface
// with godog scenarios.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"
)

// TestContext carries per-scenario HTTP state.
type TestContext struct {
	BaseURL    string
	AdminToken string
	CronSecret string

	client   *http.Client
	headers  map[string]string
	status   int
	body     []byte
	respHead http.Header
}

// NewTestContext reads the target from E2E_BASE_URL, E2E_ADMIN_TOKEN and
// E2E_CRON_SECRET.
func NewTestContext() *TestContext {
	base := os.Getenv("E2E_BASE_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	return &TestContext{
		BaseURL:    strings.TrimSuffix(base, "/"),
		AdminToken: os.Getenv("E2E_ADMIN_TOKEN"),
		CronSecret: os.Getenv("E2E_CRON_SECRET"),
		client:     &http.Client{Timeout: 30 * time.Second},
		headers:    map[string]string{},
	}
}

// Reset clears headers and the last response between scenarios.
func (tc *TestContext) Reset() {
	tc.headers = map[string]string{}
	tc.status = 0
	tc.body = nil
	tc.respHead = nil
}

func (tc *TestContext) SetHeader(key, value string) {
	tc.headers[key] = value
}

func (tc *TestContext) GetAdminToken() string { return tc.AdminToken }
func (tc *TestContext) GetCronSecret() string { return tc.CronSecret }

func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.do(http.MethodGet, path, nil, "", headers)
}

func (tc *TestContext) POST(path string, body any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	return tc.do(http.MethodPost, path, reader, "application/json", nil)
}

// POSTMultipart sends fields plus one file part named "file".
func (tc *TestContext) POSTMultipart(path string, fields map[string]string, filename string, content []byte) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return err
		}
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			return err
		}
		if _, err := part.Write(content); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	return tc.do(http.MethodPost, path, &buf, w.FormDataContentType(), nil)
}

func (tc *TestContext) do(method, path string, body io.Reader, contentType string, headers map[string]string) error {
	req, err := http.NewRequest(method, tc.BaseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range tc.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.body, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	tc.status = resp.StatusCode
	tc.respHead = resp.Header
	return nil
}

func (tc *TestContext) GetLastResponseStatus() int  { return tc.status }
func (tc *TestContext) GetLastResponseBody() []byte { return tc.body }

func (tc *TestContext) GetLastResponseHeader(key string) string {
	if tc.respHead == nil {
		return ""
	}
	return tc.respHead.Get(key)
}

// GetResponseField reads a top-level field from the last JSON response.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var data map[string]any
	if err := json.Unmarshal(tc.body, &data); err != nil {
		return nil, fmt.Errorf("decode response %q: %w", string(tc.body), err)
	}
	v, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("field %q not in response %s", field, string(tc.body))
	}
	return v, nil
}
