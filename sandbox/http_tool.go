package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/opsloop/sentinel/security"
)

// maxResponseBytes bounds how much of an http.request response body the
// sandbox will buffer.
const maxResponseBytes = 10 << 20

// httpRequest issues an HTTP call with the sandbox's 10s client timeout.
// It never inherits cwd.
func (s *Sandbox) httpRequest(ctx context.Context, args map[string]any) map[string]any {
	method := stringArg(args, "method")
	if method == "" {
		method = http.MethodGet
	}
	url := stringArg(args, "url")
	if url == "" {
		return errResult("http.request: url is required")
	}

	var body io.Reader
	if payload, ok := args["json"]; ok {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return errResult("http.request: encode json body: %s", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return errResult("http.request: %s", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range stringMapArg(args, "headers") {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errResult("http.request: %s", err)
	}
	defer resp.Body.Close()

	respBody, err := security.ReadCapped(resp.Body, maxResponseBytes)
	if err != nil {
		return errResult("http.request: read response: %s", err)
	}

	return map[string]any{
		"ok":     resp.StatusCode >= 200 && resp.StatusCode < 300,
		"status": resp.StatusCode,
		"body":   string(respBody),
	}
}
