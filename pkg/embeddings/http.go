package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 60 * time.Second

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// postJSON sends body as JSON to url and decodes a 200 reply into out.
// service prefixes every error. An empty bearer sends no Authorization header.
func postJSON(ctx context.Context, client *http.Client, service, url, bearer string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", service, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s: %w", service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(service, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", service, err)
	}
	return nil
}

// statusError reports a non-200 reply together with the start of its body.
// A JSON body of the form {"error": ...} is reduced to its message.
func statusError(service string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return fmt.Errorf("%s returned status: %s", service, resp.Status)
	}
	if msg := errorMessage(body); msg != "" {
		return fmt.Errorf("%s returned status: %s: %s", service, resp.Status, msg)
	}
	return fmt.Errorf("%s returned status: %s: %s", service, resp.Status, body)
}

// errorMessage understands both {"error":"..."} (Ollama) and
// {"error":{"message":"..."}} (OpenAI-compatible servers).
func errorMessage(body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &envelope) != nil || len(envelope.Error) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(envelope.Error, &s) == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(envelope.Error, &obj) == nil {
		return obj.Message
	}
	return ""
}
