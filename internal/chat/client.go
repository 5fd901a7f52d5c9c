// Package chat implements the HTTP transport for chat completion calls.
//
// The contract is deliberately small: one blocking POST per invocation
// with a caller-supplied timeout, returning the raw decoded-JSON response
// body. No retries, no backoff, no streaming — a non-2xx status or an
// undecodable body is surfaced as an error and that's the whole failure
// model. Response interpretation lives in the extract package.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nodeflow/nodeflow/internal/chatlog"
)

// maxErrorBody caps how much of an upstream error body is echoed into
// error messages.
const maxErrorBody = 2048

// Request carries everything needed for one completion call.
type Request struct {
	BaseURL        string            // API base, with or without /chat/completions suffix.
	APIKey         string            // Bearer token for the Authorization header.
	Model          string            // Model name passed through verbatim.
	Messages       []chatlog.Message // Ordered message log to send.
	Tools          []any             // Optional tools array; omitted when empty.
	Temperature    float64
	MaxTokens      int     // 0 omits max_tokens from the request.
	TimeoutSeconds float64 // 0 means no per-request deadline.
}

// Client sends completion requests. Safe for concurrent use.
type Client struct {
	httpClient *http.Client
}

// NewClient returns a transport client. Timeouts are per-request
// (Request.TimeoutSeconds), not per-client.
func NewClient() *Client {
	return &Client{httpClient: &http.Client{}}
}

// Complete sends one chat completion request and returns the raw response
// body. The caller owns interpretation of the body's shape.
func (c *Client) Complete(ctx context.Context, req Request) ([]byte, error) {
	if req.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("messages must be a non-empty list")
	}

	if req.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutSeconds*float64(time.Second)))
		defer cancel()
	}

	payload := map[string]any{
		"model":       req.Model,
		"messages":    req.Messages,
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		payload["tools"] = req.Tools
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := Endpoint(req.BaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

	slog.Debug("chat completion request", "endpoint", endpoint, "model", req.Model, "messages", len(req.Messages))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending completion request to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading completion response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := respBody
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, fmt.Errorf("completion request failed: %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	if !json.Valid(respBody) {
		return nil, fmt.Errorf("completion response is not valid JSON")
	}

	return respBody, nil
}

// Endpoint normalizes an API base into the chat completions URL.
// Trailing slashes and an already-present /chat/completions suffix are
// stripped first, so both forms of base URL work.
func Endpoint(base string) string {
	base = strings.TrimRight(base, "/")
	base = strings.TrimSuffix(base, "/chat/completions")
	return base + "/chat/completions"
}
