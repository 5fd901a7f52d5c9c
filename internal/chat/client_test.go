package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nodeflow/nodeflow/internal/chatlog"
)

func TestEndpoint(t *testing.T) {
	cases := map[string]string{
		"https://api.openai.com/v1":                   "https://api.openai.com/v1/chat/completions",
		"https://api.openai.com/v1/":                  "https://api.openai.com/v1/chat/completions",
		"https://api.openai.com/v1/chat/completions":  "https://api.openai.com/v1/chat/completions",
		"https://api.openai.com/v1/chat/completions/": "https://api.openai.com/v1/chat/completions",
	}
	for base, want := range cases {
		if got := Endpoint(base); got != want {
			t.Errorf("Endpoint(%q) = %q, want %q", base, got, want)
		}
	}
}

func TestComplete_SendsExpectedPayload(t *testing.T) {
	var gotAuth string
	var gotPayload map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decoding request payload: %v", err)
		}
		w.Write([]byte(`{"object": "chat.completion", "choices": []}`))
	}))
	defer srv.Close()

	req := Request{
		BaseURL:     srv.URL,
		APIKey:      "sk-test",
		Model:       "gpt-4o-mini",
		Messages:    []chatlog.Message{{"role": "user", "content": "hi"}},
		Temperature: 0.5,
		MaxTokens:   0, // must be omitted
	}

	body, err := c().Complete(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid(body) {
		t.Error("response body should be valid JSON")
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization: got %q", gotAuth)
	}
	if gotPayload["model"] != "gpt-4o-mini" {
		t.Errorf("model: got %v", gotPayload["model"])
	}
	if _, present := gotPayload["max_tokens"]; present {
		t.Error("max_tokens must be omitted when zero")
	}
	if _, present := gotPayload["tools"]; present {
		t.Error("tools must be omitted when empty")
	}
}

func TestComplete_IncludesOptionalFields(t *testing.T) {
	var gotPayload map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotPayload)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	req := Request{
		BaseURL:   srv.URL,
		APIKey:    "k",
		Model:     "m",
		Messages:  []chatlog.Message{{"role": "user", "content": "q"}},
		MaxTokens: 128,
		Tools:     []any{map[string]any{"type": "function"}},
	}

	if _, err := c().Complete(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	if gotPayload["max_tokens"] != float64(128) {
		t.Errorf("max_tokens: got %v", gotPayload["max_tokens"])
	}
	if _, present := gotPayload["tools"]; !present {
		t.Error("tools missing from payload")
	}
}

func TestComplete_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "invalid key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := c().Complete(context.Background(), minimalReq(srv.URL))
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "invalid key") {
		t.Errorf("error should carry the upstream body, got: %v", err)
	}
}

func TestComplete_InvalidJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway error</html>"))
	}))
	defer srv.Close()

	if _, err := c().Complete(context.Background(), minimalReq(srv.URL)); err == nil {
		t.Fatal("expected error for non-JSON response body")
	}
}

func TestComplete_ValidatesInputs(t *testing.T) {
	if _, err := c().Complete(context.Background(), Request{BaseURL: "http://x", Model: "m", Messages: []chatlog.Message{{}}}); err == nil {
		t.Error("expected error when api key is missing")
	}
	if _, err := c().Complete(context.Background(), Request{BaseURL: "http://x", APIKey: "k", Model: "m"}); err == nil {
		t.Error("expected error when messages are empty")
	}
}

func c() *Client { return NewClient() }

func minimalReq(base string) Request {
	return Request{
		BaseURL:  base,
		APIKey:   "k",
		Model:    "m",
		Messages: []chatlog.Message{{"role": "user", "content": "q"}},
	}
}
