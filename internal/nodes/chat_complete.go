package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/nodeflow/nodeflow/internal/chat"
	"github.com/nodeflow/nodeflow/internal/chatlog"
	"github.com/nodeflow/nodeflow/internal/extract"
	"github.com/nodeflow/nodeflow/internal/node"
)

// chatCompleteNode sends a message log to a chat completions endpoint and
// emits the normalized response: flat text, the raw JSON, the extracted
// tool calls, and the log with the assistant turn appended for chaining
// into the next request.
type chatCompleteNode struct {
	client         *chat.Client
	apiBase        string
	model          string
	timeoutSeconds float64
}

func newChatCompleteNode(deps Deps) *chatCompleteNode {
	return &chatCompleteNode{
		client:         deps.Chat,
		apiBase:        deps.APIBase,
		model:          deps.Model,
		timeoutSeconds: deps.TimeoutSeconds,
	}
}

func (n *chatCompleteNode) Schema() node.Schema {
	return node.Schema{
		ID:          "chat_complete",
		DisplayName: "Chat Completion",
		Category:    "api/text",
		Description: "Send a raw messages array to a chat completions endpoint with a custom base URL and API key.",
		Inputs: []node.Port{
			{Name: "api_base", Type: node.PortString, Default: n.apiBase,
				Tooltip: "Base URL for the OpenAI-compatible API (no trailing slash needed)."},
			{Name: "api_key", Type: node.PortString, Default: "",
				Tooltip: "API key for the Authorization header; falls back to OPENAI_API_KEY."},
			{Name: "model", Type: node.PortString, Default: n.model,
				Tooltip: "Model name to send to the endpoint."},
			{Name: "messages_json", Type: node.PortJSON,
				Tooltip: "JSON array of chat messages to send as the messages field."},
			{Name: "tools_json", Type: node.PortJSON, Default: "[]", Optional: true,
				Tooltip: "Optional tools array JSON."},
			{Name: "temperature", Type: node.PortFloat, Default: 1.0},
			{Name: "max_tokens", Type: node.PortInt, Default: 1024,
				Tooltip: "Set to 0 to omit max_tokens from the request."},
			{Name: "timeout_seconds", Type: node.PortFloat, Default: n.timeoutSeconds,
				Tooltip: "Request timeout in seconds."},
		},
		Outputs: []node.Port{
			{Name: "response_text", Type: node.PortString,
				Tooltip: "Normalized text extracted from the response."},
			{Name: "raw_json", Type: node.PortJSON,
				Tooltip: "Full JSON response from the API."},
			{Name: "tool_calls_json", Type: node.PortJSON,
				Tooltip: "Normalized tool calls extracted from the response."},
			{Name: "messages_json_out", Type: node.PortJSON,
				Tooltip: "Messages array with this completion's assistant turn appended."},
		},
	}
}

func (n *chatCompleteNode) Execute(ctx context.Context, in node.Inputs) (node.Outputs, error) {
	apiKey := in.String("api_key")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("api_key is required; provide it via input or OPENAI_API_KEY")
	}

	messagesJSON := in.String("messages_json")
	if messagesJSON == "" {
		return nil, fmt.Errorf("messages_json is required; provide a JSON-encoded non-empty list of messages")
	}
	messages, err := chatlog.Decode([]byte(messagesJSON))
	if err != nil {
		return nil, fmt.Errorf("messages_json: %w", err)
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("messages_json must decode to a non-empty list of messages")
	}

	var tools []any
	if toolsJSON := in.String("tools_json"); toolsJSON != "" {
		if err := json.Unmarshal([]byte(toolsJSON), &tools); err != nil {
			return nil, fmt.Errorf("tools_json: %w", err)
		}
	}

	raw, err := n.client.Complete(ctx, chat.Request{
		BaseURL:        in.String("api_base"),
		APIKey:         apiKey,
		Model:          in.String("model"),
		Messages:       messages,
		Tools:          tools,
		Temperature:    in.Float("temperature"),
		MaxTokens:      in.Int("max_tokens"),
		TimeoutSeconds: in.Float("timeout_seconds"),
	})
	if err != nil {
		return nil, err
	}

	text := extract.Text(raw)
	calls := extract.ToolCalls(raw)
	if calls == nil {
		calls = []extract.ToolCall{}
	}

	callsJSON, err := json.MarshalIndent(calls, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding tool calls: %w", err)
	}

	var rawPretty bytes.Buffer
	if err := json.Indent(&rawPretty, raw, "", "  "); err != nil {
		// Already validated by the transport; fall back to the raw bytes.
		rawPretty.Write(raw)
	}

	messagesOut, err := chatlog.EncodeIndent(chatlog.AppendAssistantTurn(messages, text, calls))
	if err != nil {
		return nil, err
	}

	return node.Outputs{
		"response_text":     text,
		"raw_json":          rawPretty.String(),
		"tool_calls_json":   string(callsJSON),
		"messages_json_out": string(messagesOut),
	}, nil
}
