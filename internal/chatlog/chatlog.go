// Package chatlog manages the ordered chat message log exchanged with
// completion endpoints.
//
// A log is a JSON array of message objects (role ∈ user/system/assistant/
// tool). Messages are kept as open maps rather than typed structs so that
// fields this package doesn't know about (names, provider extensions)
// survive a decode/append/encode round trip untouched.
//
// All append operations return a new slice — the input log is never
// mutated. The only validation error in this package is appending a tool
// message with no prior assistant tool call to answer (ErrNoToolCall);
// a tool result without a matching call is meaningless to the API.
package chatlog

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nodeflow/nodeflow/internal/extract"
)

// Message is one entry in the log. Well-known keys: "role", "content",
// "tool_calls", "tool_call_id".
type Message map[string]any

// Roles accepted by Append. The completion APIs reject anything else.
var ValidRoles = map[string]bool{
	"user":      true,
	"system":    true,
	"assistant": true,
	"tool":      true,
}

// ErrNoToolCall is returned when a tool message is appended but no prior
// assistant message in the log carries a tool call to attach it to.
var ErrNoToolCall = errors.New("no assistant tool call found upstream")

// Decode parses a JSON-encoded message array. An empty input decodes to
// an empty log. Anything that is not a JSON array is an error.
func Decode(data []byte) ([]Message, error) {
	if len(data) == 0 {
		return []Message{}, nil
	}

	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("decoding message log: %w", err)
	}
	if messages == nil {
		messages = []Message{}
	}
	return messages, nil
}

// Encode serializes the log as a compact JSON array.
func Encode(messages []Message) ([]byte, error) {
	if messages == nil {
		messages = []Message{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("encoding message log: %w", err)
	}
	return data, nil
}

// EncodeIndent serializes the log with two-space indentation, the form
// handed back to users for chaining into the next request.
func EncodeIndent(messages []Message) ([]byte, error) {
	if messages == nil {
		messages = []Message{}
	}
	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding message log: %w", err)
	}
	return data, nil
}

// AppendAssistantTurn returns a new log equal to messages plus one
// assistant entry built from extracted response text and tool calls.
// The content field is present only when text is non-empty, shaped as
// [{type:"text", text}]; tool_calls is present only when non-empty.
// An assistant turn with neither is just {role:"assistant"}.
func AppendAssistantTurn(messages []Message, text string, calls []extract.ToolCall) []Message {
	turn := Message{"role": "assistant"}

	if text != "" {
		turn["content"] = []any{
			map[string]any{"type": "text", "text": text},
		}
	}

	if len(calls) > 0 {
		tcs := make([]any, 0, len(calls))
		for _, c := range calls {
			tcs = append(tcs, map[string]any{
				"type": c.Type,
				"id":   c.ID,
				"function": map[string]any{
					"name":      c.Function.Name,
					"arguments": c.Function.Arguments,
				},
			})
		}
		turn["tool_calls"] = tcs
	}

	out := make([]Message, 0, len(messages)+1)
	out = append(out, messages...)
	return append(out, turn)
}

// Append returns a new log with one message appended. Content is shaped
// as a part list: a text part when content is non-empty, plus an
// image_url part when imageDataURI is set. The part list may be empty.
//
// role "tool" additionally resolves tool_call_id from the most recent
// assistant message carrying a tool call; with none in the log, Append
// fails with ErrNoToolCall.
func Append(messages []Message, role, content, imageDataURI string) ([]Message, error) {
	if !ValidRoles[role] {
		return nil, fmt.Errorf("invalid role %q (want user, system, assistant, or tool)", role)
	}

	parts := []any{}
	if content != "" {
		parts = append(parts, map[string]any{"type": "text", "text": content})
	}
	if imageDataURI != "" {
		parts = append(parts, map[string]any{
			"type": "image_url",
			"image_url": map[string]any{
				"url":    imageDataURI,
				"detail": "auto",
			},
		})
	}

	msg := Message{"role": role, "content": parts}

	if role == "tool" {
		id := lastToolCallID(messages)
		if id == "" {
			return nil, fmt.Errorf("appending tool message: %w", ErrNoToolCall)
		}
		msg["tool_call_id"] = id
	}

	out := make([]Message, 0, len(messages)+1)
	out = append(out, messages...)
	return append(out, msg), nil
}

// lastToolCallID walks the log backwards looking for an assistant message
// with a non-empty tool_calls list, and returns the last call's id
// (call_id as fallback). Assistant messages whose calls carry no usable
// id are skipped in favor of earlier ones. Returns "" when nothing is
// found.
func lastToolCallID(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if role, _ := msg["role"].(string); role != "assistant" {
			continue
		}

		tcs, ok := msg["tool_calls"].([]any)
		if !ok || len(tcs) == 0 {
			continue
		}

		last, ok := tcs[len(tcs)-1].(map[string]any)
		if !ok {
			continue
		}

		id, _ := last["id"].(string)
		if id == "" {
			id, _ = last["call_id"].(string)
		}
		if id != "" {
			return id
		}
	}
	return ""
}
