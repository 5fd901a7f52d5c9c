// Package extract normalizes chat completion response bodies.
//
// Completion endpoints answer in one of three formats:
//   - Responses API: a typed output[] item list, or a flat output_text string
//   - Chat Completions: object=="chat.completion" with choices[].message
//   - Legacy Completions: choices[] entries carrying a bare text field
//
// Classification is an explicit step (Classify) that resolves the body to a
// closed Shape tag; Text and ToolCalls dispatch on that tag rather than
// probing keys inline. Malformed or unrecognized bodies degrade to empty
// results — extraction never fails and never mutates its input.
package extract

import "encoding/json"

// Shape identifies which response format a body uses.
type Shape int

const (
	// ShapeUnknown is any body that matches none of the known formats.
	// Unknown bodies extract to empty text and no tool calls.
	ShapeUnknown Shape = iota
	// ShapeResponses is the Responses API format (output or output_text
	// present at the top level).
	ShapeResponses
	// ShapeChatCompletion is the Chat Completions format
	// (object == "chat.completion").
	ShapeChatCompletion
	// ShapeLegacy is the legacy Completions format (a non-empty choices
	// list whose entries carry text directly).
	ShapeLegacy
)

// String returns the shape name for logging.
func (s Shape) String() string {
	switch s {
	case ShapeResponses:
		return "responses"
	case ShapeChatCompletion:
		return "chat.completion"
	case ShapeLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// ToolCall is a tool invocation normalized out of any response shape.
// The wire form is {type, id, function: {name, arguments}} regardless of
// which format the call came from.
type ToolCall struct {
	Type     string       `json:"type"`
	ID       string       `json:"id"`
	Function FunctionCall `json:"function"`
}

// FunctionCall holds the function name and its raw argument payload.
// Arguments is a JSON string (the providers encode it that way), defaulting
// to "" when absent.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// envelope is the minimal top-level view used for classification.
// RawMessage fields distinguish "key absent" (nil) from "key: null".
type envelope struct {
	Object     string          `json:"object"`
	Output     json.RawMessage `json:"output"`
	OutputText json.RawMessage `json:"output_text"`
	Choices    json.RawMessage `json:"choices"`
}

// Classify resolves a response body to its Shape. Precedence:
//
//  1. output or output_text present         → ShapeResponses
//  2. object == "chat.completion"           → ShapeChatCompletion
//  3. choices is a non-empty list           → ShapeLegacy
//  4. anything else (incl. malformed JSON)  → ShapeUnknown
//
// A Responses body keeps its classification even when output is empty or
// null — presence of the key decides, matching the upstream APIs.
func Classify(body []byte) Shape {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ShapeUnknown
	}

	if env.Output != nil || env.OutputText != nil {
		return ShapeResponses
	}

	if env.Object == "chat.completion" {
		return ShapeChatCompletion
	}

	if env.Choices != nil {
		var choices []json.RawMessage
		if err := json.Unmarshal(env.Choices, &choices); err == nil && len(choices) > 0 {
			return ShapeLegacy
		}
	}

	return ShapeUnknown
}

// Text extracts the flat assistant text from a response body.
// Fragments are concatenated in encounter order with no separator.
// Returns "" for unknown shapes and malformed bodies — never an error.
func Text(body []byte) string {
	switch Classify(body) {
	case ShapeResponses:
		return textFromResponses(body)
	case ShapeChatCompletion:
		return textFromChatCompletion(body)
	case ShapeLegacy:
		return textFromLegacy(body)
	default:
		return ""
	}
}

// ToolCalls extracts normalized tool calls from a response body.
// Source order is preserved; there is no deduplication.
//
// Dispatch keys on the output list specifically, not the broader shape:
// calls only ever live in output items, so a body with output present
// but no call items yields an empty result with no fallthrough, while a
// body carrying only output_text (still ShapeResponses for Text) has no
// item list to scan and falls to the Chat Completions check. Legacy and
// unknown shapes carry no tool calls by definition.
func ToolCalls(body []byte) []ToolCall {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil
	}

	if env.Output != nil {
		return toolCallsFromResponses(body)
	}

	if env.Object == "chat.completion" {
		return toolCallsFromChatCompletion(body)
	}

	return nil
}

// stringOrRaw decodes a JSON value that is usually a string but may arrive
// as a bare object in some provider variants. Strings decode normally;
// null and absent become ""; anything else is kept as its raw JSON text.
func stringOrRaw(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
