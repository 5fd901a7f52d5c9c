package extract

import (
	"encoding/json"
	"strings"
)

// responsesBody models the Responses API shape. Only the fields needed for
// text and tool call extraction are parsed:
//
//	{
//	  "output": [
//	    { "type": "message", "content": [{"type": "output_text", "text": "..."}] },
//	    { "type": "function_call", "id": "fc_1", "call_id": "call_1",
//	      "function": {"name": "exec", "arguments": "{...}"} },
//	    { "type": "reasoning", ... }
//	  ],
//	  "output_text": "flat form, used verbatim when present"
//	}
type responsesBody struct {
	Output     []outputItem    `json:"output"`
	OutputText json.RawMessage `json:"output_text"`
}

// outputItem is one entry in output[]. Type decides which fields matter:
//   - "message":      Content
//   - "output_text":  Text
//   - "function_call", "tool_call", "mcp_call": ID/CallID + Function
//
// Everything else is skipped for text and ignored for tool calls.
type outputItem struct {
	Type     string          `json:"type"`
	ID       string          `json:"id"`
	CallID   string          `json:"call_id"`
	Text     string          `json:"text"`
	Content  []contentPart   `json:"content"`
	Function rawFunctionCall `json:"function"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// rawFunctionCall tolerates arguments arriving as either a JSON string or
// a bare object (seen in some OpenAI-compatible gateways).
type rawFunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// nonTextTypes are output item types that never contribute to extracted
// text. Items outside this set that are neither "message" nor
// "output_text" contribute nothing either, but the skip set is kept
// explicit to match the API's documented item taxonomy.
var nonTextTypes = map[string]bool{
	"function_call":        true,
	"tool_call":            true,
	"mcp_call":             true,
	"mcp_approval_request": true,
	"mcp_list_tools":       true,
	"tool_output":          true,
	"reasoning":            true,
	"code_interpreter":     true,
	"computer_use":         true,
}

// callTypes are the output item types that carry a tool invocation.
var callTypes = map[string]bool{
	"function_call": true,
	"tool_call":     true,
	"mcp_call":      true,
}

// textFromResponses extracts flat text from a Responses API body.
// A top-level output_text wins outright (null → ""). Otherwise message
// items contribute their output_text/input_text content parts and bare
// output_text items contribute their text, in encounter order.
func textFromResponses(body []byte) string {
	var rb responsesBody
	if err := json.Unmarshal(body, &rb); err != nil {
		return ""
	}

	if rb.OutputText != nil {
		var s string
		if err := json.Unmarshal(rb.OutputText, &s); err != nil {
			return ""
		}
		return s
	}

	var b strings.Builder
	for _, item := range rb.Output {
		if nonTextTypes[item.Type] {
			continue
		}

		switch item.Type {
		case "message":
			for _, part := range item.Content {
				if (part.Type == "output_text" || part.Type == "input_text") && part.Text != "" {
					b.WriteString(part.Text)
				}
			}
		case "output_text":
			if item.Text != "" {
				b.WriteString(item.Text)
			}
		}
	}

	return b.String()
}

// toolCallsFromResponses extracts function_call/tool_call/mcp_call items.
// The call ID prefers the item's id over call_id; name and arguments come
// from the nested function object, defaulting to "".
func toolCallsFromResponses(body []byte) []ToolCall {
	var rb responsesBody
	if err := json.Unmarshal(body, &rb); err != nil {
		return nil
	}

	var calls []ToolCall
	for _, item := range rb.Output {
		if !callTypes[item.Type] {
			continue
		}

		id := item.ID
		if id == "" {
			id = item.CallID
		}

		calls = append(calls, ToolCall{
			Type: item.Type,
			ID:   id,
			Function: FunctionCall{
				Name:      item.Function.Name,
				Arguments: stringOrRaw(item.Function.Arguments),
			},
		})
	}

	return calls
}
