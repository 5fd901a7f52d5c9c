package extract

import "encoding/json"

// chatCompletionBody models the Chat Completions shape:
//
//	{
//	  "object": "chat.completion",
//	  "choices": [{
//	    "message": {
//	      "content": "...",
//	      "tool_calls": [{
//	        "id": "call_abc",
//	        "type": "function",
//	        "function": {"name": "f", "arguments": "{...}"}
//	      }]
//	    }
//	  }]
//	}
//
// Only the first choice is consulted, matching the API's behavior of
// returning tool calls on a single choice.
type chatCompletionBody struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatMessage struct {
	// Content is a string in practice but may be null or (for some
	// multimodal gateways) a part list; non-string content extracts to "".
	Content   json.RawMessage `json:"content"`
	ToolCalls []chatToolCall  `json:"tool_calls"`
}

type chatToolCall struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Function rawFunctionCall `json:"function"`
}

// textFromChatCompletion returns choices[0].message.content, or "" when
// choices is empty or content is absent, null, or not a string.
func textFromChatCompletion(body []byte) string {
	var cb chatCompletionBody
	if err := json.Unmarshal(body, &cb); err != nil {
		return ""
	}

	if len(cb.Choices) == 0 {
		return ""
	}

	content := cb.Choices[0].Message.Content
	if len(content) == 0 || string(content) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(content, &s); err != nil {
		return ""
	}
	return s
}

// toolCallsFromChatCompletion maps choices[0].message.tool_calls into the
// normalized form. Type defaults to "function" when absent; id is copied
// as-is; name and arguments default to "".
func toolCallsFromChatCompletion(body []byte) []ToolCall {
	var cb chatCompletionBody
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil
	}

	if len(cb.Choices) == 0 {
		return nil
	}

	var calls []ToolCall
	for _, tc := range cb.Choices[0].Message.ToolCalls {
		typ := tc.Type
		if typ == "" {
			typ = "function"
		}

		calls = append(calls, ToolCall{
			Type: typ,
			ID:   tc.ID,
			Function: FunctionCall{
				Name:      tc.Function.Name,
				Arguments: stringOrRaw(tc.Function.Arguments),
			},
		})
	}

	return calls
}
