package extract

import (
	"bytes"
	"testing"
)

// --- Classification tests ---

func TestClassify_Responses(t *testing.T) {
	cases := map[string]string{
		"output present":      `{"output": []}`,
		"output null":         `{"output": null}`,
		"output_text present": `{"output_text": "hi"}`,
		"output_text null":    `{"output_text": null}`,
		"both":                `{"output": [], "output_text": ""}`,
	}
	for name, body := range cases {
		if got := Classify([]byte(body)); got != ShapeResponses {
			t.Errorf("%s: expected ShapeResponses, got %v", name, got)
		}
	}
}

func TestClassify_ChatCompletion(t *testing.T) {
	body := `{"object": "chat.completion", "choices": []}`
	if got := Classify([]byte(body)); got != ShapeChatCompletion {
		t.Errorf("expected ShapeChatCompletion, got %v", got)
	}
}

func TestClassify_Legacy(t *testing.T) {
	if got := Classify([]byte(`{"choices": [{"text": "x"}]}`)); got != ShapeLegacy {
		t.Errorf("expected ShapeLegacy, got %v", got)
	}
	// Empty choices without a chat.completion object tag is unrecognized.
	if got := Classify([]byte(`{"choices": []}`)); got != ShapeUnknown {
		t.Errorf("empty choices: expected ShapeUnknown, got %v", got)
	}
}

func TestClassify_Unknown(t *testing.T) {
	cases := []string{
		`{}`,
		`{"object": "embedding"}`,
		`{"choices": "nope"}`,
		`not json`,
	}
	for _, body := range cases {
		if got := Classify([]byte(body)); got != ShapeUnknown {
			t.Errorf("%s: expected ShapeUnknown, got %v", body, got)
		}
	}
}

// --- Text extraction: Responses API ---

func TestText_OutputTextVerbatim(t *testing.T) {
	if got := Text([]byte(`{"output_text": "hello world"}`)); got != "hello world" {
		t.Errorf("expected verbatim output_text, got %q", got)
	}
	// Empty string is returned unchanged, not treated as missing.
	if got := Text([]byte(`{"output_text": ""}`)); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
	if got := Text([]byte(`{"output_text": null}`)); got != "" {
		t.Errorf("null output_text: expected empty, got %q", got)
	}
}

func TestText_OutputTextWinsOverOutput(t *testing.T) {
	body := []byte(`{
		"output_text": "flat",
		"output": [{"type": "message", "content": [{"type": "output_text", "text": "structured"}]}]
	}`)
	if got := Text(body); got != "flat" {
		t.Errorf("expected flat output_text to win, got %q", got)
	}
}

func TestText_MessageContentConcatenated(t *testing.T) {
	body := []byte(`{
		"output": [{
			"type": "message",
			"content": [
				{"type": "output_text", "text": "a"},
				{"type": "output_text", "text": "b"}
			]
		}]
	}`)
	if got := Text(body); got != "ab" {
		t.Errorf("expected \"ab\", got %q", got)
	}
}

func TestText_InputTextCounts(t *testing.T) {
	body := []byte(`{
		"output": [{
			"type": "message",
			"content": [
				{"type": "input_text", "text": "echo:"},
				{"type": "output_text", "text": "hi"},
				{"type": "refusal", "text": "nope"}
			]
		}]
	}`)
	if got := Text(body); got != "echo:hi" {
		t.Errorf("expected \"echo:hi\", got %q", got)
	}
}

func TestText_SkipsNonTextItems(t *testing.T) {
	body := []byte(`{
		"output": [
			{"type": "reasoning", "text": "thinking hard"},
			{"type": "function_call", "id": "fc_1", "function": {"name": "f", "arguments": "{}"}},
			{"type": "message", "content": [{"type": "output_text", "text": "done"}]},
			{"type": "output_text", "text": "!"}
		]
	}`)
	if got := Text(body); got != "done!" {
		t.Errorf("expected \"done!\", got %q", got)
	}
}

func TestText_EmptyContentFragmentsDropped(t *testing.T) {
	body := []byte(`{
		"output": [{
			"type": "message",
			"content": [
				{"type": "output_text", "text": ""},
				{"type": "output_text", "text": "x"}
			]
		}]
	}`)
	if got := Text(body); got != "x" {
		t.Errorf("expected \"x\", got %q", got)
	}
}

// --- Text extraction: Chat Completions ---

func TestText_ChatCompletion(t *testing.T) {
	body := []byte(`{
		"object": "chat.completion",
		"choices": [{"message": {"role": "assistant", "content": "answer"}}]
	}`)
	if got := Text(body); got != "answer" {
		t.Errorf("expected \"answer\", got %q", got)
	}
}

func TestText_ChatCompletionEmptyChoices(t *testing.T) {
	body := []byte(`{"object": "chat.completion", "choices": []}`)
	if got := Text(body); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestText_ChatCompletionNullContent(t *testing.T) {
	body := []byte(`{
		"object": "chat.completion",
		"choices": [{"message": {"content": null, "tool_calls": [{"id": "c1"}]}}]
	}`)
	if got := Text(body); got != "" {
		t.Errorf("expected empty for null content, got %q", got)
	}
}

// --- Text extraction: legacy Completions ---

func TestText_Legacy(t *testing.T) {
	if got := Text([]byte(`{"choices": [{"text": "x"}]}`)); got != "x" {
		t.Errorf("expected \"x\", got %q", got)
	}
	if got := Text([]byte(`{"choices": [{"text": null}]}`)); got != "" {
		t.Errorf("null text: expected empty, got %q", got)
	}
	if got := Text([]byte(`{"choices": [{}]}`)); got != "" {
		t.Errorf("absent text: expected empty, got %q", got)
	}
}

func TestText_MalformedJSON(t *testing.T) {
	if got := Text([]byte(`{{{`)); got != "" {
		t.Errorf("expected empty for malformed body, got %q", got)
	}
}

// --- Tool call extraction: Responses API ---

func TestToolCalls_ResponsesFunctionCall(t *testing.T) {
	body := []byte(`{
		"output": [
			{"type": "message", "content": [{"type": "output_text", "text": "running"}]},
			{"type": "function_call", "id": "fc_1", "call_id": "call_1",
			 "function": {"name": "exec", "arguments": "{\"cmd\": \"ls\"}"}}
		]
	}`)

	calls := ToolCalls(body)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	tc := calls[0]
	if tc.Type != "function_call" {
		t.Errorf("Type: expected function_call, got %q", tc.Type)
	}
	if tc.ID != "fc_1" {
		t.Errorf("ID: expected fc_1 (id wins over call_id), got %q", tc.ID)
	}
	if tc.Function.Name != "exec" {
		t.Errorf("Function.Name: expected exec, got %q", tc.Function.Name)
	}
	if tc.Function.Arguments != `{"cmd": "ls"}` {
		t.Errorf("Function.Arguments: got %q", tc.Function.Arguments)
	}
}

func TestToolCalls_ResponsesCallIDFallback(t *testing.T) {
	body := []byte(`{
		"output": [{"type": "tool_call", "call_id": "call_9", "function": {"name": "f"}}]
	}`)

	calls := ToolCalls(body)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].ID != "call_9" {
		t.Errorf("expected call_id fallback, got %q", calls[0].ID)
	}
	if calls[0].Function.Arguments != "" {
		t.Errorf("absent arguments should be empty, got %q", calls[0].Function.Arguments)
	}
}

func TestToolCalls_ResponsesOrderAndTypes(t *testing.T) {
	body := []byte(`{
		"output": [
			{"type": "mcp_call", "id": "m1", "function": {"name": "list"}},
			{"type": "reasoning"},
			{"type": "function_call", "id": "f1", "function": {"name": "run"}},
			{"type": "mcp_list_tools", "id": "skip_me"}
		]
	}`)

	calls := ToolCalls(body)
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].ID != "m1" || calls[0].Type != "mcp_call" {
		t.Errorf("call[0]: got %s/%s", calls[0].Type, calls[0].ID)
	}
	if calls[1].ID != "f1" || calls[1].Type != "function_call" {
		t.Errorf("call[1]: got %s/%s", calls[1].Type, calls[1].ID)
	}
}

func TestToolCalls_ResponsesEmptyOutputNoFallthrough(t *testing.T) {
	// A Responses body with only message items must yield an empty result,
	// even though it also carries a choices list a different shape would use.
	body := []byte(`{
		"output": [{"type": "message", "content": []}],
		"object": "chat.completion",
		"choices": [{"message": {"tool_calls": [{"id": "should_not_appear"}]}}]
	}`)

	if calls := ToolCalls(body); len(calls) != 0 {
		t.Errorf("expected no calls, got %v", calls)
	}
}

func TestToolCalls_OutputTextOnlyFallsToChatCompletion(t *testing.T) {
	// output_text alone classifies the body as Responses for text
	// extraction, but with no output list there are no items to scan for
	// calls, so tool calls come from the chat.completion branch.
	body := []byte(`{
		"object": "chat.completion",
		"output_text": "hi",
		"choices": [{"message": {"tool_calls": [
			{"id": "c1", "function": {"name": "f", "arguments": "{}"}}
		]}}]
	}`)

	if got := Text(body); got != "hi" {
		t.Errorf("Text: expected output_text, got %q", got)
	}

	calls := ToolCalls(body)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %v", calls)
	}
	if calls[0].ID != "c1" {
		t.Errorf("ID: expected c1, got %q", calls[0].ID)
	}
}

// --- Tool call extraction: Chat Completions ---

func TestToolCalls_ChatCompletion(t *testing.T) {
	body := []byte(`{
		"object": "chat.completion",
		"choices": [{"message": {"tool_calls": [
			{"id": "c1", "function": {"name": "f", "arguments": "{}"}}
		]}}]
	}`)

	calls := ToolCalls(body)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	tc := calls[0]
	if tc.Type != "function" {
		t.Errorf("Type should default to function, got %q", tc.Type)
	}
	if tc.ID != "c1" {
		t.Errorf("ID: expected c1, got %q", tc.ID)
	}
	if tc.Function.Name != "f" || tc.Function.Arguments != "{}" {
		t.Errorf("Function: got %+v", tc.Function)
	}
}

func TestToolCalls_ChatCompletionEmptyChoices(t *testing.T) {
	body := []byte(`{"object": "chat.completion", "choices": []}`)
	if calls := ToolCalls(body); len(calls) != 0 {
		t.Errorf("expected no calls, got %v", calls)
	}
}

func TestToolCalls_LegacyAndUnknown(t *testing.T) {
	if calls := ToolCalls([]byte(`{"choices": [{"text": "x"}]}`)); len(calls) != 0 {
		t.Errorf("legacy: expected no calls, got %v", calls)
	}
	if calls := ToolCalls([]byte(`{}`)); len(calls) != 0 {
		t.Errorf("unknown: expected no calls, got %v", calls)
	}
	if calls := ToolCalls([]byte(`garbage`)); len(calls) != 0 {
		t.Errorf("malformed: expected no calls, got %v", calls)
	}
}

// --- Purity ---

func TestExtraction_DoesNotMutateInput(t *testing.T) {
	body := []byte(`{
		"output": [
			{"type": "message", "content": [{"type": "output_text", "text": "a"}]},
			{"type": "function_call", "id": "f1", "function": {"name": "n", "arguments": "{}"}}
		]
	}`)
	before := make([]byte, len(body))
	copy(before, body)

	Text(body)
	ToolCalls(body)
	Classify(body)

	if !bytes.Equal(body, before) {
		t.Error("extraction mutated its input")
	}
}

func TestShapeString(t *testing.T) {
	if ShapeResponses.String() != "responses" || ShapeUnknown.String() != "unknown" {
		t.Error("unexpected shape names")
	}
}
