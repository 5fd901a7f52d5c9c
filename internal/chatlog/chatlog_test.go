package chatlog

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/nodeflow/nodeflow/internal/extract"
)

func TestDecode_EmptyAndNull(t *testing.T) {
	for _, input := range []string{"", "[]", "null"} {
		msgs, err := Decode([]byte(input))
		if err != nil {
			t.Fatalf("Decode(%q): %v", input, err)
		}
		if len(msgs) != 0 {
			t.Errorf("Decode(%q): expected empty log, got %v", input, msgs)
		}
	}
}

func TestDecode_NotAnArray(t *testing.T) {
	if _, err := Decode([]byte(`{"role": "user"}`)); err == nil {
		t.Error("expected error decoding a non-array log")
	}
}

func TestDecode_PreservesUnknownFields(t *testing.T) {
	msgs, err := Decode([]byte(`[{"role": "user", "content": "hi", "name": "alice"}]`))
	if err != nil {
		t.Fatal(err)
	}
	if msgs[0]["name"] != "alice" {
		t.Error("unknown field dropped on decode")
	}
}

func TestAppendAssistantTurn_TextOnly(t *testing.T) {
	out := AppendAssistantTurn([]Message{}, "hi", nil)
	if len(out) != 1 {
		t.Fatalf("expected 1 message, got %d", len(out))
	}

	turn := out[0]
	if turn["role"] != "assistant" {
		t.Errorf("role: got %v", turn["role"])
	}
	if _, present := turn["tool_calls"]; present {
		t.Error("tool_calls key must be absent when no calls were extracted")
	}

	content, ok := turn["content"].([]any)
	if !ok || len(content) != 1 {
		t.Fatalf("content: got %v", turn["content"])
	}
	part := content[0].(map[string]any)
	if part["type"] != "text" || part["text"] != "hi" {
		t.Errorf("content part: got %v", part)
	}
}

func TestAppendAssistantTurn_ToolCallsOnly(t *testing.T) {
	calls := []extract.ToolCall{
		{Type: "function", ID: "c1", Function: extract.FunctionCall{Name: "f", Arguments: "{}"}},
	}
	out := AppendAssistantTurn(nil, "", calls)

	turn := out[0]
	if _, present := turn["content"]; present {
		t.Error("content key must be absent when text is empty")
	}
	tcs, ok := turn["tool_calls"].([]any)
	if !ok || len(tcs) != 1 {
		t.Fatalf("tool_calls: got %v", turn["tool_calls"])
	}
	tc := tcs[0].(map[string]any)
	if tc["id"] != "c1" || tc["type"] != "function" {
		t.Errorf("tool call: got %v", tc)
	}
	fn := tc["function"].(map[string]any)
	if fn["name"] != "f" || fn["arguments"] != "{}" {
		t.Errorf("function: got %v", fn)
	}
}

func TestAppendAssistantTurn_DoesNotMutateInput(t *testing.T) {
	original := []Message{{"role": "user", "content": "q"}}
	snapshot := make([]Message, len(original))
	copy(snapshot, original)

	out := AppendAssistantTurn(original, "a", nil)

	if len(original) != 1 {
		t.Fatalf("input length changed: %d", len(original))
	}
	if !reflect.DeepEqual(original, snapshot) {
		t.Error("input log mutated")
	}
	if len(out) != 2 {
		t.Errorf("expected 2 messages in output, got %d", len(out))
	}
	// Appending to the returned slice must not leak into the original.
	_ = append(out, Message{"role": "user"})
	if len(original) != 1 {
		t.Error("output append affected input")
	}
}

func TestAppend_UserMessage(t *testing.T) {
	out, err := Append(nil, "user", "hello", "")
	if err != nil {
		t.Fatal(err)
	}
	msg := out[0]
	if msg["role"] != "user" {
		t.Errorf("role: got %v", msg["role"])
	}
	parts := msg["content"].([]any)
	if len(parts) != 1 {
		t.Fatalf("expected 1 content part, got %d", len(parts))
	}
}

func TestAppend_EmptyContentKeepsEmptyPartList(t *testing.T) {
	out, err := Append(nil, "user", "", "")
	if err != nil {
		t.Fatal(err)
	}
	parts, ok := out[0]["content"].([]any)
	if !ok || len(parts) != 0 {
		t.Errorf("expected empty part list, got %v", out[0]["content"])
	}
}

func TestAppend_ImagePart(t *testing.T) {
	out, err := Append(nil, "user", "look", "data:image/png;base64,AAAA")
	if err != nil {
		t.Fatal(err)
	}
	parts := out[0]["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected text+image parts, got %d", len(parts))
	}
	img := parts[1].(map[string]any)
	if img["type"] != "image_url" {
		t.Errorf("part type: got %v", img["type"])
	}
	url := img["image_url"].(map[string]any)
	if url["url"] != "data:image/png;base64,AAAA" || url["detail"] != "auto" {
		t.Errorf("image_url: got %v", url)
	}
}

func TestAppend_InvalidRole(t *testing.T) {
	if _, err := Append(nil, "narrator", "x", ""); err == nil {
		t.Error("expected error for invalid role")
	}
}

func TestAppend_ToolResolvesLastCallID(t *testing.T) {
	log := mustDecode(t, `[
		{"role": "user", "content": "q"},
		{"role": "assistant", "tool_calls": [
			{"id": "call_1", "function": {"name": "a"}},
			{"id": "call_2", "function": {"name": "b"}}
		]}
	]`)

	out, err := Append(log, "tool", "result", "")
	if err != nil {
		t.Fatal(err)
	}
	if got := out[len(out)-1]["tool_call_id"]; got != "call_2" {
		t.Errorf("expected last call id call_2, got %v", got)
	}
}

func TestAppend_ToolCallIDFallback(t *testing.T) {
	log := mustDecode(t, `[
		{"role": "assistant", "tool_calls": [{"call_id": "legacy_7", "function": {}}]}
	]`)

	out, err := Append(log, "tool", "r", "")
	if err != nil {
		t.Fatal(err)
	}
	if got := out[len(out)-1]["tool_call_id"]; got != "legacy_7" {
		t.Errorf("expected call_id fallback legacy_7, got %v", got)
	}
}

func TestAppend_ToolSkipsAssistantsWithoutUsableID(t *testing.T) {
	log := mustDecode(t, `[
		{"role": "assistant", "tool_calls": [{"id": "call_old", "function": {}}]},
		{"role": "assistant", "tool_calls": [{"function": {"name": "idless"}}]}
	]`)

	out, err := Append(log, "tool", "r", "")
	if err != nil {
		t.Fatal(err)
	}
	if got := out[len(out)-1]["tool_call_id"]; got != "call_old" {
		t.Errorf("expected fallback to earlier assistant, got %v", got)
	}
}

func TestAppend_ToolWithoutPriorCall(t *testing.T) {
	log := mustDecode(t, `[{"role": "assistant", "content": "no tools here"}]`)

	_, err := Append(log, "tool", "r", "")
	if !errors.Is(err, ErrNoToolCall) {
		t.Errorf("expected ErrNoToolCall, got %v", err)
	}
}

func TestAppend_DoesNotMutateInput(t *testing.T) {
	log := mustDecode(t, `[{"role": "user", "content": "q"}]`)
	before, _ := Encode(log)

	if _, err := Append(log, "user", "again", ""); err != nil {
		t.Fatal(err)
	}

	after, _ := Encode(log)
	if string(before) != string(after) {
		t.Error("input log mutated by Append")
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	log := mustDecode(t, `[{"role": "system", "content": "be terse"}]`)
	log, err := Append(log, "user", "hi", "")
	if err != nil {
		t.Fatal(err)
	}

	data, err := Encode(log)
	if err != nil {
		t.Fatal(err)
	}

	var check []map[string]any
	if err := json.Unmarshal(data, &check); err != nil {
		t.Fatalf("encoded log is not valid JSON: %v", err)
	}
	if len(check) != 2 {
		t.Errorf("expected 2 messages, got %d", len(check))
	}
}

func TestEncode_NilIsEmptyArray(t *testing.T) {
	data, err := Encode(nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]" {
		t.Errorf("expected [], got %s", data)
	}
}

func mustDecode(t *testing.T, raw string) []Message {
	t.Helper()
	msgs, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decoding fixture: %v", err)
	}
	return msgs
}
