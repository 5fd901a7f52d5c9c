package extract

import "encoding/json"

// legacyBody models the legacy Completions shape — a choices list whose
// entries carry text directly, with no message envelope:
//
//	{"choices": [{"text": "..."}]}
//
// Legacy responses never carry tool calls.
type legacyBody struct {
	Choices []legacyChoice `json:"choices"`
}

type legacyChoice struct {
	Text json.RawMessage `json:"text"`
}

// textFromLegacy returns choices[0].text, or "" when the field is absent,
// null, or not a string.
func textFromLegacy(body []byte) string {
	var lb legacyBody
	if err := json.Unmarshal(body, &lb); err != nil {
		return ""
	}

	if len(lb.Choices) == 0 {
		return ""
	}

	text := lb.Choices[0].Text
	if len(text) == 0 || string(text) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(text, &s); err != nil {
		return ""
	}
	return s
}
