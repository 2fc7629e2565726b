package analysis

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/20223096/mbti-app/internal/traits"
)

// Message is one conversation entry as the analysis service expects it.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /chat. Nil pointers encode as JSON null.
type ChatRequest struct {
	Messages          []Message       `json:"messages"`
	MBTI              *string         `json:"mbti"`
	RelationshipType  *string         `json:"relationship_type"`
	RelationshipState *string         `json:"relationship_state"`
	TraitsProfile     *traits.Profile `json:"traits_profile"`
}

// Optional returns nil for a blank string so it encodes as null.
func Optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// ChatResponse is the body returned by POST /chat.
type ChatResponse struct {
	AssistantMessage string   `json:"assistant_message"`
	Analysis         Analysis `json:"analysis_json"`
}

// Analysis keeps every advisory field of analysis_json undecoded. Only the
// patch and follow-up questions are interpreted.
type Analysis map[string]json.RawMessage

// UnmarshalJSON treats anything other than a JSON object as an empty analysis.
func (a *Analysis) UnmarshalJSON(data []byte) error {
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		*a = nil
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*a = m
	return nil
}

// Patch decodes updated_traits_patch. ok is false when the field is missing
// or not a well-formed list of patch entries.
func (a Analysis) Patch() ([]traits.PatchEntry, bool) {
	return traits.DecodePatchList(a["updated_traits_patch"])
}

// FollowUps returns the string entries of follow_up_questions in order,
// at most three of them. Anything that is not an array yields nil.
func (a Analysis) FollowUps() []string {
	raw, ok := a["follow_up_questions"]
	if !ok {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	var out []string
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		out = append(out, s)
		if len(out) == maxFollowUps {
			break
		}
	}
	return out
}

const maxFollowUps = 3

// Summary returns the advisory summary text, if the service sent one.
func (a Analysis) Summary() string {
	raw, ok := a["summary"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Confidence returns the advisory confidence score, if numeric.
func (a Analysis) Confidence() (float64, bool) {
	raw, ok := a["confidence"]
	if !ok {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}
