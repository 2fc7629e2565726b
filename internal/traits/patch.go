package traits

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PatchEntry sets one leaf of the state tree. Path is dot-delimited and
// relative to the profile's state.
type PatchEntry struct {
	Path  string `json:"path"`
	Value Value  `json:"value"`
}

// UnmarshalJSON accepts {"path","value"} and, when value is absent, the
// analysis service's {"path","value_json"} form where the value is a JSON
// document encoded as a string.
func (p *PatchEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Path      *string         `json:"path"`
		Value     json.RawMessage `json:"value"`
		ValueJSON *string         `json:"value_json"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Path == nil {
		return fmt.Errorf("patch entry has no path")
	}

	var v Value
	switch {
	case raw.Value != nil:
		if err := v.UnmarshalJSON(raw.Value); err != nil {
			return fmt.Errorf("patch %q: decoding value: %w", *raw.Path, err)
		}
	case raw.ValueJSON != nil:
		if err := v.UnmarshalJSON([]byte(*raw.ValueJSON)); err != nil {
			return fmt.Errorf("patch %q: decoding value_json: %w", *raw.Path, err)
		}
	}

	p.Path = *raw.Path
	p.Value = v
	return nil
}

// DecodePatchList decodes an updated_traits_patch field. ok is false when the
// field is missing, null, not an array, or holds an element that is not a
// patch entry; callers skip the profile update in that case.
func DecodePatchList(raw json.RawMessage) (entries []PatchEntry, ok bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || !strings.HasPrefix(trimmed, "[") {
		return nil, false
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false
	}
	if entries == nil {
		entries = []PatchEntry{}
	}
	return entries, true
}

// Apply returns a deep copy of state with patches applied in order. state is
// never modified. Missing or non-object intermediate segments are replaced by
// empty objects; the leaf is overwritten unconditionally.
func Apply(state Object, patches []PatchEntry) Object {
	out := state.Clone()
	for _, p := range patches {
		setPath(out, splitPath(p.Path), p.Value.Clone())
	}
	return out
}

func setPath(root Object, segs []string, v Value) {
	cur := root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].AsObject()
		if !ok {
			next = Object{}
			cur[seg] = ObjectValue(next)
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = v
}

// splitPath never returns an empty slice; "" addresses the key "".
func splitPath(path string) []string {
	return strings.Split(path, ".")
}
