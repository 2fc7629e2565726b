package traits

import (
	"encoding/json"
	"fmt"
)

// Profile is the durable per-label traits record tracked across a
// conversation. Kind is its identity: a profile whose Kind differs from the
// active classification label is stale.
type Profile struct {
	Kind     string
	Base     Object
	State    Object
	Evidence []Value
}

// NewProfile returns a fresh profile for label with the conventional
// context.memory timeline/patterns arrays seeded.
func NewProfile(label string) Profile {
	return Profile{
		Kind: label,
		Base: Object{},
		State: Object{
			"context": ObjectValue(Object{
				"memory": ObjectValue(Object{
					"timeline": Array(),
					"patterns": Array(),
				}),
			}),
		},
		Evidence: []Value{},
	}
}

// Clone returns a deep copy of p.
func (p Profile) Clone() Profile {
	out := Profile{
		Kind:     p.Kind,
		Base:     p.Base.Clone(),
		State:    p.State.Clone(),
		Evidence: make([]Value, len(p.Evidence)),
	}
	for i, e := range p.Evidence {
		out.Evidence[i] = e.Clone()
	}
	return out
}

// WithPatches returns a copy of p whose state has patches applied.
func (p Profile) WithPatches(patches []PatchEntry) Profile {
	out := p.Clone()
	out.State = Apply(p.State, patches)
	return out
}

// Equal reports whether two profiles hold the same identity and contents.
func (p Profile) Equal(o Profile) bool {
	if p.Kind != o.Kind || !p.Base.Equal(o.Base) || !p.State.Equal(o.State) {
		return false
	}
	if len(p.Evidence) != len(o.Evidence) {
		return false
	}
	for i := range p.Evidence {
		if !p.Evidence[i].Equal(o.Evidence[i]) {
			return false
		}
	}
	return true
}

type profileJSON struct {
	Kind     string  `json:"type"`
	Base     Object  `json:"base"`
	State    Object  `json:"state"`
	Evidence []Value `json:"evidence"`
}

func (p Profile) MarshalJSON() ([]byte, error) {
	ev := p.Evidence
	if ev == nil {
		ev = []Value{}
	}
	return json.Marshal(profileJSON{Kind: p.Kind, Base: p.Base, State: p.State, Evidence: ev})
}

func (p *Profile) UnmarshalJSON(data []byte) error {
	var raw profileJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Base == nil {
		raw.Base = Object{}
	}
	if raw.State == nil {
		raw.State = Object{}
	}
	if raw.Evidence == nil {
		raw.Evidence = []Value{}
	}
	*p = Profile(raw)
	return nil
}

// ParseProfile decodes persisted profile bytes. A JSON null or a non-object
// document is rejected.
func ParseProfile(data []byte) (Profile, error) {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return Profile{}, fmt.Errorf("decoding profile: %w", err)
	}
	if v.Kind() != KindObject {
		return Profile{}, fmt.Errorf("decoding profile: expected object, got %s", v.Kind())
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("decoding profile: %w", err)
	}
	return p, nil
}
