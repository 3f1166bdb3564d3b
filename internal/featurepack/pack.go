// Package featurepack builds the ordered context document handed to the
// forecaster.
package featurepack

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Section names.
const (
	SectionUnits       = "units"
	SectionPlace       = "place"
	SectionWindow      = "window"
	SectionObsQuick    = "obs_quick"
	SectionProfile     = "profile_quick"
	SectionAlertsQuick = "alerts_quick"
	SectionUserContext = "user_context"
)

type entry struct {
	key   string
	value any
}

// Pack is an ordered set of named sections. A section is only ever present
// with a non-empty value.
type Pack struct {
	entries []entry
}

// New returns an empty pack.
func New() *Pack {
	return &Pack{}
}

// Set stores value under key and reports whether it was kept. Empty values
// are dropped and remove any previous value for key. Replacing a key keeps
// its original position.
func (p *Pack) Set(key string, value any) bool {
	if IsEmpty(value) {
		p.Delete(key)
		return false
	}
	for i := range p.entries {
		if p.entries[i].key == key {
			p.entries[i].value = value
			return true
		}
	}
	p.entries = append(p.entries, entry{key: key, value: value})
	return true
}

// Get returns the value stored under key.
func (p *Pack) Get(key string) (any, bool) {
	if p == nil {
		return nil, false
	}
	for _, e := range p.entries {
		if e.key == key {
			return e.value, true
		}
	}
	return nil, false
}

// Has reports whether key is present.
func (p *Pack) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Delete removes key.
func (p *Pack) Delete(key string) {
	for i, e := range p.entries {
		if e.key == key {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return
		}
	}
}

// Keys returns section names in insertion order.
func (p *Pack) Keys() []string {
	if p == nil {
		return nil
	}
	keys := make([]string, len(p.entries))
	for i, e := range p.entries {
		keys[i] = e.key
	}
	return keys
}

// Len returns the number of sections.
func (p *Pack) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

// MarshalJSON writes sections in insertion order.
func (p *Pack) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range p.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.value)
		if err != nil {
			return nil, fmt.Errorf("section %s: %w", e.key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON restores a pack, keeping the document's key order. Values are
// decoded generically.
func (p *Pack) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("feature pack: expected object, got %v", tok)
	}
	p.entries = nil
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("feature pack: unexpected key %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("feature pack section %s: %w", key, err)
		}
		p.Set(key, value)
	}
	_, err = dec.Token()
	return err
}

// IsEmpty reports whether value would serialise to null, "", [] or {}.
func IsEmpty(value any) bool {
	if value == nil {
		return true
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return true
	}
	switch string(bytes.TrimSpace(raw)) {
	case "null", `""`, "[]", "{}":
		return true
	}
	return false
}

// UsedFields lists the pack's populated fields. Object-valued sections expand
// to section.subkey paths, except units which is reported as a whole. The
// result is sorted and free of duplicates.
func UsedFields(p *Pack) []string {
	if p == nil {
		return []string{}
	}
	seen := make(map[string]struct{})
	for _, e := range p.entries {
		if IsEmpty(e.value) {
			continue
		}
		if e.key == SectionUnits {
			seen[e.key] = struct{}{}
			continue
		}
		inner, ok := objectFields(e.value)
		if !ok {
			seen[e.key] = struct{}{}
			continue
		}
		for _, sub := range inner {
			seen[e.key+"."+sub] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// objectFields returns the non-empty member names when value encodes as a
// JSON object.
func objectFields(value any) ([]string, bool) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(members))
	for k, v := range members {
		switch string(bytes.TrimSpace(v)) {
		case "null", `""`, "[]", "{}":
			continue
		}
		out = append(out, k)
	}
	return out, true
}
