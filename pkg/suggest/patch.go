package suggest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/rootline/rootline/pkg/profile"
	"github.com/rootline/rootline/pkg/refs"
)

// ErrInvalidPatch is returned for a payload that is not a JSON object or
// whose fields do not fit the profile.
var ErrInvalidPatch = errors.New("invalid patch")

// Patch maps profile field names to their proposed partial values.
type Patch map[string]json.RawMessage

// objectFields are merged key by key; every other mergeable field is
// replaced whole.
var objectFields = map[string]bool{
	"name":      true,
	"birth":     true,
	"death":     true,
	"ethnicity": true,
}

// mergeable lists the patch keys applied by [Merge].
var mergeable = map[string]bool{
	"name":      true,
	"sex":       true,
	"birth":     true,
	"death":     true,
	"deceased":  true,
	"burial":    true,
	"ethnicity": true,
}

// ParsePatch decodes a patch. The payload must be a JSON object.
func ParsePatch(data []byte) (Patch, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Patch{}, nil
	}
	if data[0] != '{' {
		return nil, fmt.Errorf("%w: payload is not an object", ErrInvalidPatch)
	}
	var p Patch
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	return p, nil
}

// Ignored returns the patch keys [Merge] does not apply, sorted.
func (p Patch) Ignored() []string {
	var out []string
	for k := range p {
		if !mergeable[k] {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

// RefKeys returns the places, cemeteries and ethnicities the patch
// references. Fields that do not decode are skipped.
func (p Patch) RefKeys() []refs.Key {
	var keys []refs.Key
	placeOf := func(field string) {
		var ev struct {
			PlaceID string `json:"place_id"`
		}
		if raw, ok := p[field]; ok && json.Unmarshal(raw, &ev) == nil {
			keys = append(keys, refs.PlaceKey(ev.PlaceID))
		}
	}
	placeOf("birth")
	placeOf("death")
	if raw, ok := p["burial"]; ok {
		var b profile.Burials
		if json.Unmarshal(raw, &b) == nil {
			for _, u := range b {
				keys = append(keys, refs.CemeteryKey(u.CemeteryID))
			}
		}
	}
	if raw, ok := p["ethnicity"]; ok {
		var e profile.EthnicityRef
		if json.Unmarshal(raw, &e) == nil {
			keys = append(keys, refs.EthnicityKey(e.ID))
		}
	}
	return refs.Dedupe(keys)
}

// Merge returns the profile as it would look with p applied.
//
// Object fields (name, birth, death, ethnicity) are shallow merged: keys
// present in the patch win, the rest keep their current value. sex, deceased
// and burial are replaced. A null value clears the field. current is never
// modified.
func Merge(current profile.Snapshot, p Patch) (profile.Snapshot, error) {
	base, err := toObject(current)
	if err != nil {
		return profile.Snapshot{}, err
	}
	for key, val := range p {
		if !mergeable[key] {
			continue
		}
		val = bytes.TrimSpace(val)
		if objectFields[key] && isObject(val) && isObject(base[key]) {
			merged, err := mergeObjects(base[key], val)
			if err != nil {
				return profile.Snapshot{}, fmt.Errorf("%w: %s: %v", ErrInvalidPatch, key, err)
			}
			base[key] = merged
			continue
		}
		base[key] = val
	}

	data, err := json.Marshal(base)
	if err != nil {
		return profile.Snapshot{}, fmt.Errorf("encode merged profile: %w", err)
	}
	var out profile.Snapshot
	if err := json.Unmarshal(data, &out); err != nil {
		return profile.Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	return out, nil
}

func toObject(v any) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return m, nil
}

func mergeObjects(cur, patch json.RawMessage) (json.RawMessage, error) {
	var a, b map[string]json.RawMessage
	if err := json.Unmarshal(cur, &a); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(patch, &b); err != nil {
		return nil, err
	}
	if a == nil {
		a = make(map[string]json.RawMessage, len(b))
	}
	for k, v := range b {
		a[k] = v
	}
	return json.Marshal(a)
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
