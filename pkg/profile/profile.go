// Package profile models a person's current profile and renders its fields
// as display strings.
//
// The same formatting functions are used by the CLI, the HTTP API and the
// suggestion diff engine, so two values that look the same to a user always
// produce the same string.
package profile

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rootline/rootline/pkg/refs"
)

// Name holds every given, family and maiden name of a person.
type Name struct {
	First  []string `json:"first,omitempty"`
	Last   []string `json:"last,omitempty"`
	Maiden []string `json:"maiden,omitempty"`

	Sources []string `json:"sources,omitempty"`
}

// Event is a dated, optionally located life event.
type Event struct {
	Date    string   `json:"date,omitempty"`
	PlaceID string   `json:"place_id,omitempty"`
	Cause   string   `json:"cause,omitempty"`
	Sources []string `json:"sources,omitempty"`
}

// Burial is one burial record. A person may have several, for instance an
// initial burial and a reinterment.
type Burial struct {
	Date       string   `json:"date,omitempty"`
	CemeteryID string   `json:"cemetery_id,omitempty"`
	Sources    []string `json:"sources,omitempty"`
}

// Burials is a list of burial records. It decodes from a single object, a
// list, or null, and always encodes as a list.
type Burials []Burial

// UnmarshalJSON accepts an object, a list of objects, or null.
func (b *Burials) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*b = nil
		return nil
	case data[0] == '{':
		var one Burial
		if err := json.Unmarshal(data, &one); err != nil {
			return fmt.Errorf("decode burial: %w", err)
		}
		*b = Burials{one}
		return nil
	case data[0] == '[':
		var list []Burial
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("decode burials: %w", err)
		}
		*b = list
		return nil
	}
	return fmt.Errorf("decode burials: unexpected %q", data[:1])
}

// EthnicityRef points at an ethnicity record.
type EthnicityRef struct {
	ID      string   `json:"id,omitempty"`
	Sources []string `json:"sources,omitempty"`
}

// Snapshot is the current state of a profile.
type Snapshot struct {
	TreeRef    string       `json:"tree_ref"`
	Name       Name         `json:"name"`
	Sex        string       `json:"sex,omitempty"`
	Birth      Event        `json:"birth"`
	Death      Event        `json:"death"`
	Deceased   bool         `json:"deceased"`
	Burial     Burials      `json:"burial,omitempty"`
	Ethnicity  EthnicityRef `json:"ethnicity"`
	OwnerID    string       `json:"owner_id,omitempty"`
	PictureURL string       `json:"picture_url,omitempty"`
}

// RefKeys returns every place, cemetery and ethnicity the snapshot references.
func (s Snapshot) RefKeys() []refs.Key {
	keys := []refs.Key{
		refs.PlaceKey(s.Birth.PlaceID),
		refs.PlaceKey(s.Death.PlaceID),
	}
	for _, b := range s.Burial {
		keys = append(keys, refs.CemeteryKey(b.CemeteryID))
	}
	keys = append(keys, refs.EthnicityKey(s.Ethnicity.ID))
	return refs.Dedupe(keys)
}

// Summary is the minimal view of a person used in relationship previews.
type Summary struct {
	ID         string `json:"id"`
	TreeRef    string `json:"tree_ref"`
	Name       Name   `json:"name"`
	Sex        string `json:"sex,omitempty"`
	BirthDate  string `json:"birth_date,omitempty"`
	DeathDate  string `json:"death_date,omitempty"`
	Deceased   bool   `json:"deceased"`
	PictureURL string `json:"picture_url,omitempty"`
}

// Label renders the person as "Name (birth–death)".
func (s Summary) Label() string {
	name := FormatName(s.Name)
	if name == Empty {
		name = s.TreeRef
	}
	birth, death := s.BirthDate, ""
	if s.Deceased {
		death = s.DeathDate
	}
	switch {
	case birth == "" && death == "":
		return name
	case death == "":
		return fmt.Sprintf("%s (b. %s)", name, birth)
	case birth == "":
		return fmt.Sprintf("%s (d. %s)", name, death)
	}
	return fmt.Sprintf("%s (%s–%s)", name, birth, death)
}
