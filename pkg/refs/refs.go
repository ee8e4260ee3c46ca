// Package refs turns place, cemetery and ethnicity ids into display labels.
//
// Profiles and suggestion patches reference these records by id only. Before
// a diff can be shown, every referenced id is looked up once through a
// [Lookup] and its label stored in a per-session [Labels] table. Lookups that
// fail or have not finished yet render as the raw id, so resolution never
// blocks a preview.
//
// # Usage
//
//	labels := refs.NewLabels()
//	report, err := refs.NewResolver(backend).Resolve(ctx, keys, labels)
//	fmt.Println(labels.Label(refs.PlaceKey("pl-7")))
package refs

import (
	"context"
	"fmt"
	"strings"
)

// Kind is the type of a referenced record.
type Kind string

const (
	KindPlace     Kind = "place"
	KindCemetery  Kind = "cemetery"
	KindEthnicity Kind = "ethnicity"
)

// Key identifies one referenced record.
type Key struct {
	Kind Kind
	ID   string
}

func (k Key) String() string { return string(k.Kind) + ":" + k.ID }

// PlaceKey returns the key of a place id.
func PlaceKey(id string) Key { return Key{Kind: KindPlace, ID: id} }

// CemeteryKey returns the key of a cemetery id.
func CemeteryKey(id string) Key { return Key{Kind: KindCemetery, ID: id} }

// EthnicityKey returns the key of an ethnicity id.
func EthnicityKey(id string) Key { return Key{Kind: KindEthnicity, ID: id} }

// Place is a locality record.
type Place struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Region  string `json:"region,omitempty"`
	Country string `json:"country,omitempty"`
}

// Label joins the non-empty parts of the place as "name, region, country".
func (p *Place) Label() string {
	if p == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Name, p.Region, p.Country} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// Cemetery is a burial ground with its location.
type Cemetery struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Place *Place `json:"place,omitempty"`
}

// Label returns "name (place)" or just the name when the place is unknown.
func (c *Cemetery) Label() string {
	if c == nil {
		return ""
	}
	name := strings.TrimSpace(c.Name)
	where := c.Place.Label()
	switch {
	case where == "":
		return name
	case name == "":
		return where
	}
	return fmt.Sprintf("%s (%s)", name, where)
}

// Ethnicity is an ethnic group record.
type Ethnicity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Label returns the ethnicity name.
func (e *Ethnicity) Label() string {
	if e == nil {
		return ""
	}
	return strings.TrimSpace(e.Name)
}

// Lookup fetches referenced records, usually from the backend.
type Lookup interface {
	Place(ctx context.Context, id string) (*Place, error)
	Cemetery(ctx context.Context, id string) (*Cemetery, error)
	Ethnicity(ctx context.Context, id string) (*Ethnicity, error)
}

// Dedupe returns keys without empty ids or repeats, in first-seen order.
func Dedupe(keys []Key) []Key {
	seen := make(map[Key]bool, len(keys))
	out := make([]Key, 0, len(keys))
	for _, k := range keys {
		if k.ID == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
