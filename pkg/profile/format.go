package profile

import (
	"slices"
	"strings"

	"github.com/rootline/rootline/pkg/refs"
)

// Display strings.
const (
	Empty         = "—"
	LivingMarker  = "— living —"
	DeceasedLabel = "Deceased"
	UnitSep       = " • "
	BurialSep     = "; "
)

// LabelFunc returns the display label of a reference, or its raw id.
type LabelFunc func(refs.Key) string

// RawIDs is a LabelFunc that renders every reference as its id.
func RawIDs(k refs.Key) string { return k.ID }

// FormatName renders "First Last", adding the maiden name as "(née X)".
func FormatName(n Name) string {
	parts := append(nonEmpty(n.First), nonEmpty(n.Last)...)
	out := strings.Join(parts, " ")
	if maiden := strings.Join(nonEmpty(n.Maiden), " "); maiden != "" {
		if out == "" {
			out = maiden
		} else {
			out += " (née " + maiden + ")"
		}
	}
	return orEmpty(out)
}

// FormatSex renders a backend sex code.
func FormatSex(sex string) string {
	switch strings.ToUpper(strings.TrimSpace(sex)) {
	case "M", "MALE":
		return "Male"
	case "F", "FEMALE":
		return "Female"
	case "U", "UNKNOWN":
		return "Unknown"
	case "":
		return Empty
	}
	return sex
}

// FormatEvent renders "date • place", or whichever half is known.
func FormatEvent(date, placeLabel string) string {
	return orEmpty(joinUnit(date, placeLabel))
}

// FormatDeath renders a death event. A person not marked deceased is always
// shown as living, whatever stale death fields remain.
func FormatDeath(deceased bool, death Event, placeLabel string) string {
	if !deceased {
		return LivingMarker
	}
	out := joinUnit(death.Date, placeLabel)
	if cause := strings.TrimSpace(death.Cause); cause != "" {
		if out == "" {
			out = cause
		} else {
			out += " (" + cause + ")"
		}
	}
	if out == "" {
		return DeceasedLabel
	}
	return out
}

// FormatBurials renders every burial as "date • cemetery", joined by "; ".
func FormatBurials(burials Burials, cemeteryLabel func(id string) string) string {
	units := make([]string, 0, len(burials))
	for _, b := range burials {
		label := ""
		if b.CemeteryID != "" {
			label = cemeteryLabel(b.CemeteryID)
		}
		if u := joinUnit(b.Date, label); u != "" {
			units = append(units, u)
		}
	}
	return orEmpty(strings.Join(units, BurialSep))
}

// FormatEthnicity renders an ethnicity label.
func FormatEthnicity(label string) string {
	return orEmpty(label)
}

func joinUnit(date, where string) string {
	date, where = strings.TrimSpace(date), strings.TrimSpace(where)
	switch {
	case date == "":
		return where
	case where == "":
		return date
	}
	return date + UnitSep + where
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func orEmpty(s string) string {
	if s == "" {
		return Empty
	}
	return s
}

// Field is a diffable profile field.
type Field string

const (
	FieldName      Field = "name"
	FieldSex       Field = "sex"
	FieldBirth     Field = "birth"
	FieldDeath     Field = "death"
	FieldBurial    Field = "burial"
	FieldEthnicity Field = "ethnicity"
)

// Fields lists every diffable field in display order.
var Fields = []Field{FieldName, FieldSex, FieldBirth, FieldDeath, FieldBurial, FieldEthnicity}

// Render renders field f of s, looking up reference labels through label.
func Render(s Snapshot, f Field, label LabelFunc) string {
	if label == nil {
		label = RawIDs
	}
	place := func(id string) string {
		if id == "" {
			return ""
		}
		return label(refs.PlaceKey(id))
	}
	switch f {
	case FieldName:
		return FormatName(s.Name)
	case FieldSex:
		return FormatSex(s.Sex)
	case FieldBirth:
		return FormatEvent(s.Birth.Date, place(s.Birth.PlaceID))
	case FieldDeath:
		return FormatDeath(s.Deceased, s.Death, place(s.Death.PlaceID))
	case FieldBurial:
		return FormatBurials(s.Burial, func(id string) string { return label(refs.CemeteryKey(id)) })
	case FieldEthnicity:
		if s.Ethnicity.ID == "" {
			return Empty
		}
		return FormatEthnicity(label(refs.EthnicityKey(s.Ethnicity.ID)))
	}
	return Empty
}

// Sources returns the citations attached to field f of s.
func Sources(s Snapshot, f Field) []string {
	switch f {
	case FieldName:
		return slices.Clone(s.Name.Sources)
	case FieldBirth:
		return slices.Clone(s.Birth.Sources)
	case FieldDeath:
		return slices.Clone(s.Death.Sources)
	case FieldBurial:
		var out []string
		for _, b := range s.Burial {
			out = append(out, b.Sources...)
		}
		return out
	case FieldEthnicity:
		return slices.Clone(s.Ethnicity.Sources)
	}
	return nil
}
