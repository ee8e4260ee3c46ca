package suggest

import (
	"github.com/rootline/rootline/pkg/profile"
	"github.com/rootline/rootline/pkg/refs"
)

// Row is one field-level Before/After comparison. Sources are citations
// shown alongside the values; they never cause a row on their own.
type Row struct {
	Field         profile.Field `json:"field"`
	Before        string        `json:"before"`
	After         string        `json:"after"`
	BeforeSources []string      `json:"before_sources,omitempty"`
	AfterSources  []string      `json:"after_sources,omitempty"`
}

// Result is the outcome of [Diff].
type Result struct {
	Rows []Row `json:"rows"`
	// NoChanges is set when the patch renders identically to the current
	// profile, so callers can tell "nothing changed" from "still loading".
	NoChanges bool `json:"no_changes"`
	// Ignored lists patch keys that are not profile fields.
	Ignored []string `json:"ignored,omitempty"`
}

// Diff compares the current profile with the profile after p, field by
// field in the order of [profile.Fields]. A row is emitted only when the two
// rendered strings differ. References render through labels, or as raw ids
// when labels is nil or has not resolved them.
//
// Diff is a pure function of its inputs: repeated calls with the same
// snapshot, patch and labels return identical results.
func Diff(current profile.Snapshot, p Patch, labels *refs.Labels) (Result, error) {
	after, err := Merge(current, p)
	if err != nil {
		return Result{}, err
	}

	label := profile.RawIDs
	if labels != nil {
		label = labels.Label
	}

	res := Result{Rows: []Row{}, Ignored: p.Ignored()}
	for _, f := range profile.Fields {
		before := profile.Render(current, f, label)
		next := profile.Render(after, f, label)
		if before == next {
			continue
		}
		res.Rows = append(res.Rows, Row{
			Field:         f,
			Before:        before,
			After:         next,
			BeforeSources: profile.Sources(current, f),
			AfterSources:  profile.Sources(after, f),
		})
	}
	res.NoChanges = len(res.Rows) == 0
	return res, nil
}
