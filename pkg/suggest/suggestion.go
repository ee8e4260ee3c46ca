// Package suggest previews proposed profile edits for moderators.
//
// A [Suggestion] either patches fields of a profile ("update") or adds or
// removes a family relationship ("family_*"). Update suggestions are shown as
// an ordered list of Before/After [Row]s computed by [Diff]; relationship
// suggestions as a [RelationPreview] naming the people on both ends.
//
// [Previewer.Open] runs the whole flow for one suggestion: it fetches the
// current profile, resolves every referenced place, cemetery and ethnicity
// into a session-scoped label table, and computes the diff. Labels that have
// not resolved yet render as raw ids; [Preview.Recompute] fills them in
// without reordering rows.
package suggest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrAlreadyDecided is returned when deciding a suggestion that is no
	// longer pending.
	ErrAlreadyDecided = errors.New("suggestion already decided")

	// ErrInvalidStatus is returned for a decision other than approved or
	// rejected.
	ErrInvalidStatus = errors.New("invalid suggestion status")

	// ErrUnknownType is returned for a suggestion type rootline cannot preview.
	ErrUnknownType = errors.New("unknown suggestion type")
)

// Type is the kind of change a suggestion proposes.
type Type string

const (
	TypeUpdate              Type = "update"
	TypeFamilyAddParent     Type = "family_add_parent"
	TypeFamilyAddChild      Type = "family_add_child"
	TypeFamilyAddPartner    Type = "family_add_partner"
	TypeFamilyRemoveParent  Type = "family_remove_parent"
	TypeFamilyRemoveChild   Type = "family_remove_child"
	TypeFamilyRemovePartner Type = "family_remove_partner"
)

// Known reports whether t is a supported type.
func (t Type) Known() bool {
	return t == TypeUpdate || t.IsFamily()
}

// IsFamily reports whether t adds or removes a relationship.
func (t Type) IsFamily() bool {
	_, _, ok := t.parseFamily()
	return ok
}

// Action returns "add" or "remove" for family types.
func (t Type) Action() string {
	a, _, _ := t.parseFamily()
	return a
}

// Relation returns "parent", "child" or "partner" for family types.
func (t Type) Relation() string {
	_, r, _ := t.parseFamily()
	return r
}

func (t Type) parseFamily() (action, relation string, ok bool) {
	rest, found := strings.CutPrefix(string(t), "family_")
	if !found {
		return "", "", false
	}
	action, relation, found = strings.Cut(rest, "_")
	if !found || (action != "add" && action != "remove") {
		return "", "", false
	}
	switch relation {
	case "parent", "child", "partner":
		return action, relation, true
	}
	return "", "", false
}

// Status is the moderation state of a suggestion.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ParseStatus parses a decision. Only approved and rejected are decisions.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusApproved, StatusRejected:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// ParseFilter parses a status used to filter suggestion lists. Unlike
// [ParseStatus] it also accepts pending.
func ParseFilter(s string) (Status, error) {
	if st := Status(strings.ToLower(strings.TrimSpace(s))); st == StatusPending {
		return st, nil
	}
	return ParseStatus(s)
}

// Suggestion is a proposed, not yet applied, change to a profile.
type Suggestion struct {
	ID             string          `json:"id"`
	Type           Type            `json:"type"`
	Payload        json.RawMessage `json:"payload"`
	Status         Status          `json:"status"`
	ProfileTreeRef string          `json:"profile_tree_ref"`
	SuggesterID    string          `json:"suggester_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Decide moves a pending suggestion to approved or rejected. A suggestion is
// decided at most once.
func (s *Suggestion) Decide(status Status) error {
	if status != StatusApproved && status != StatusRejected {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if s.Status != StatusPending && s.Status != "" {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyDecided, s.ID, s.Status)
	}
	s.Status = status
	return nil
}

// Patch decodes the payload of an update suggestion.
func (s Suggestion) Patch() (Patch, error) {
	if s.Type != TypeUpdate {
		return nil, fmt.Errorf("%w: %s has no field patch", ErrUnknownType, s.Type)
	}
	return ParsePatch(s.Payload)
}

// RelatedRef points at the other person of a relationship suggestion, by tree
// ref or by internal profile id.
type RelatedRef struct {
	TreeRef   string `json:"related_tree_ref,omitempty"`
	ProfileID string `json:"related_profile_id,omitempty"`
}

// IsZero reports whether the reference names nobody.
func (r RelatedRef) IsZero() bool { return r.TreeRef == "" && r.ProfileID == "" }

func (r RelatedRef) String() string {
	if r.TreeRef != "" {
		return r.TreeRef
	}
	return r.ProfileID
}

// Related decodes the payload of a relationship suggestion.
func (s Suggestion) Related() (RelatedRef, error) {
	if !s.Type.IsFamily() {
		return RelatedRef{}, fmt.Errorf("%w: %s is not a relationship change", ErrUnknownType, s.Type)
	}
	var r RelatedRef
	if len(s.Payload) == 0 {
		return r, nil
	}
	if err := json.Unmarshal(s.Payload, &r); err != nil {
		return RelatedRef{}, fmt.Errorf("decode relationship payload: %w", err)
	}
	return r, nil
}
