package tree

import "slices"

// Hopper cycles through the appearances of each person in one graph.
//
// Each ref has its own cursor, unset until the first hop. A hop advances the
// cursor to (cursor+1) mod K, treating unset as -1, so K consecutive hops over
// a group of K visit every appearance once and return to the start. Groups of
// one never move.
//
// A Hopper belongs to a single view session and is not safe for concurrent
// use; [View] serializes access.
type Hopper struct {
	g       *Graph
	cursors map[string]int
}

// NewHopper creates a hopper over g with every cursor unset.
func NewHopper(g *Graph) *Hopper {
	return &Hopper{g: g, cursors: make(map[string]int)}
}

// Hop advances the cursor of ref and returns the appearance id to center on.
// moved is false for unknown refs and for people appearing only once.
func (h *Hopper) Hop(ref string) (id string, moved bool) {
	group := h.g.byRef[ref]
	if len(group) <= 1 {
		return "", false
	}
	cur, ok := h.cursors[ref]
	if !ok {
		cur = -1
	}
	cur = (cur + 1) % len(group)
	h.cursors[ref] = cur
	return group[cur], true
}

// HopFrom hops away from the appearance the user clicked. If the person's
// cursor is unset it is first placed on fromID, so the hop lands on the next
// appearance rather than on the first one.
func (h *Hopper) HopFrom(fromID string) (id string, moved bool) {
	n, ok := h.g.nodes[fromID]
	if !ok {
		return "", false
	}
	if _, set := h.cursors[n.Ref]; !set {
		if i := slices.Index(h.g.byRef[n.Ref], fromID); i >= 0 && len(h.g.byRef[n.Ref]) > 1 {
			h.cursors[n.Ref] = i
		}
	}
	return h.Hop(n.Ref)
}

// Cursor returns the current position of ref's cursor within its group.
func (h *Hopper) Cursor(ref string) (int, bool) {
	c, ok := h.cursors[ref]
	return c, ok
}

// Reset clears every cursor.
func (h *Hopper) Reset() {
	clear(h.cursors)
}
