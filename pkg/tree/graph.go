package tree

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrEmptyTraversal is returned by [Build] when the response has no nodes.
	ErrEmptyTraversal = errors.New("traversal returned no nodes")

	// ErrInvalidNodeID is returned by [Build] for a node with an empty id or ref.
	ErrInvalidNodeID = errors.New("node id and ref must not be empty")

	// ErrDuplicateNodeID is returned by [Build] when two nodes share an id.
	// Appearance ids must be unique within one response.
	ErrDuplicateNodeID = errors.New("duplicate node id")
)

// EdgeKind labels a render edge.
type EdgeKind string

const (
	EdgeMother  EdgeKind = "mother"
	EdgeFather  EdgeKind = "father"
	EdgePartner EdgeKind = "partner"
)

// Edge connects two appearances present in the graph. Parent edges point from
// parent to child; partner edges are undirected and listed once per pair.
type Edge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Kind EdgeKind `json:"kind"`
}

// Graph is the appearance table plus the identity index for one traversal.
//
// The zero value is not usable; use [Build].
// Graph is not safe for concurrent use without external synchronization.
type Graph struct {
	rootID   string
	nodes    map[string]*Node    // appearance id -> node
	order    []string            // appearance ids in response order
	byRef    map[string][]string // ref -> appearance ids, first-seen order
	refOrder []string            // refs in first-seen order
	dangling int
}

// Build indexes a traversal response in a single pass.
//
// It fails on an empty response, on empty ids or refs, and on repeated ids.
// References to ids outside the response are tolerated and counted.
func Build(t Traversal) (*Graph, error) {
	if len(t.Nodes) == 0 {
		return nil, ErrEmptyTraversal
	}

	g := &Graph{
		rootID: t.RootID,
		nodes:  make(map[string]*Node, len(t.Nodes)),
		order:  make([]string, 0, len(t.Nodes)),
		byRef:  make(map[string][]string),
	}
	for i := range t.Nodes {
		n := t.Nodes[i]
		if n.ID == "" || n.Ref == "" {
			return nil, fmt.Errorf("%w: node %d", ErrInvalidNodeID, i)
		}
		if _, exists := g.nodes[n.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNodeID, n.ID)
		}
		n.PIDs = slices.Clone(n.PIDs)
		g.nodes[n.ID] = &n
		g.order = append(g.order, n.ID)
		if _, seen := g.byRef[n.Ref]; !seen {
			g.refOrder = append(g.refOrder, n.Ref)
		}
		g.byRef[n.Ref] = append(g.byRef[n.Ref], n.ID)
	}

	for _, id := range g.order {
		n := g.nodes[id]
		for _, target := range n.edgeTargets() {
			if _, ok := g.nodes[target]; !ok {
				g.dangling++
			}
		}
	}
	return g, nil
}

func (n *Node) edgeTargets() []string {
	var out []string
	if n.MID != "" {
		out = append(out, n.MID)
	}
	if n.FID != "" {
		out = append(out, n.FID)
	}
	for _, p := range n.PIDs {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RootID returns the traversal root's appearance id.
func (g *Graph) RootID() string { return g.rootID }

// Len returns the number of appearances.
func (g *Graph) Len() int { return len(g.order) }

// Node returns the appearance with the given id.
// The returned node is a copy; use [Graph.SetPicture] to change pictures.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	out := *n
	out.PIDs = slices.Clone(n.PIDs)
	return out, true
}

// Has reports whether id is an appearance in this graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Refs returns every person ref in first-seen order.
func (g *Graph) Refs() []string { return slices.Clone(g.refOrder) }

// Occurrences returns the appearance ids of ref in first-seen order.
// Returns nil for an unknown ref.
func (g *Graph) Occurrences(ref string) []string { return slices.Clone(g.byRef[ref]) }

// Count returns how many appearances share ref.
func (g *Graph) Count(ref string) int { return len(g.byRef[ref]) }

// Dangling returns the number of mother, father and partner references that
// point outside the response.
func (g *Graph) Dangling() int { return g.dangling }

// OwnerID returns the owner of the person behind ref, taken from its first
// appearance.
func (g *Graph) OwnerID(ref string) (string, bool) {
	ids := g.byRef[ref]
	if len(ids) == 0 {
		return "", false
	}
	return g.nodes[ids[0]].OwnerID, true
}

// SetPicture sets the picture of every appearance of ref and returns how many
// were updated.
func (g *Graph) SetPicture(ref, url string) int {
	ids := g.byRef[ref]
	for _, id := range ids {
		g.nodes[id].PictureURL = url
	}
	return len(ids)
}

// Clone returns a deep copy of g.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		rootID:   g.rootID,
		nodes:    make(map[string]*Node, len(g.nodes)),
		order:    slices.Clone(g.order),
		byRef:    make(map[string][]string, len(g.byRef)),
		refOrder: slices.Clone(g.refOrder),
		dangling: g.dangling,
	}
	for id, n := range g.nodes {
		cp := *n
		cp.PIDs = slices.Clone(n.PIDs)
		c.nodes[id] = &cp
	}
	for ref, ids := range g.byRef {
		c.byRef[ref] = slices.Clone(ids)
	}
	return c
}

// Edges returns the parent and partner edges whose endpoints are both
// present, in response order.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	seenPair := make(map[string]bool)
	for _, id := range g.order {
		n := g.nodes[id]
		if g.Has(n.MID) {
			edges = append(edges, Edge{From: n.MID, To: id, Kind: EdgeMother})
		}
		if g.Has(n.FID) {
			edges = append(edges, Edge{From: n.FID, To: id, Kind: EdgeFather})
		}
		for _, p := range n.PIDs {
			if p == id || !g.Has(p) {
				continue
			}
			a, b := id, p
			if b < a {
				a, b = b, a
			}
			key := a + "\x00" + b
			if seenPair[key] {
				continue
			}
			seenPair[key] = true
			edges = append(edges, Edge{From: id, To: p, Kind: EdgePartner})
		}
	}
	return edges
}

// Classify returns the sex class of a node: "male", "female" or "unknown".
func Classify(sex string) string {
	switch strings.ToUpper(strings.TrimSpace(sex)) {
	case SexMale, "MALE":
		return "male"
	case SexFemale, "FEMALE":
		return "female"
	default:
		return "unknown"
	}
}
