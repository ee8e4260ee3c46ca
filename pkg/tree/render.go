package tree

import (
	"fmt"
	"slices"
	"strconv"
)

// Tags attached to render nodes besides the sex class.
const (
	TagRoot     = "root"
	TagDeceased = "deceased"
)

// RenderNode is an appearance enriched for the renderer. Its MID, FID and
// PIDs only reference appearances present in the graph.
type RenderNode struct {
	Node
	Tags         []string `json:"tags"`
	BadgeText    string   `json:"badge_text"`
	BadgeDisplay bool     `json:"badge_display"`
	BadgeTip     string   `json:"badge_tip"`
}

// Badge holds the occurrence badge for a person appearing count times.
type Badge struct {
	Text    string
	Display bool
	Tip     string
}

// BadgeFor returns the occurrence badge for count appearances. A person
// appearing once gets an empty, hidden badge.
func BadgeFor(count int) Badge {
	if count <= 1 {
		return Badge{}
	}
	return Badge{
		Text:    strconv.Itoa(count),
		Display: true,
		Tip:     fmt.Sprintf("Appears %d times in this tree. Click to jump to the next occurrence.", count),
	}
}

// RenderNodes returns every appearance in response order with tags, badges
// and dangling references removed.
func (g *Graph) RenderNodes() []RenderNode {
	out := make([]RenderNode, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.renderNode(g.nodes[id]))
	}
	return out
}

// RenderNode returns the enriched form of one appearance.
func (g *Graph) RenderNode(id string) (RenderNode, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return RenderNode{}, false
	}
	return g.renderNode(n), true
}

func (g *Graph) renderNode(n *Node) RenderNode {
	rn := RenderNode{Node: *n}
	if !g.Has(rn.MID) {
		rn.MID = ""
	}
	if !g.Has(rn.FID) {
		rn.FID = ""
	}
	rn.PIDs = slices.DeleteFunc(slices.Clone(n.PIDs), func(p string) bool { return !g.Has(p) })
	if len(rn.PIDs) == 0 {
		rn.PIDs = nil
	}

	rn.Tags = []string{Classify(n.Sex)}
	if n.ID == g.rootID {
		rn.Tags = append(rn.Tags, TagRoot)
	}
	if n.Deceased {
		rn.Tags = append(rn.Tags, TagDeceased)
	}

	b := BadgeFor(g.Count(n.Ref))
	rn.BadgeText, rn.BadgeDisplay, rn.BadgeTip = b.Text, b.Display, b.Tip
	return rn
}
