// Package tree turns bounded family-tree traversals into render graphs.
//
// # Appearances and identities
//
// A traversal walks up and down from a root person for a fixed number of
// generations. Through pedigree collapse the same person can be reached along
// several paths, so the backend returns one [Node] per appearance: the node's
// ID is unique within the response, while its Ref names the underlying person
// and may repeat.
//
// [Graph] keeps both views explicitly: an appearance table keyed by ID, and an
// identity index mapping each Ref to its appearance IDs in first-seen order.
// Nothing is ever merged into a single shared node, so the renderer still
// draws one box per appearance.
//
// # Occurrence badges
//
// [Graph.RenderNodes] decorates each appearance with a badge when its person
// appears more than once. A [Hopper] cycles through the appearances of one
// person, one hop at a time; K hops over a group of K return to the start.
//
// # Truncation
//
// Traversals are capped by depth and node count, so mother, father and
// partner ids may point outside the response. Those references are dropped
// from the render output and counted by [Graph.Dangling]; they are never an
// error.
//
// # Views
//
// [View] is one rendering session. It owns the current graph and hop cursors,
// supersedes in-flight loads when a new window is requested, and propagates a
// freshly uploaded picture to every appearance of the same person.
package tree
