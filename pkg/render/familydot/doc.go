// Package familydot exports a loaded family tree as a Graphviz diagram.
//
// [ToDOT] turns a [tree.Snapshot] into DOT text; [RenderSVG] lays it out with
// the embedded Graphviz build from go-graphviz, so no system Graphviz is
// needed. PDF and PNG conversion go through [render.ToPDF] and
// [render.ToPNG], which require librsvg (rsvg-convert).
//
//	snap, _ := view.Render()
//	dot := familydot.ToDOT(snap, familydot.Options{Dates: true})
//	svg, err := familydot.RenderSVG(ctx, dot)
//
// [tree.Snapshot]: github.com/rootline/rootline/pkg/tree.Snapshot
// [render.ToPDF]: github.com/rootline/rootline/pkg/render.ToPDF
// [render.ToPNG]: github.com/rootline/rootline/pkg/render.ToPNG
package familydot
