// Package render holds output conversions shared by rootline's diagram
// exporters.
//
// [ToPDF] and [ToPNG] convert SVG to other formats with the external
// rsvg-convert tool (from librsvg). The family diagram itself is produced by
// the [familydot] subpackage:
//
//	dot := familydot.ToDOT(snap, familydot.Options{})
//	svg, err := familydot.RenderSVG(ctx, dot)
//	pdf, err := render.ToPDF(svg)
//
// [familydot]: github.com/rootline/rootline/pkg/render/familydot
package render
