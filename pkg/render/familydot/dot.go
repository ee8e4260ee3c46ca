package familydot

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/rootline/rootline/pkg/render"
	"github.com/rootline/rootline/pkg/tree"
)

// Options configures family diagram rendering.
type Options struct {
	// Dates adds birth and death dates under each name.
	Dates bool

	// RankDir is the Graphviz rank direction. Defaults to "TB".
	RankDir string
}

// Fill colors per sex class.
var fills = map[string]string{
	"male":    "#dbe9f6",
	"female":  "#f8dde6",
	"unknown": "#eeeeee",
}

// ToDOT converts a loaded tree snapshot to Graphviz DOT.
//
// Each appearance is its own box. People appearing more than once carry
// their occurrence badge in the label and tooltip. The root appearance is
// drawn with a heavy outline and deceased people with a dashed one. Parent
// edges point from parent to child; partner edges are undirected.
func ToDOT(s tree.Snapshot, opts Options) string {
	rankdir := opts.RankDir
	if rankdir == "" {
		rankdir = "TB"
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", rankdir)
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fontname=\"Helvetica\", fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  edge [color=\"#555555\"];\n")
	buf.WriteString("  ranksep=0.6;\n")
	buf.WriteString("  nodesep=0.4;\n")
	buf.WriteString("\n")

	for _, n := range s.Nodes {
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(fmtAttrs(n, opts), ", "))
	}

	buf.WriteString("\n")
	for _, e := range s.Edges {
		switch e.Kind {
		case tree.EdgePartner:
			fmt.Fprintf(&buf, "  %q -> %q [dir=none, style=dashed, constraint=false];\n", e.From, e.To)
		default:
			fmt.Fprintf(&buf, "  %q -> %q [tooltip=%q];\n", e.From, e.To, string(e.Kind))
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(n tree.RenderNode, dates bool) string {
	name := n.Name
	if name == "" {
		name = n.Ref
	}
	if n.BadgeDisplay {
		name += " ×" + n.BadgeText
	}
	if !dates {
		return name
	}
	if span := lifespan(n.Birth, n.Death, n.Deceased); span != "" {
		return name + "\n" + span
	}
	return name
}

func lifespan(birth, death string, deceased bool) string {
	switch {
	case birth != "" && death != "":
		return birth + " – " + death
	case birth != "" && deceased:
		return birth + " – ?"
	case birth != "":
		return "b. " + birth
	case death != "":
		return "d. " + death
	}
	return ""
}

func fmtAttrs(n tree.RenderNode, opts Options) []string {
	attrs := []string{fmt.Sprintf("label=%q", fmtLabel(n, opts.Dates))}

	class := tree.Classify(n.Sex)
	attrs = append(attrs, fmt.Sprintf("fillcolor=%q", fills[class]))

	style := "rounded,filled"
	for _, tag := range n.Tags {
		switch tag {
		case tree.TagRoot:
			attrs = append(attrs, "penwidth=3")
		case tree.TagDeceased:
			style += ",dashed"
		}
	}
	attrs = append(attrs, fmt.Sprintf("style=%q", style))

	if n.BadgeDisplay {
		attrs = append(attrs, fmt.Sprintf("tooltip=%q", n.BadgeTip))
	}
	if n.PictureURL != "" {
		attrs = append(attrs, fmt.Sprintf("URL=%q", n.PictureURL))
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
// Returns the SVG bytes ready for display or further conversion with [render.ToPDF] or [render.ToPNG].
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's pt-sized root element with one that
// scales to its container.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}

// RenderPDF renders a DOT graph as PDF via SVG conversion.
//
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
func RenderPDF(ctx context.Context, dot string) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPDF(svg)
}

// RenderPNG renders a DOT graph as PNG via SVG conversion at the given scale.
func RenderPNG(ctx context.Context, dot string, scale float64) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(svg, scale)
}
