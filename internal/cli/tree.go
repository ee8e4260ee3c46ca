package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	rlerrors "github.com/rootline/rootline/pkg/errors"
	"github.com/rootline/rootline/pkg/integrations/backend"
	"github.com/rootline/rootline/pkg/render/familydot"
	"github.com/rootline/rootline/pkg/tree"
)

// Output formats of the tree command.
const (
	formatTable = "table"
	formatDOT   = "dot"
	formatSVG   = "svg"
	formatPDF   = "pdf"
	formatPNG   = "png"
)

type treeOpts struct {
	up, down, maxNodes int
	format             string
	output             string
	dates              bool
	rankDir            string
	scale              float64
	interactive        bool
	noCache            bool
}

// treeCommand creates the tree command.
func (c *CLI) treeCommand() *cobra.Command {
	var opts treeOpts

	cmd := &cobra.Command{
		Use:   "tree <ref>",
		Short: "Show the family tree around a person",
		Long: `Fetch a bounded traversal around a person and show it.

People who appear more than once (pedigree collapse, cousin marriages) are
marked with an occurrence badge. In interactive mode, press "n" on such a
person to jump to their next appearance.`,
		Example: `  rootline tree P-1024
  rootline tree P-1024 --up 5 --down 0 --format svg -o ancestors.svg
  rootline tree P-1024 -i`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := c.Config.TreeRequest(args[0])
			if cmd.Flags().Changed("up") {
				req.Up = opts.up
			}
			if cmd.Flags().Changed("down") {
				req.Down = opts.down
			}
			if cmd.Flags().Changed("max") {
				req.MaxNodes = opts.maxNodes
			}
			return c.runTree(cmd.Context(), req, opts)
		},
	}

	cmd.Flags().IntVar(&opts.up, "up", 0, "generations of ancestors")
	cmd.Flags().IntVar(&opts.down, "down", 0, "generations of descendants")
	cmd.Flags().IntVar(&opts.maxNodes, "max", 0, "maximum number of appearances")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatTable, "output format: table, dot, svg, pdf, png")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout for table and dot, <ref>.<format> otherwise)")
	cmd.Flags().BoolVar(&opts.dates, "dates", true, "show birth and death dates")
	cmd.Flags().StringVar(&opts.rankDir, "rankdir", "TB", "graph direction: TB, BT, LR, RL")
	cmd.Flags().Float64Var(&opts.scale, "scale", 2, "PNG scale factor")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "browse the tree in the terminal")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "bypass the reference cache")

	return cmd
}

func (c *CLI) runTree(ctx context.Context, req tree.Request, opts treeOpts) error {
	if err := req.Validate(); err != nil {
		return err
	}
	client, cc, err := c.newClient(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer cc.Close()

	view, err := c.loadView(ctx, client, req)
	if err != nil {
		return err
	}
	defer view.Close()

	snap, ok := view.Render()
	if !ok {
		return rlerrors.New(rlerrors.ErrCodeInternal, "tree for %s is not loaded", req.RootRef)
	}

	if opts.interactive {
		return runTreeBrowser(view, snap)
	}
	return writeTree(ctx, snap, req.RootRef, opts)
}

// loadView loads req into a new view with a spinner.
func (c *CLI) loadView(ctx context.Context, client *backend.Client, req tree.Request) (*tree.View, error) {
	view := tree.NewView(client, tree.WithUploader(client), tree.WithLogger(c.Logger))

	prog := newProgress(c.Logger)
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Loading tree of %s...", req.RootRef))
	spinner.Start()
	err := view.Load(ctx, req)
	if err != nil {
		spinner.StopWithError(fmt.Sprintf("Could not load tree of %s", req.RootRef))
	} else {
		spinner.Stop()
	}

	switch {
	case errors.Is(err, tree.ErrEmptyTraversal):
		view.Close()
		return nil, rlerrors.New(rlerrors.ErrCodeNotFound, "no tree found for %s", req.RootRef)
	case err != nil:
		view.Close()
		return nil, err
	}
	prog.done("tree loaded", "request", req.String())
	return view, nil
}

func writeTree(ctx context.Context, snap tree.Snapshot, ref string, opts treeOpts) error {
	format := strings.ToLower(opts.format)
	if format == formatTable {
		fmt.Fprintln(stdout, renderTreeTable(snap))
		printTreeStats(snap)
		return nil
	}

	dot := familydot.ToDOT(snap, familydot.Options{Dates: opts.dates, RankDir: opts.rankDir})
	var data []byte
	var err error
	switch format {
	case formatDOT:
		data = []byte(dot)
	case formatSVG:
		data, err = familydot.RenderSVG(ctx, dot)
	case formatPDF:
		data, err = familydot.RenderPDF(ctx, dot)
	case formatPNG:
		data, err = familydot.RenderPNG(ctx, dot, opts.scale)
	default:
		return rlerrors.New(rlerrors.ErrCodeInvalidInput, "unknown format %q", opts.format)
	}
	if err != nil {
		return err
	}

	out := opts.output
	if out == "" && format == formatDOT {
		_, err := stdout.Write(data)
		return err
	}
	if out == "" {
		out = sanitizeFilename(ref) + "." + format
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	printSuccess("Rendered %s", ref)
	printFile(out)
	return nil
}

// sanitizeFilename keeps letters, digits, dashes and underscores.
func sanitizeFilename(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
	return filepath.Base(s)
}

// =============================================================================
// Table Output
// =============================================================================

// renderTreeTable lists every appearance in response order.
func renderTreeTable(snap tree.Snapshot) string {
	rows := make([][]string, 0, len(snap.Nodes))
	for _, n := range snap.Nodes {
		rows = append(rows, treeRow(n))
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleBorder).
		Headers("", "Name", "Ref", "Lifespan", "Parents", "×").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			if row < 0 || row >= len(snap.Nodes) {
				return lipgloss.NewStyle()
			}
			return treeCellStyle(snap.Nodes[row], col)
		})
	return t.Render()
}

func treeRow(n tree.RenderNode) []string {
	marker := ""
	if hasTag(n, tree.TagRoot) {
		marker = "●"
	}
	name := n.Name
	if name == "" {
		name = n.Ref
	}
	if hasTag(n, tree.TagDeceased) {
		name += " †"
	}
	return []string{marker, name, n.Ref, lifespan(n.Birth, n.Death, n.Deceased), parents(n), n.BadgeText}
}

func treeCellStyle(n tree.RenderNode, col int) lipgloss.Style {
	base := lipgloss.NewStyle()
	switch {
	case col == 5 && n.BadgeDisplay:
		return base.Foreground(colorBadge).Bold(true)
	case hasTag(n, tree.TagRoot):
		return base.Foreground(colorAccent).Bold(true)
	case col >= 3:
		return base.Foreground(colorMuted)
	}
	return base.Foreground(colorText)
}

func printTreeStats(snap tree.Snapshot) {
	people := map[string]bool{}
	repeated := 0
	for _, n := range snap.Nodes {
		if !people[n.Ref] && n.BadgeDisplay {
			repeated++
		}
		people[n.Ref] = true
	}
	parts := []string{
		fmt.Sprintf("%d appearances", len(snap.Nodes)),
		fmt.Sprintf("%d people", len(people)),
	}
	if repeated > 0 {
		parts = append(parts, fmt.Sprintf("%d appear more than once", repeated))
	}
	if snap.Dangling > 0 {
		parts = append(parts, StyleWarning.Render(fmt.Sprintf("%d links outside the window", snap.Dangling)))
	}
	printDetail("%s", strings.Join(parts, " · "))
}

func hasTag(n tree.RenderNode, tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func parents(n tree.RenderNode) string {
	var ids []string
	if n.MID != "" {
		ids = append(ids, n.MID)
	}
	if n.FID != "" {
		ids = append(ids, n.FID)
	}
	return strings.Join(ids, ", ")
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

// =============================================================================
// Picture Upload
// =============================================================================

// pictureCommand creates the picture command.
func (c *CLI) pictureCommand() *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "picture <ref> <image>",
		Short: "Upload a new picture for a person",
		Long: `Upload a picture for a person you own (or any person, as a moderator).

The tree around --root (default: the person) is loaded first and the new
picture is applied to every appearance of the person in it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, path := args[0], args[1]
			if root == "" {
				root = ref
			}
			return c.runPicture(cmd.Context(), root, ref, path)
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "root of the tree to update")
	return cmd
}

func (c *CLI) runPicture(ctx context.Context, root, ref, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	client, cc, err := c.newClient(ctx, false)
	if err != nil {
		return err
	}
	defer cc.Close()

	viewer, err := client.Viewer(ctx)
	if err != nil {
		return err
	}
	view, err := c.loadView(ctx, client, c.Config.TreeRequest(root))
	if err != nil {
		return err
	}
	defer view.Close()

	url, updated, err := view.UploadPicture(ctx, viewer, ref, filepath.Base(path), f)
	if err != nil {
		return err
	}
	printSuccess("Uploaded picture for %s", ref)
	printKeyValue("URL", url)
	printKeyValue("Appearances", fmt.Sprintf("%d", updated))
	return nil
}

// =============================================================================
// Interactive Browser
// =============================================================================

func runTreeBrowser(view *tree.View, snap tree.Snapshot) error {
	_, err := tea.NewProgram(newTreeModel(view, snap), tea.WithAltScreen()).Run()
	return err
}
