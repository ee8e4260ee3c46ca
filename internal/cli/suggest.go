package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	rlerrors "github.com/rootline/rootline/pkg/errors"
	"github.com/rootline/rootline/pkg/refs"
	"github.com/rootline/rootline/pkg/review"
	"github.com/rootline/rootline/pkg/suggest"
)

// suggestCommand creates the suggest command with subcommands.
func (c *CLI) suggestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "suggest",
		Aliases: []string{"suggestions"},
		Short:   "List, preview and decide profile suggestions",
	}

	cmd.AddCommand(c.suggestListCommand())
	cmd.AddCommand(c.suggestPreviewCommand())
	cmd.AddCommand(c.suggestDecideCommand())

	return cmd
}

func (c *CLI) suggestListCommand() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List suggestions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter suggest.Status
			if status != "" && status != "all" {
				st, err := suggest.ParseFilter(status)
				if err != nil {
					return rlerrors.Wrap(rlerrors.ErrCodeInvalidStatus, err, "--status")
				}
				filter = st
			}

			ctx := cmd.Context()
			client, cc, err := c.newClient(ctx, false)
			if err != nil {
				return err
			}
			defer cc.Close()

			list, err := client.Suggestions(ctx, filter)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				if filter == "" {
					printInfo("No suggestions")
				} else {
					printInfo("No %s suggestions", filter)
				}
				return nil
			}
			fmt.Fprintln(stdout, renderSuggestionTable(list))
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", string(suggest.StatusPending), "pending, approved, rejected or all")
	return cmd
}

func renderSuggestionTable(list []suggest.Suggestion) string {
	rows := make([][]string, 0, len(list))
	for _, s := range list {
		created := ""
		if !s.CreatedAt.IsZero() {
			created = s.CreatedAt.Format("2006-01-02")
		}
		rows = append(rows, []string{s.ID, string(s.Type), s.ProfileTreeRef, string(s.Status), created})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleBorder).
		Headers("ID", "Type", "Profile", "Status", "Created").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			if col == 3 && row >= 0 && row < len(list) {
				return statusStyle(list[row].Status)
			}
			return lipgloss.NewStyle().Foreground(colorText)
		}).
		Render()
}

func statusStyle(s suggest.Status) lipgloss.Style {
	switch s {
	case suggest.StatusApproved:
		return StyleSuccess
	case suggest.StatusRejected:
		return lipgloss.NewStyle().Foreground(colorRemoved)
	}
	return StyleWarning
}

// =============================================================================
// Preview
// =============================================================================

func (c *CLI) suggestPreviewCommand() *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "preview <id>",
		Short: "Show what a suggestion would change",
		Long: `Compare a suggestion with the current profile, field by field.

Places, cemeteries and ethnicities are shown by name once looked up. Lookups
still running after --wait are shown as raw ids.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPreview(cmd.Context(), args[0], wait)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "how long to wait for reference names")
	return cmd
}

func (c *CLI) runPreview(ctx context.Context, id string, wait time.Duration) error {
	client, cc, err := c.newClient(ctx, false)
	if err != nil {
		return err
	}
	defer cc.Close()

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Loading suggestion %s...", id))
	spinner.Start()
	defer spinner.Stop()

	sug, err := client.Suggestion(ctx, id)
	if err != nil {
		return err
	}

	resolver := refs.NewResolver(client,
		refs.WithConcurrency(c.Config.Review.Concurrency),
		refs.WithLogger(c.Logger))
	previewer := suggest.NewPreviewer(client, resolver, suggest.WithLogger(c.Logger))

	pv, err := previewer.Open(ctx, *sug)
	if err != nil {
		return err
	}
	defer pv.Close()

	spinner.SetMessage("Resolving places and cemeteries...")
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	werr := pv.Wait(waitCtx)
	cancel()
	if werr == nil {
		spinner.StopWithSuccess("Preview ready")
	} else {
		spinner.Stop()
	}
	if werr != nil && !errors.Is(werr, context.DeadlineExceeded) {
		return werr
	}

	fmt.Fprint(stdout, renderPreview(pv.State()))
	return nil
}

// renderPreview formats a preview state for the terminal.
func renderPreview(st suggest.State) string {
	var b strings.Builder
	b.WriteString(StyleTitle.Render(fmt.Sprintf("Suggestion %s", st.SuggestionID)))
	b.WriteString(StyleDim.Render(fmt.Sprintf("  %s on %s", st.Type, st.ProfileTreeRef)))
	b.WriteString("\n\n")

	if st.Relation != nil {
		b.WriteString(renderRelation(st.Relation))
		b.WriteString("\n")
	}

	switch {
	case st.SnapshotError != "":
		b.WriteString(markError.String() + " " + st.SnapshotError + "\n")
	case len(st.Rows) > 0:
		b.WriteString(renderRows(st.Rows))
		b.WriteString("\n")
	case st.NoChanges:
		b.WriteString(markInfo.String() + " No changes: the suggestion matches the current profile\n")
	case st.Relation == nil:
		b.WriteString(markInfo.String() + " Loading changes...\n")
	}

	if len(st.Ignored) > 0 {
		b.WriteString(StyleDim.Render("Ignored fields: "+strings.Join(st.Ignored, ", ")) + "\n")
	}
	if st.Resolving {
		b.WriteString(StyleWarning.Render("Some names are still loading and are shown as ids") + "\n")
	}
	if st.FailedLookups > 0 {
		b.WriteString(StyleWarning.Render(fmt.Sprintf("%d lookups failed and are shown as ids", st.FailedLookups)) + "\n")
	}
	return b.String()
}

func renderRows(rows []suggest.Row) string {
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{
			string(r.Field),
			withSources(r.Before, r.BeforeSources),
			withSources(r.After, r.AfterSources),
		})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleBorder).
		Headers("Field", "Before", "After").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return styleHeader
			case col == 0:
				return lipgloss.NewStyle().Foreground(colorMuted)
			case col == 1:
				return lipgloss.NewStyle().Foreground(colorRemoved)
			}
			return lipgloss.NewStyle().Foreground(colorAdded)
		}).
		Render()
}

func withSources(value string, sources []string) string {
	if value == "" {
		value = "—"
	}
	if len(sources) == 0 {
		return value
	}
	return value + "\n" + StyleDim.Render("sources: "+strings.Join(sources, "; "))
}

func renderRelation(r *suggest.RelationPreview) string {
	subject := r.SubjectRef
	if r.Subject != nil {
		subject = r.Subject.Label()
	} else if r.SubjectError != "" {
		subject += " (" + r.SubjectError + ")"
	}
	related := r.RelatedRef
	if r.Related != nil {
		related = r.Related.Label()
	} else if r.RelatedError != "" {
		related += " (" + r.RelatedError + ")"
	}
	verb := r.Action + " " + r.Relation
	return StyleValue.Render(subject) + " " + StyleHighlight.Render("—["+verb+"]"+iconArrow) + " " + StyleValue.Render(related) + "\n"
}

// =============================================================================
// Decide
// =============================================================================

func (c *CLI) suggestDecideCommand() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:       "decide <id> <approve|reject>",
		Short:     "Approve or reject a suggestion (moderators)",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"approve", "reject"},
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := parseDecision(args[1])
			if err != nil {
				return err
			}
			return c.runDecide(cmd.Context(), args[0], status, note)
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "note recorded with the decision")
	return cmd
}

// parseDecision accepts approve/reject as well as approved/rejected.
func parseDecision(s string) (suggest.Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approve":
		return suggest.StatusApproved, nil
	case "reject":
		return suggest.StatusRejected, nil
	}
	st, err := suggest.ParseStatus(s)
	if err != nil {
		return "", rlerrors.Wrap(rlerrors.ErrCodeInvalidStatus, err, "decision must be approve or reject")
	}
	return st, nil
}

func (c *CLI) runDecide(ctx context.Context, id string, status suggest.Status, note string) error {
	client, cc, err := c.newClient(ctx, true)
	if err != nil {
		return err
	}
	defer cc.Close()

	viewer, err := client.Viewer(ctx)
	if err != nil {
		return err
	}
	ledger, err := c.newLedger(ctx)
	if err != nil {
		return err
	}
	defer ledger.Close(context.WithoutCancel(ctx))

	svc := &review.Service{Backend: client, Store: ledger, Logger: c.Logger}
	d, err := svc.Decide(ctx, viewer, id, status, note)
	if err != nil {
		return err
	}
	printSuccess("Suggestion %s %s", id, statusStyle(d.Status).Render(string(d.Status)))
	if d.Note != "" {
		printDetail("Note: %s", d.Note)
	}
	return nil
}
