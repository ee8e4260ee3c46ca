package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/rootline/rootline/pkg/tree"
)

// List styles
var (
	listDimStyle    = lipgloss.NewStyle().Foreground(colorFaint)
	listStatusStyle = lipgloss.NewStyle().Foreground(colorBadge)
)

// hopper is the part of a tree view the browser needs.
type hopper interface {
	HopFrom(fromID string) (string, bool)
}

// =============================================================================
// TreeModel - Interactive tree browser
// =============================================================================

// TreeModel is the bubbletea model for browsing a loaded tree. The cursor
// selects an appearance; "n" moves it to the next appearance of the same
// person.
type TreeModel struct {
	view   hopper
	Nodes  []tree.RenderNode
	index  map[string]int
	Cursor int
	Offset int
	Height int
	Status string
}

func newTreeModel(view hopper, snap tree.Snapshot) TreeModel {
	m := TreeModel{
		view:   view,
		Nodes:  snap.Nodes,
		index:  make(map[string]int, len(snap.Nodes)),
		Height: 15,
	}
	for i, n := range snap.Nodes {
		m.index[n.ID] = i
		if n.ID == snap.RootID {
			m.Cursor = i
		}
	}
	m.scrollTo(m.Cursor)
	return m
}

func (m TreeModel) Init() tea.Cmd {
	return nil
}

func (m TreeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				m.Status = ""
			}
		case "down", "j":
			if m.Cursor < len(m.Nodes)-1 {
				m.Cursor++
				m.Status = ""
			}
		case "n":
			m.hop()
		}
		m.scrollTo(m.Cursor)
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-7, 5)
		m.scrollTo(m.Cursor)
	}
	return m, nil
}

// hop centers the cursor on the next appearance of the selected person.
func (m *TreeModel) hop() {
	if len(m.Nodes) == 0 {
		return
	}
	cur := m.Nodes[m.Cursor]
	id, moved := m.view.HopFrom(cur.ID)
	if !moved {
		m.Status = fmt.Sprintf("%s appears only once", displayName(cur))
		return
	}
	i, ok := m.index[id]
	if !ok {
		return
	}
	m.Cursor = i
	m.Status = fmt.Sprintf("%s: appearance %d of %s", displayName(cur), m.position(id)+1, cur.BadgeText)
}

// position returns the index of id among the appearances of its person.
func (m TreeModel) position(id string) int {
	ref := m.Nodes[m.index[id]].Ref
	pos := 0
	for _, n := range m.Nodes {
		if n.ID == id {
			return pos
		}
		if n.Ref == ref {
			pos++
		}
	}
	return pos
}

func (m *TreeModel) scrollTo(i int) {
	if i < m.Offset {
		m.Offset = i
	}
	if i >= m.Offset+m.Height {
		m.Offset = i - m.Height + 1
	}
}

func (m TreeModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Family Tree"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  n next appearance  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Nodes))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		row := treeRow(m.Nodes[i])
		if i == m.Cursor {
			row[0] = "▸"
		}
		rows = append(rows, row)
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
			idx := m.Offset + row
			if idx < 0 || idx >= len(m.Nodes) {
				return lipgloss.NewStyle()
			}
			style := treeCellStyle(m.Nodes[idx], col)
			if idx == m.Cursor {
				style = style.Bold(true).Foreground(colorAdded)
			}
			return style
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Nodes))))
	if m.Status != "" {
		b.WriteString("  ")
		b.WriteString(listStatusStyle.Render(m.Status))
	}
	return b.String()
}

func displayName(n tree.RenderNode) string {
	if n.Name != "" {
		return n.Name
	}
	return n.Ref
}
