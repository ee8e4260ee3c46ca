package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// stdout receives all status lines. Tests may replace it.
var stdout io.Writer = os.Stdout

// =============================================================================
// Palette
// =============================================================================

// Colors are named for what they mark in family trees and diffs.
var (
	colorAccent  = lipgloss.Color("30")  // teal: titles, the root person
	colorAdded   = lipgloss.Color("71")  // green: after values, approvals
	colorBadge   = lipgloss.Color("178") // ochre: occurrence badges, warnings
	colorRemoved = lipgloss.Color("131") // brick: before values, rejections
	colorText    = lipgloss.Color("254")
	colorMuted   = lipgloss.Color("246")
	colorFaint   = lipgloss.Color("240")
)

var (
	StyleTitle     = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	StyleHighlight = lipgloss.NewStyle().Foreground(colorAccent)
	StyleDim       = lipgloss.NewStyle().Foreground(colorFaint)
	StyleValue     = lipgloss.NewStyle().Foreground(colorText)
	StyleSuccess   = lipgloss.NewStyle().Foreground(colorAdded)
	StyleWarning   = lipgloss.NewStyle().Foreground(colorBadge)

	styleIconSpinner = lipgloss.NewStyle().Foreground(colorAccent)
	styleHeader      = lipgloss.NewStyle().Foreground(colorMuted).Bold(true)
	styleBorder      = lipgloss.NewStyle().Foreground(colorFaint)
)

// =============================================================================
// Status lines
// =============================================================================

type marker struct {
	glyph string
	style lipgloss.Style
}

var (
	markSuccess = marker{"✓", lipgloss.NewStyle().Foreground(colorAdded)}
	markError   = marker{"✗", lipgloss.NewStyle().Foreground(colorRemoved)}
	markWarning = marker{"!", lipgloss.NewStyle().Foreground(colorBadge)}
	markInfo    = marker{"›", lipgloss.NewStyle().Foreground(colorMuted)}
)

const iconArrow = "→"

func (m marker) String() string { return m.style.Render(m.glyph) }

func printMarked(m marker, msg string) {
	fmt.Fprintln(stdout, m.String()+" "+msg)
}

func printSuccess(format string, args ...any) {
	printMarked(markSuccess, fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	printMarked(markError, fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	printMarked(markWarning, StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	printMarked(markInfo, fmt.Sprintf(format, args...))
}

// printDetail prints an indented secondary line.
func printDetail(format string, args ...any) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints the path of a written file.
func printFile(path string) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render(iconArrow)+" "+StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	fmt.Fprintln(stdout, lipgloss.NewStyle().Foreground(colorMuted).Width(12).Render(key)+" "+StyleValue.Render(value))
}
