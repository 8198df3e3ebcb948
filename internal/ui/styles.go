// internal/ui/styles.go

package ui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Kolory
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	errColor  = lipgloss.AdaptiveColor{Light: "#FF0000", Dark: "#FF0000"}
	warnColor = lipgloss.AdaptiveColor{Light: "#B58900", Dark: "#FFD75F"}
)

// Styles are the text styles used by command output. They are bound to a
// renderer so colors are dropped when the output is not a terminal.
type Styles struct {
	App     lipgloss.Style
	Label   lipgloss.Style
	Bold    lipgloss.Style
	Dim     lipgloss.Style
	Cmd     lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Notice  lipgloss.Style
	Email   lipgloss.Style
	Account lipgloss.Style
	Success lipgloss.Style
}

// NewStyles returns styles for w.
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	return Styles{
		App:     r.NewStyle().Foreground(highlight).Bold(true),
		Label:   r.NewStyle().Foreground(lipgloss.Color("4")),
		Bold:    r.NewStyle().Bold(true),
		Dim:     r.NewStyle().Foreground(lipgloss.Color("245")).Bold(true),
		Cmd:     r.NewStyle().Foreground(lipgloss.Color("6")).Bold(true),
		Error:   r.NewStyle().Foreground(errColor),
		Warning: r.NewStyle().Foreground(warnColor),
		Notice:  r.NewStyle().Foreground(warnColor).Faint(true),
		Email:   r.NewStyle().Foreground(lipgloss.Color("6")),
		Account: r.NewStyle().Foreground(special),
		Success: r.NewStyle().Foreground(special).Bold(true),
	}
}
