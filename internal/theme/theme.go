// Package theme holds the lipgloss styles used for diagnostics and
// listings.
package theme

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
)

// Theme is a set of styles bound to one output stream. Styles render
// plain text when the stream is not a color terminal.
type Theme struct {
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Notice   lipgloss.Style
	Repeat   lipgloss.Style
	Current  lipgloss.Style
	Deleted  lipgloss.Style
	Header   lipgloss.Style
	Variable lipgloss.Style
}

// New returns the styles for w.
func New(w io.Writer) *Theme {
	r := lipgloss.NewRenderer(w)
	return &Theme{
		Error:    r.NewStyle().Bold(true).Foreground(ColorRed),
		Warning:  r.NewStyle().Foreground(ColorYellow),
		Notice:   r.NewStyle().Foreground(ColorBlue),
		Repeat:   r.NewStyle().Foreground(ColorGray).Italic(true),
		Current:  r.NewStyle().Bold(true).Foreground(ColorGreen),
		Deleted:  r.NewStyle().Foreground(ColorGray).Strikethrough(true),
		Header:   r.NewStyle().Bold(true).Foreground(ColorMagenta),
		Variable: r.NewStyle().Foreground(ColorBlue),
	}
}
