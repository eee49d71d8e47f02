package tui

import "github.com/charmbracelet/lipgloss"

// Colors used in the watch view.
var (
	ColorPrimary = lipgloss.Color("#7C3AED") // Purple
	ColorSuccess = lipgloss.Color("#10B981") // Green
	ColorWarning = lipgloss.Color("#F59E0B") // Amber
	ColorError   = lipgloss.Color("#EF4444") // Red
	ColorMuted   = lipgloss.Color("#9CA3AF") // Light gray
)

// Styles holds the styles for the watch view.
type Styles struct {
	Title        lipgloss.Style
	Label        lipgloss.Style
	Running      lipgloss.Style
	Idle         lipgloss.Style
	Elapsed      lipgloss.Style
	Connected    lipgloss.Style
	Disconnected lipgloss.Style
	Total        lipgloss.Style
	Error        lipgloss.Style
	Box          lipgloss.Style
}

// DefaultStyles returns the default styles.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1),
		Label: lipgloss.NewStyle().
			Foreground(ColorMuted),
		Running: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSuccess),
		Idle: lipgloss.NewStyle().
			Foreground(ColorMuted).
			Italic(true),
		Elapsed: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")),
		Connected: lipgloss.NewStyle().
			Foreground(ColorSuccess),
		Disconnected: lipgloss.NewStyle().
			Foreground(ColorWarning),
		Total: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")),
		Error: lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 2),
	}
}
