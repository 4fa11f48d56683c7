package styles

import (
	"os"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
)

var (
	Success = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	Error   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	Warning = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	Info    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	Dimmed  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	Bold    = lipgloss.NewStyle().Bold(true)
)

var plain atomic.Bool

func init() {
	if os.Getenv("NO_COLOR") != "" {
		plain.Store(true)
	}
}

// SetPlain disables styling for all subsequent Render calls
func SetPlain(v bool) {
	plain.Store(v)
}

func Render(style *lipgloss.Style, text string) string {
	if plain.Load() {
		return text
	}
	return style.Render(text)
}
