package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/wincvex/console/internal/terminal"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	danger    = lipgloss.AdaptiveColor{Light: "#D70000", Dark: "#FF5F5F"}

	HeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236")).
			Bold(true).
			Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(highlight)

	PaneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(subtle).
			Padding(0, 1)

	FocusedPaneStyle = PaneStyle.
				BorderForeground(highlight)

	SelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205")).
				Bold(true)

	ItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	EchoStyle = lipgloss.NewStyle().
			Foreground(highlight).
			Bold(true)

	OutputStyle = lipgloss.NewStyle()

	StatusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(danger).
			Bold(true)

	EnabledStyle = lipgloss.NewStyle().
			Foreground(danger)

	DisabledStyle = lipgloss.NewStyle().
			Foreground(special)

	HelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// DisableColor renders every style as plain text.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func entryStyle(o terminal.Origin) lipgloss.Style {
	switch o {
	case terminal.OriginEcho:
		return EchoStyle
	case terminal.OriginStatus:
		return StatusStyle
	case terminal.OriginError:
		return ErrorStyle
	default:
		return OutputStyle
	}
}
