package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	accentColor  = lipgloss.Color("#10B981")
	dangerColor  = lipgloss.Color("#EF4444")
	textColor    = lipgloss.Color("#E2E8F0")
	dimTextColor = lipgloss.Color("#64748B")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	labelStyle  = lipgloss.NewStyle().Foreground(textColor).Width(14)
	valueStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(dimTextColor)
	okStyle     = lipgloss.NewStyle().Foreground(accentColor)
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(dangerColor)
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#334155")).
			Padding(0, 2)
)

func infoLine(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}

func box(title string, lines ...string) string {
	body := append([]string{headerStyle.Render(title), dimStyle.Render(strings.Repeat("─", 36))}, lines...)
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, body...))
}

func checkLine(ok bool, name, detail string) string {
	if ok {
		return okStyle.Render("✓ ") + fmt.Sprintf("%s: %s", name, detail)
	}
	return errorStyle.Render("✗ ") + fmt.Sprintf("%s: %s", name, detail)
}
