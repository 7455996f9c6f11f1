package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/trezcool/admissions/core"
)

var (
	colorPrimary = lipgloss.Color("#101F38")
	colorAccent  = lipgloss.Color("#8BC34A")
	colorMuted   = lipgloss.Color("#6B7280")
	colorBorder  = lipgloss.Color("#2a3850")
	colorDanger  = lipgloss.Color("#e53935")
	colorWarning = lipgloss.Color("#FFC107")
	colorInfo    = lipgloss.Color("#2196F3")
)

type styles struct {
	Title        lipgloss.Style
	Column       lipgloss.Style
	ActiveColumn lipgloss.Style
	ColumnTitle  lipgloss.Style
	Card         lipgloss.Style
	Selected     lipgloss.Style
	Stalled      lipgloss.Style
	Muted        lipgloss.Style
	Denied       lipgloss.Style
	Toast        map[core.NotificationLevel]lipgloss.Style
}

func defaultStyles() styles {
	column := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Width(columnWidth)
	card := lipgloss.NewStyle().Width(columnWidth - 2)

	return styles{
		Title:        lipgloss.NewStyle().Bold(true).Foreground(colorAccent).MarginBottom(1),
		Column:       column,
		ActiveColumn: column.BorderForeground(colorAccent),
		ColumnTitle:  lipgloss.NewStyle().Bold(true),
		Card:         card,
		Selected:     card.Background(colorAccent).Foreground(colorPrimary),
		Stalled:      lipgloss.NewStyle().Foreground(colorDanger).Bold(true),
		Muted:        lipgloss.NewStyle().Foreground(colorMuted),
		Denied:       lipgloss.NewStyle().Foreground(colorWarning),
		Toast: map[core.NotificationLevel]lipgloss.Style{
			core.LevelSuccess: lipgloss.NewStyle().Foreground(colorAccent),
			core.LevelError:   lipgloss.NewStyle().Foreground(colorDanger),
			core.LevelInfo:    lipgloss.NewStyle().Foreground(colorInfo),
		},
	}
}
