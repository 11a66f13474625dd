package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"f1standingsbot/pkg/standings"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	selectorStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

func newSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return s
}

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	return s
}

func center(s string, width int) string {
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, s)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Top Drivers by Points"))
	b.WriteString("\n\n")
	b.WriteString(m.selectorView())
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n\n")
	b.WriteString(m.statusView())
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("←/→ season • r refresh • s reload seasons • q exit"))
	return b.String()
}

func (m Model) selectorView() string {
	snap := m.snap
	switch {
	case len(snap.Seasons) == 0 && snap.ListingSeasons:
		return "Select Year: " + m.spinner.View() + " loading seasons"
	case len(snap.Seasons) == 0:
		return "Select Year: " + mutedStyle.Render("no seasons available")
	}
	pos := 0
	for i, s := range snap.Seasons {
		if s == snap.Selected {
			pos = i + 1
			break
		}
	}
	return fmt.Sprintf("Select Year: %s %s",
		selectorStyle.Render("‹ "+snap.Selected.String()+" ›"),
		mutedStyle.Render(fmt.Sprintf("(%d/%d)", pos, len(snap.Seasons))))
}

func (m Model) statusView() string {
	snap := m.snap
	switch {
	case snap.SeasonsErr != nil && len(snap.Seasons) == 0:
		return errorStyle.Render("✗ could not list seasons: " + snap.SeasonsErr.Error())
	case snap.State == standings.StateLoading:
		return m.spinner.View() + " loading " + snap.Selected.String() + "…"
	case snap.State == standings.StateFailed:
		return errorStyle.Render(fmt.Sprintf("✗ reload of %s failed: %s", snap.Selected, snap.Err))
	case snap.State == standings.StateLoaded && len(snap.Rows) == 0:
		return mutedStyle.Render("no standings for " + snap.RowsSeason.String())
	case snap.State == standings.StateLoaded:
		return okStyle.Render(fmt.Sprintf("✓ %d drivers in %s", len(snap.Rows), snap.RowsSeason))
	case snap.SeasonsErr != nil:
		return errorStyle.Render("✗ could not reload seasons: " + snap.SeasonsErr.Error())
	}
	return ""
}
