package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"sharkemon/internal/catalog"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFF7DB")).
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Margin(0, 1)

	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#1A1A1A")).
			Background(lipgloss.Color("#F4D03F")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF5F5F"))

	rarityColors = map[catalog.Rarity]lipgloss.Color{
		catalog.Common:    lipgloss.Color("#BBBBBB"),
		catalog.Rare:      lipgloss.Color("#5DADE2"),
		catalog.Epic:      lipgloss.Color("#AF7AC5"),
		catalog.Legendary: lipgloss.Color("#F5B041"),
	}
)

// View renders the catalog screen.
func (m CollectionModel) View() string {
	title := titleStyle.Render(fmt.Sprintf("Sharkemon - Listening on: %s", m.interfaceName))

	found := 0
	for _, d := range m.descriptors {
		if _, ok := m.records[d.ID]; ok {
			found++
		}
	}

	status := fmt.Sprintf("Collected: %d / %d\nFrames: %d (%.1f/s)\nMatches: %d (%.1f/s)\nSkipped: %d",
		found, len(m.descriptors), m.totals.Frames, m.fps, m.totals.Matched, m.mps, m.totals.Failed)
	statusBox := infoStyle.Render(status)

	var hits []string
	for _, h := range m.topHits {
		name := h.ID
		if d, ok := m.catalog.ByID(h.ID); ok {
			name = d.Name
		}
		hits = append(hits, fmt.Sprintf("%s: %d", name, h.Count))
	}
	if len(hits) == 0 {
		hits = append(hits, "Waiting for packets...")
	}
	hitsBox := infoStyle.Render("This session:\n" + strings.Join(hits, "\n"))

	row1 := lipgloss.JoinHorizontal(lipgloss.Top, statusBox, hitsBox)
	row2 := lipgloss.JoinHorizontal(lipgloss.Top, infoStyle.Render(m.table.View()), infoStyle.Render(m.detail()))

	parts := []string{title}
	if m.banner != "" && m.now().Before(m.bannerUntil) {
		parts = append(parts, bannerStyle.Render(m.banner))
	}
	parts = append(parts, row1, row2)
	if m.captureErr != nil {
		parts = append(parts, errorStyle.Render("Capture stopped: "+m.captureErr.Error()))
	}
	body := lipgloss.JoinVertical(lipgloss.Left, parts...)

	return body + "\n↑/↓ browse • q quit"
}

// detail describes the highlighted descriptor.
func (m CollectionModel) detail() string {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.descriptors) {
		return "Nothing selected"
	}
	d := m.descriptors[i]
	rec, ok := m.records[d.ID]
	if !ok {
		return fmt.Sprintf("#%03d ???\n\nNot discovered yet.", i+1)
	}

	rarity := lipgloss.NewStyle().Foreground(rarityColors[d.Rarity]).Render(strings.ToUpper(string(d.Rarity)))
	var b strings.Builder
	fmt.Fprintf(&b, "#%03d %s  %s\n", i+1, d.Name, rarity)
	if d.FullName != "" {
		fmt.Fprintf(&b, "%s\n", d.FullName)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Signatures: %s\n", signatures(d))
	fmt.Fprintf(&b, "First found: %s\n", rec.DateFound.Local().Format(time.DateTime))
	fmt.Fprintf(&b, "Last seen:   %s\n", rec.DateLastSeen.Local().Format(time.DateTime))
	fmt.Fprintf(&b, "Packets:     %d\n", rec.PacketCount)
	if url := d.ReferenceURL(); url != "" {
		fmt.Fprintf(&b, "\n%s", url)
	}
	return b.String()
}

func signatures(d catalog.Descriptor) string {
	parts := make([]string, len(d.Matches))
	for i, k := range d.Matches {
		parts[i] = k.String()
	}
	return strings.Join(parts, ", ")
}
