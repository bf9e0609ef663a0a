package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"sharkemon/internal/discovery"
)

// Update handles keys, ticks, discovery events and the end of capture.
func (m CollectionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case TickMsg:
		if m.stats != nil {
			m.fps, m.mps = m.stats.GetRates()
			m.totals = m.stats.GetTotals()
			m.topHits = m.stats.GetTopHits(5)
		}
		m.refresh()
		return m, tickCmd()

	case DiscoveryMsg:
		ev := discovery.Event(msg)
		m.records[ev.Record.ID] = ev.Record
		if ev.First {
			m.banner = fmt.Sprintf("NEW DISCOVERY! %s (%s)", ev.Descriptor.Name, ev.Descriptor.Rarity)
			m.bannerUntil = m.now().Add(bannerDuration)
		}
		m.setRows()
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		return m, nil

	case CaptureDoneMsg:
		m.captureErr = msg.Err
		return m, tea.Quit
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// refresh reloads records from the ledger snapshot.
func (m *CollectionModel) refresh() {
	if m.ledger != nil {
		for _, rec := range m.ledger.Snapshot() {
			m.records[rec.ID] = rec
		}
	}
	m.setRows()
}

func (m *CollectionModel) setRows() {
	rows := make([]table.Row, len(m.descriptors))
	for i, d := range m.descriptors {
		num := fmt.Sprintf("%03d", i+1)
		rec, ok := m.records[d.ID]
		if !ok {
			rows[i] = table.Row{num, "???", "???", "-", "-"}
			continue
		}
		rows[i] = table.Row{num, d.Name, string(d.Rarity), fmt.Sprintf("%d", rec.PacketCount), rec.DateLastSeen.Local().Format(time.DateTime)}
	}
	m.table.SetRows(rows)
}
