package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sharkemon/internal/analysis"
	"sharkemon/internal/catalog"
	"sharkemon/internal/discovery"
)

const bannerDuration = 5 * time.Second

// Ledger is the read side of the discovery ledger.
type Ledger interface {
	Snapshot() []discovery.Record
}

type CollectionModel struct {
	catalog       *catalog.Catalog
	descriptors   []catalog.Descriptor
	ledger        Ledger
	stats         *analysis.Stats
	events        <-chan discovery.Event
	interfaceName string

	table   table.Model
	records map[string]discovery.Record
	fps     float64
	mps     float64
	totals  analysis.Totals
	topHits []analysis.HitStat

	banner      string
	bannerUntil time.Time
	captureErr  error
	now         func() time.Time
}

// NewCollectionModel creates the catalog view over cat, filled from ledger
// and kept current by events and periodic ticks.
func NewCollectionModel(cat *catalog.Catalog, ledger Ledger, stats *analysis.Stats, events <-chan discovery.Event, iface string) CollectionModel {
	columns := []table.Column{
		{Title: "#", Width: 4},
		{Title: "Name", Width: 16},
		{Title: "Rarity", Width: 10},
		{Title: "Packets", Width: 10},
		{Title: "Last Seen", Width: 19},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	m := CollectionModel{
		catalog:       cat,
		descriptors:   cat.Descriptors(),
		ledger:        ledger,
		stats:         stats,
		events:        events,
		interfaceName: iface,
		table:         t,
		records:       make(map[string]discovery.Record),
		now:           time.Now,
	}
	m.refresh()
	return m
}

// Err is the capture error that ended the session, if any.
func (m CollectionModel) Err() error {
	return m.captureErr
}

// Init starts the refresh tick and the event listener.
func (m CollectionModel) Init() tea.Cmd {
	return tea.Batch(tickCmd(), waitForEvent(m.events))
}

type TickMsg time.Time

// DiscoveryMsg carries one ledger event to the model.
type DiscoveryMsg discovery.Event

// CaptureDoneMsg reports that the capture session has ended.
type CaptureDoneMsg struct {
	Err error
}

type eventsClosedMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func waitForEvent(events <-chan discovery.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return DiscoveryMsg(ev)
	}
}
