package tui

import (
	"errors"
	"net/netip"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sharkemon/internal/analysis"
	"sharkemon/internal/capture"
	"sharkemon/internal/catalog"
	"sharkemon/internal/discovery"
)

type staticLedger []discovery.Record

func (l staticLedger) Snapshot() []discovery.Record { return l }

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Parse([]byte(`[
		{"id": "ssh", "name": "SSH", "rarity": "rare", "full_name": "Secure Shell",
		 "wikipedia_title": "Secure Shell", "matches": ["TCP:22"]},
		{"id": "telnet", "name": "Telnet", "rarity": "legendary", "full_name": "Teletype Network",
		 "wikipedia_title": "Telnet", "matches": ["TCP:23"]}
	]`), catalog.ConflictReject)
	require.NoError(t, err)
	return c
}

var seen = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func TestViewHidesUndiscovered(t *testing.T) {
	ledger := staticLedger{{ID: "ssh", DateFound: seen, DateLastSeen: seen, PacketCount: 42}}
	m := NewCollectionModel(testCatalog(t), ledger, analysis.NewStats(), nil, "eth0")

	view := m.View()
	assert.Contains(t, view, "Listening on: eth0")
	assert.Contains(t, view, "Collected: 1 / 2")
	assert.Contains(t, view, "SSH")
	assert.Contains(t, view, "???")
	assert.NotContains(t, view, "Telnet")
	assert.Contains(t, view, "https://en.wikipedia.org/wiki/Secure_Shell", "first row is selected")
}

func TestFirstDiscoveryShowsBanner(t *testing.T) {
	c := testCatalog(t)
	m := NewCollectionModel(c, staticLedger{}, analysis.NewStats(), nil, "eth0")
	now := seen
	m.now = func() time.Time { return now }

	telnet, _ := c.ByID("telnet")
	updated, _ := m.Update(DiscoveryMsg(discovery.Event{
		Descriptor: telnet,
		Record:     discovery.Record{ID: "telnet", DateFound: seen, DateLastSeen: seen, PacketCount: 1},
		First:      true,
	}))
	m = updated.(CollectionModel)

	view := m.View()
	assert.Contains(t, view, "NEW DISCOVERY! Telnet (legendary)")
	assert.Contains(t, view, "Collected: 1 / 2")

	now = now.Add(bannerDuration + time.Second)
	assert.NotContains(t, m.View(), "NEW DISCOVERY!")
}

func TestRepeatSightingHasNoBanner(t *testing.T) {
	c := testCatalog(t)
	rec := discovery.Record{ID: "ssh", DateFound: seen, DateLastSeen: seen, PacketCount: 1}
	m := NewCollectionModel(c, staticLedger{rec}, analysis.NewStats(), nil, "eth0")

	ssh, _ := c.ByID("ssh")
	rec.PacketCount = 2
	updated, _ := m.Update(DiscoveryMsg(discovery.Event{Descriptor: ssh, Record: rec}))
	m = updated.(CollectionModel)

	assert.NotContains(t, m.View(), "NEW DISCOVERY!")
	assert.Contains(t, m.View(), "Packets:     2")
}

func TestTickRefreshesFromLedgerAndStats(t *testing.T) {
	c := testCatalog(t)
	stats := analysis.NewStats()
	ledger := &mutableLedger{}
	m := NewCollectionModel(c, ledger, stats, nil, "eth0")
	assert.Contains(t, m.View(), "Collected: 0 / 2")

	ssh, _ := c.ByID("ssh")
	ledger.records = []discovery.Record{{ID: "ssh", DateFound: seen, DateLastSeen: seen, PacketCount: 3}}
	stats.ObserveMatch(ssh)

	updated, cmd := m.Update(TickMsg(seen))
	m = updated.(CollectionModel)
	assert.NotNil(t, cmd)
	view := m.View()
	assert.Contains(t, view, "Collected: 1 / 2")
	assert.Contains(t, view, "SSH: 1")
}

type mutableLedger struct {
	records []discovery.Record
}

func (l *mutableLedger) Snapshot() []discovery.Record { return l.records }

func TestCaptureDoneQuitsWithError(t *testing.T) {
	m := NewCollectionModel(testCatalog(t), staticLedger{}, analysis.NewStats(), nil, "eth0")
	boom := errors.New("interface went away")

	updated, cmd := m.Update(CaptureDoneMsg{Err: boom})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.ErrorIs(t, updated.(CollectionModel).Err(), boom)
}

func TestQuitKey(t *testing.T) {
	events := make(chan discovery.Event)
	m := NewCollectionModel(testCatalog(t), staticLedger{}, analysis.NewStats(), events, "eth0")

	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(120, 40))
	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return strings.Contains(string(out), "Sharkemon")
	}, teatest.WithDuration(3*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	final := tm.FinalModel(t, teatest.WithFinalTimeout(3*time.Second))
	assert.NoError(t, final.(CollectionModel).Err())
}

func TestInterfaceLabel(t *testing.T) {
	assert.Equal(t, "eth0 - Ethernet [192.168.1.10, fe80::1]", interfaceLabel(capture.Interface{
		Name:        "eth0",
		Description: "Ethernet",
		Addresses:   []netip.Addr{netip.MustParseAddr("192.168.1.10"), netip.MustParseAddr("fe80::1")},
	}))
	assert.Equal(t, "lo (no address)", interfaceLabel(capture.Interface{Name: "lo"}))
	assert.Len(t, interfaceOptions([]capture.Interface{{Name: "a"}, {Name: "b"}}), 2)
}

func TestPickInterfaceWithoutInterfaces(t *testing.T) {
	_, err := PickInterface(nil)
	assert.ErrorIs(t, err, ErrNoInterfaces)
}
