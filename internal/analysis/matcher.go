package analysis

import (
	"sharkemon/internal/catalog"
	"sharkemon/internal/models"
)

// MatchFunc is called with the descriptor owning a matched packet.
type MatchFunc func(catalog.Descriptor) error

// Matcher classifies packets against a catalog. It keeps no state between
// packets: every matching packet produces one call.
type Matcher struct {
	catalog *catalog.Catalog
	onMatch MatchFunc
}

// NewMatcher creates a matcher over c that calls onMatch for every hit.
func NewMatcher(c *catalog.Catalog, onMatch MatchFunc) *Matcher {
	return &Matcher{catalog: c, onMatch: onMatch}
}

// ClassificationPort is the port of the non-local side of the exchange:
// the destination for outbound packets, the source for inbound ones.
func ClassificationPort(p models.SimplePacket) uint16 {
	if p.Direction == models.DirectionOut {
		return p.DstPort
	}
	return p.SrcPort
}

// KeyFor builds the catalog key for a packet.
func KeyFor(p models.SimplePacket) models.MatchKey {
	return models.MatchKey{Protocol: p.TransportProtocol, Port: ClassificationPort(p)}
}

// Match looks the packet up without side effects.
func (m *Matcher) Match(p models.SimplePacket) (catalog.Descriptor, bool) {
	return m.catalog.Lookup(KeyFor(p))
}

// Consume matches p and reports a hit to the match callback. Misses are
// not errors.
func (m *Matcher) Consume(p models.SimplePacket) error {
	d, ok := m.Match(p)
	if !ok || m.onMatch == nil {
		return nil
	}
	return m.onMatch(d)
}
