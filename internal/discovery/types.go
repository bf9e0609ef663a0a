package discovery

import (
	"time"

	"sharkemon/internal/catalog"
)

// Record is the ledger entry for one discovered descriptor.
type Record struct {
	ID           string
	DateFound    time.Time
	DateLastSeen time.Time
	PacketCount  int64
}

// Event describes one sighting that updated the ledger. First is set only
// on the sighting that created the record.
type Event struct {
	Descriptor catalog.Descriptor
	Record     Record
	First      bool
}

// Store persists the whole ledger at once.
type Store interface {
	// Load returns the stored records; a missing store is an empty ledger.
	Load() ([]Record, error)
	Save(records []Record) error
	// Remove deletes the stored ledger. Removing a missing store succeeds.
	Remove() error
}
