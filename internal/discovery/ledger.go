package discovery

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sharkemon/internal/catalog"
)

// ErrPersist is returned when a sighting could not be written to the store.
// The in-memory ledger is rolled back, so it still matches the store.
var ErrPersist = errors.New("ledger persistence failed")

type Option func(*Ledger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithRetry sets how saves are retried.
func WithRetry(cfg RetryConfig) Option {
	return func(l *Ledger) { l.retry = cfg }
}

// WithLogger sets the ledger logger. It defaults to the global logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithObserver subscribes o from the start.
func WithObserver(o Observer) Option {
	return func(l *Ledger) { l.observers = append(l.observers, o) }
}

func withSleep(sleep func(time.Duration)) Option {
	return func(l *Ledger) { l.sleep = sleep }
}

// Ledger is the persisted set of discovery records, in discovery order,
// with at most one record per descriptor id. Every change is written
// through to the store before the call returns.
type Ledger struct {
	mu      sync.RWMutex
	store   Store
	records []Record
	index   map[string]int

	now    func() time.Time
	sleep  func(time.Duration)
	retry  RetryConfig
	logger zerolog.Logger

	obsMu     sync.RWMutex
	observers []Observer
}

// Open loads the ledger from store.
func Open(store Store, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		store:  store,
		index:  make(map[string]int),
		now:    time.Now,
		sleep:  time.Sleep,
		retry:  DefaultRetryConfig(),
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(l)
	}

	loaded, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	for _, rec := range loaded {
		if rec.ID == "" {
			return nil, errors.New("load ledger: record without id")
		}
		if rec.PacketCount < 1 {
			rec.PacketCount = 1
		}
		if i, dup := l.index[rec.ID]; dup {
			l.logger.Warn().Str("id", rec.ID).Msg("merging duplicate ledger record")
			l.records[i] = merge(l.records[i], rec)
			continue
		}
		l.index[rec.ID] = len(l.records)
		l.records = append(l.records, rec)
	}
	return l, nil
}

func merge(a, b Record) Record {
	if b.DateFound.Before(a.DateFound) {
		a.DateFound = b.DateFound
	}
	if b.DateLastSeen.After(a.DateLastSeen) {
		a.DateLastSeen = b.DateLastSeen
	}
	a.PacketCount += b.PacketCount
	return a
}

// Subscribe adds an observer for future sightings.
func (l *Ledger) Subscribe(o Observer) {
	l.obsMu.Lock()
	defer l.obsMu.Unlock()
	l.observers = append(l.observers, o)
}

// Sight records one match for d. The first sighting of an id creates its
// record; later ones advance DateLastSeen and PacketCount. The ledger is
// saved before Sight returns.
func (l *Ledger) Sight(d catalog.Descriptor) (Event, error) {
	l.mu.Lock()

	now := l.now()
	i, found := l.index[d.ID]
	var prev Record
	if found {
		prev = l.records[i]
		rec := prev
		if now.After(rec.DateLastSeen) {
			rec.DateLastSeen = now
		}
		rec.PacketCount++
		l.records[i] = rec
	} else {
		i = len(l.records)
		l.records = append(l.records, Record{ID: d.ID, DateFound: now, DateLastSeen: now, PacketCount: 1})
		l.index[d.ID] = i
	}

	if err := l.persistLocked(); err != nil {
		if found {
			l.records[i] = prev
		} else {
			l.records = l.records[:i]
			delete(l.index, d.ID)
		}
		l.mu.Unlock()
		return Event{}, fmt.Errorf("%w: sighting of %q: %w", ErrPersist, d.ID, err)
	}

	ev := Event{Descriptor: d, Record: l.records[i], First: !found}
	l.mu.Unlock()

	if ev.First {
		l.logger.Info().Str("id", d.ID).Str("name", d.Name).Str("rarity", string(d.Rarity)).Msg("new protocol discovered")
	}
	l.notify(ev)
	return ev, nil
}

func (l *Ledger) persistLocked() error {
	attempts := l.retry.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = l.store.Save(l.records); err == nil {
			return nil
		}
		l.logger.Warn().Err(err).Int("attempt", attempt).Int("of", attempts).Msg("ledger save failed")
		if attempt < attempts {
			l.sleep(nextBackoffDelay(l.retry, attempt))
		}
	}
	return err
}

func (l *Ledger) notify(ev Event) {
	l.obsMu.RLock()
	observers := l.observers
	l.obsMu.RUnlock()
	for _, o := range observers {
		o.OnDiscovery(ev)
	}
}

// Snapshot returns a copy of every record in discovery order.
func (l *Ledger) Snapshot() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Get returns a copy of the record for id.
func (l *Ledger) Get(id string) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.index[id]
	if !ok {
		return Record{}, false
	}
	return l.records[i], true
}

// Len returns the number of discovered descriptors.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Reset forgets every discovery and deletes the stored ledger. It is the
// only way a record goes away.
func (l *Ledger) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.store.Remove(); err != nil {
		return fmt.Errorf("reset ledger: %w", err)
	}
	l.records = nil
	l.index = make(map[string]int)
	l.logger.Info().Msg("ledger reset")
	return nil
}
