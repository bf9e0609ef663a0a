package analysis

import (
	"sort"
	"sync"
	"time"

	"sharkemon/internal/catalog"
	"sharkemon/internal/models"
)

// HitStat is the number of session matches for one descriptor.
type HitStat struct {
	ID    string
	Count int64
}

// Totals are the cumulative frame counters of a session.
type Totals struct {
	Frames         int64
	Classified     int64
	Unclassifiable int64
	Failed         int64
	Matched        int64
}

// Stats tracks capture activity for display. It is written from the
// capture goroutine and read by the UI.
type Stats struct {
	mu            sync.Mutex
	totals        Totals
	windowFrames  int64
	windowMatches int64
	lastTick      time.Time
	hits          map[string]int64
	lastMatch     string
	lastMatchAt   time.Time
}

// NewStats creates a new Stats instance.
func NewStats() *Stats {
	return &Stats{
		lastTick: time.Now(),
		hits:     make(map[string]int64),
	}
}

// ObserveFrame records the outcome of one captured frame.
func (s *Stats) ObserveFrame(o models.FrameOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totals.Frames++
	s.windowFrames++
	switch o {
	case models.FrameClassified:
		s.totals.Classified++
	case models.FrameUnclassifiable:
		s.totals.Unclassifiable++
	default:
		s.totals.Failed++
	}
}

// ObserveMatch records one catalog hit.
func (s *Stats) ObserveMatch(d catalog.Descriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totals.Matched++
	s.windowMatches++
	s.hits[d.ID]++
	s.lastMatch = d.ID
	s.lastMatchAt = time.Now()
}

// GetRates returns frames and matches per second since the last call.
func (s *Stats) GetRates() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	duration := now.Sub(s.lastTick).Seconds()
	if duration == 0 {
		return 0, 0
	}

	fps := float64(s.windowFrames) / duration
	mps := float64(s.windowMatches) / duration

	s.windowFrames = 0
	s.windowMatches = 0
	s.lastTick = now

	return fps, mps
}

// GetTotals returns the cumulative counters.
func (s *Stats) GetTotals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals
}

// GetLastMatch returns the most recently matched descriptor id.
func (s *Stats) GetLastMatch() (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMatch, s.lastMatchAt
}

// GetTopHits returns the descriptors matched most often this session.
func (s *Stats) GetTopHits(limit int) []HitStat {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make([]HitStat, 0, len(s.hits))
	for id, count := range s.hits {
		stats = append(stats, HitStat{ID: id, Count: count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].ID < stats[j].ID
	})

	if len(stats) > limit {
		return stats[:limit]
	}
	return stats
}
