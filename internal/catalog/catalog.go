package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"sharkemon/internal/models"
)

//go:embed descriptors.json
var defaultDescriptors []byte

var (
	ErrDuplicateID = errors.New("duplicate descriptor id")
	ErrConflict    = errors.New("match key claimed by more than one descriptor")
)

// ConflictPolicy decides what happens when two descriptors claim the same
// match key.
type ConflictPolicy int

const (
	// ConflictReject fails the load.
	ConflictReject ConflictPolicy = iota
	// ConflictLastWins keeps the descriptor defined later in load order.
	ConflictLastWins
)

// ParseConflictPolicy maps the config spelling to a policy.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch s {
	case "", "reject":
		return ConflictReject, nil
	case "last-wins":
		return ConflictLastWins, nil
	}
	return 0, fmt.Errorf("unknown conflict policy %q", s)
}

// String returns the config spelling of the policy.
func (p ConflictPolicy) String() string {
	if p == ConflictLastWins {
		return "last-wins"
	}
	return "reject"
}

// Catalog is the immutable set of descriptors and the match-key index built
// from them. It is safe for concurrent use.
type Catalog struct {
	descriptors []Descriptor
	byID        map[string]int
	index       map[models.MatchKey]int
}

// New builds a catalog from descriptors in definition order.
func New(descriptors []Descriptor, policy ConflictPolicy) (*Catalog, error) {
	c := &Catalog{
		descriptors: make([]Descriptor, len(descriptors)),
		byID:        make(map[string]int, len(descriptors)),
		index:       make(map[models.MatchKey]int),
	}
	copy(c.descriptors, descriptors)

	for i, d := range c.descriptors {
		if prev, ok := c.byID[d.ID]; ok {
			return nil, fmt.Errorf("%w %q (entries %d and %d)", ErrDuplicateID, d.ID, prev, i)
		}
		c.byID[d.ID] = i

		for _, key := range d.Matches {
			if prev, ok := c.index[key]; ok && prev != i && policy == ConflictReject {
				return nil, fmt.Errorf("%w: %s by %q and %q", ErrConflict, key, c.descriptors[prev].ID, d.ID)
			}
			c.index[key] = i
		}
	}
	return c, nil
}

// Parse reads a JSON array of descriptor definitions.
func Parse(data []byte, policy ConflictPolicy) (*Catalog, error) {
	var descriptors []Descriptor
	if err := json.Unmarshal(data, &descriptors); err != nil {
		return nil, fmt.Errorf("parse descriptors: %w", err)
	}
	return New(descriptors, policy)
}

// LoadFile reads a descriptor file from disk.
func LoadFile(path string, policy ConflictPolicy) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptors: %w", err)
	}
	c, err := Parse(data, policy)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultDescriptors, ConflictReject)
}

// Lookup returns the descriptor owning key.
func (c *Catalog) Lookup(key models.MatchKey) (Descriptor, bool) {
	i, ok := c.index[key]
	if !ok {
		return Descriptor{}, false
	}
	return c.descriptors[i], true
}

// ByID returns the descriptor with the given id.
func (c *Catalog) ByID(id string) (Descriptor, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Descriptor{}, false
	}
	return c.descriptors[i], true
}

// Descriptors returns every descriptor in definition order.
func (c *Catalog) Descriptors() []Descriptor {
	out := make([]Descriptor, len(c.descriptors))
	copy(out, c.descriptors)
	return out
}

// Len returns the number of descriptors.
func (c *Catalog) Len() int {
	return len(c.descriptors)
}
