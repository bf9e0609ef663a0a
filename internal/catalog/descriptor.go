package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"sharkemon/internal/models"
)

// Rarity is a display tier. It plays no part in matching.
type Rarity string

const (
	Common    Rarity = "common"
	Rare      Rarity = "rare"
	Epic      Rarity = "epic"
	Legendary Rarity = "legendary"
)

var ErrUnknownRarity = errors.New("unknown rarity")

// ParseRarity accepts the lowercase rarity names used in descriptor files.
func ParseRarity(s string) (Rarity, error) {
	switch r := Rarity(s); r {
	case Common, Rare, Epic, Legendary:
		return r, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownRarity, s)
}

// Rank orders rarities from common (0) to legendary (3).
func (r Rarity) Rank() int {
	switch r {
	case Rare:
		return 1
	case Epic:
		return 2
	case Legendary:
		return 3
	default:
		return 0
	}
}

// Descriptor is the static definition of a recognizable protocol.
// Matches must be treated as read-only once the descriptor is in a Catalog.
type Descriptor struct {
	ID             string
	Name           string
	Rarity         Rarity
	FullName       string
	ReferenceTitle string
	Matches        []models.MatchKey
}

// ReferenceURL links to the article named by ReferenceTitle.
func (d Descriptor) ReferenceURL() string {
	if d.ReferenceTitle == "" {
		return ""
	}
	return "https://en.wikipedia.org/wiki/" + strings.ReplaceAll(d.ReferenceTitle, " ", "_")
}

type descriptorFile struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Rarity         string   `json:"rarity"`
	FullName       string   `json:"full_name"`
	WikipediaTitle string   `json:"wikipedia_title"`
	Matches        []string `json:"matches"`
}

// MarshalJSON writes the descriptor in the descriptor file format.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	matches := make([]string, len(d.Matches))
	for i, m := range d.Matches {
		matches[i] = m.String()
	}
	return json.Marshal(descriptorFile{
		ID:             d.ID,
		Name:           d.Name,
		Rarity:         string(d.Rarity),
		FullName:       d.FullName,
		WikipediaTitle: d.ReferenceTitle,
		Matches:        matches,
	})
}

// UnmarshalJSON parses and validates a single descriptor entry.
func (d *Descriptor) UnmarshalJSON(b []byte) error {
	var raw descriptorFile
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := Descriptor{
		ID:             strings.TrimSpace(raw.ID),
		Name:           strings.TrimSpace(raw.Name),
		FullName:       raw.FullName,
		ReferenceTitle: raw.WikipediaTitle,
	}
	if out.ID == "" {
		return errors.New("descriptor missing id")
	}
	if out.Name == "" {
		return fmt.Errorf("descriptor %q missing name", out.ID)
	}
	rarity, err := ParseRarity(raw.Rarity)
	if err != nil {
		return fmt.Errorf("descriptor %q: %w", out.ID, err)
	}
	out.Rarity = rarity
	if len(raw.Matches) == 0 {
		return fmt.Errorf("descriptor %q has no matches", out.ID)
	}
	out.Matches = make([]models.MatchKey, 0, len(raw.Matches))
	for _, s := range raw.Matches {
		k, err := models.ParseMatchKey(s)
		if err != nil {
			return fmt.Errorf("descriptor %q: %w", out.ID, err)
		}
		out.Matches = append(out.Matches, k)
	}
	*d = out
	return nil
}
