package card

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Library holds the read-only card master data plus the named deck
// lists available for battle creation. It is built once at startup and
// safe for concurrent reads.
type Library struct {
	byID   map[string]*Card
	byName map[string][]*Card
	sorted []*Card // by name, for prefix search
	decks  map[string][]string
	logger *zap.Logger
}

type libraryFile struct {
	Cards []*Card `yaml:"cards"`
}

type deckFile struct {
	Name  string   `yaml:"name"`
	Cards []string `yaml:"cards"` // card IDs, in deck order
}

// NewLibrary loads master card data from cardPath and every *.yaml deck
// list under deckDir. deckDir may be empty.
func NewLibrary(cardPath, deckDir string, logger *zap.Logger) (*Library, error) {
	data, err := os.ReadFile(cardPath)
	if err != nil {
		return nil, fmt.Errorf("read card data: %w", err)
	}

	var file libraryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse card data: %w", err)
	}

	lib := &Library{
		byID:   make(map[string]*Card),
		byName: make(map[string][]*Card),
		decks:  make(map[string][]string),
		logger: logger,
	}

	for _, c := range file.Cards {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("card data: %w", err)
		}
		if _, dup := lib.byID[c.ID]; dup {
			return nil, fmt.Errorf("card data: duplicate id %s", c.ID)
		}
		lib.byID[c.ID] = c
		key := strings.ToLower(c.Name)
		lib.byName[key] = append(lib.byName[key], c)
		lib.sorted = append(lib.sorted, c)
	}

	sort.Slice(lib.sorted, func(i, j int) bool {
		return lib.sorted[i].Name < lib.sorted[j].Name
	})

	if deckDir != "" {
		if err := lib.loadDecks(deckDir); err != nil {
			return nil, err
		}
	}

	logger.Info("card library loaded",
		zap.Int("cards", len(lib.byID)),
		zap.Int("decks", len(lib.decks)),
	)

	return lib, nil
}

func (l *Library) loadDecks(dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return fmt.Errorf("list decks: %w", err)
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read deck %s: %w", path, err)
		}
		var deck deckFile
		if err := yaml.Unmarshal(data, &deck); err != nil {
			return fmt.Errorf("parse deck %s: %w", path, err)
		}
		if deck.Name == "" {
			deck.Name = strings.TrimSuffix(filepath.Base(path), ".yaml")
		}
		for _, id := range deck.Cards {
			if _, ok := l.byID[id]; !ok {
				return fmt.Errorf("deck %s: unknown card id %s", deck.Name, id)
			}
		}
		l.decks[deck.Name] = deck.Cards
	}
	return nil
}

// Get returns the card with the given ID.
func (l *Library) Get(id string) (*Card, bool) {
	c, ok := l.byID[id]
	return c, ok
}

// SearchByName returns cards whose name starts with the given prefix,
// case-insensitively, capped at limit. Used by the sandbox card picker.
func (l *Library) SearchByName(prefix string, limit int) []*Card {
	if limit <= 0 {
		limit = 20
	}
	prefix = strings.ToLower(prefix)

	var out []*Card
	for _, c := range l.sorted {
		if strings.HasPrefix(strings.ToLower(c.Name), prefix) {
			out = append(out, c)
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}

// Deck resolves a named deck list to its cards in deck order.
func (l *Library) Deck(name string) ([]*Card, error) {
	ids, ok := l.decks[name]
	if !ok {
		return nil, fmt.Errorf("unknown deck %q", name)
	}
	cards := make([]*Card, 0, len(ids))
	for _, id := range ids {
		cards = append(cards, l.byID[id])
	}
	return cards, nil
}

// DeckNames lists the available deck lists, sorted.
func (l *Library) DeckNames() []string {
	names := make([]string, 0, len(l.decks))
	for name := range l.decks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of cards in the library.
func (l *Library) Count() int {
	return len(l.byID)
}
