// Package decks keeps the deck tree and options groups of a collection in memory.
package decks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vytor/cardsched/internal/logger"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository"
)

// ErrInvalidDeck is returned when a new deck has no name or a taken one.
var ErrInvalidDeck = errors.New("invalid deck")

// Manager is a snapshot of every deck and options group. It is not safe for
// concurrent use; the scheduler owns it.
type Manager struct {
	decks  map[int64]*models.Deck
	byName map[string]int64
	confs  map[int64]models.DeckConfig
}

// Load reads all decks and options groups from repo.
func Load(ctx context.Context, repo repository.DeckRepository) (*Manager, error) {
	log := logger.FromContext(ctx).WithPrefix("decks")

	list, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load decks: %w", err)
	}
	confs, err := repo.ListConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load deck configs: %w", err)
	}

	m := &Manager{
		decks:  make(map[int64]*models.Deck, len(list)),
		byName: make(map[string]int64, len(list)),
		confs:  make(map[int64]models.DeckConfig, len(confs)),
	}
	for i := range list {
		d := list[i]
		m.decks[d.ID] = &d
		m.byName[strings.ToLower(d.Name)] = d.ID
	}
	for _, c := range confs {
		m.confs[c.ID] = c
	}
	log.Debug("loaded %d decks and %d configs", len(m.decks), len(m.confs))
	return m, nil
}

// Get returns the deck with id.
func (m *Manager) Get(id int64) (*models.Deck, bool) {
	d, ok := m.decks[id]
	return d, ok
}

// ByName looks a deck up by its full name, ignoring case.
func (m *Manager) ByName(name string) (*models.Deck, bool) {
	id, ok := m.byName[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return m.Get(id)
}

// All returns every deck sorted by name, so parents come before children.
func (m *Manager) All() []*models.Deck {
	out := make([]*models.Deck, 0, len(m.decks))
	for _, d := range m.decks {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return lessName(out[i].Name, out[j].Name) })
	return out
}

// lessName orders deck names component by component.
func lessName(a, b string) bool {
	pa := strings.Split(strings.ToLower(a), models.DeckSeparator)
	pb := strings.Split(strings.ToLower(b), models.DeckSeparator)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] != pb[i] {
			return pa[i] < pb[i]
		}
	}
	return len(pa) < len(pb)
}

// Parents returns the existing ancestors of id, root first.
func (m *Manager) Parents(id int64) []*models.Deck {
	d, ok := m.decks[id]
	if !ok {
		return nil
	}
	var out []*models.Deck
	for _, name := range d.ParentNames() {
		if p, ok := m.ByName(name); ok {
			out = append(out, p)
		}
	}
	return out
}

// Parent returns the direct parent of id, if it exists.
func (m *Manager) Parent(id int64) (*models.Deck, bool) {
	parents := m.Parents(id)
	if len(parents) == 0 {
		return nil, false
	}
	last := parents[len(parents)-1]
	d := m.decks[id]
	if len(last.Path()) != len(d.Path())-1 {
		return nil, false
	}
	return last, true
}

// Children returns every descendant of id in name order.
func (m *Manager) Children(id int64) []*models.Deck {
	d, ok := m.decks[id]
	if !ok {
		return nil
	}
	prefix := strings.ToLower(d.Name) + models.DeckSeparator
	var out []*models.Deck
	for _, c := range m.All() {
		if strings.HasPrefix(strings.ToLower(c.Name), prefix) {
			out = append(out, c)
		}
	}
	return out
}

// ChildIDs returns the ids of every descendant of id.
func (m *Manager) ChildIDs(id int64) []int64 {
	children := m.Children(id)
	ids := make([]int64, len(children))
	for i, c := range children {
		ids[i] = c.ID
	}
	return ids
}

// Active returns cur followed by its descendants in name order. An unknown
// deck falls back to the default deck.
func (m *Manager) Active(cur int64) []int64 {
	if _, ok := m.decks[cur]; !ok {
		cur = models.DefaultDeckID
	}
	return append([]int64{cur}, m.ChildIDs(cur)...)
}

// IDs returns every deck id.
func (m *Manager) IDs() []int64 {
	all := m.All()
	ids := make([]int64, len(all))
	for i, d := range all {
		ids[i] = d.ID
	}
	return ids
}

// FilteredIDs returns the ids of every filtered deck.
func (m *Manager) FilteredIDs() []int64 {
	var ids []int64
	for _, d := range m.All() {
		if d.Dynamic {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// ConfFor returns the options group of a regular deck. Filtered decks and
// decks pointing at a missing group get the default group.
func (m *Manager) ConfFor(id int64) models.DeckConfig {
	d, ok := m.decks[id]
	if ok && !d.Dynamic {
		if c, ok := m.confs[d.ConfID]; ok {
			return c
		}
	}
	if c, ok := m.confs[models.DefaultConfigID]; ok {
		return c
	}
	return models.DefaultDeckConfig()
}

// Conf returns an options group by id.
func (m *Manager) Conf(id int64) (models.DeckConfig, bool) {
	c, ok := m.confs[id]
	return c, ok
}

// RollOver resets every stale counter in memory and returns the decks it touched.
func (m *Manager) RollOver(today int) []*models.Deck {
	var changed []*models.Deck
	for _, d := range m.All() {
		if d.RollOver(today) {
			changed = append(changed, d)
		}
	}
	return changed
}

// Save writes the given decks through repo.
func (m *Manager) Save(ctx context.Context, repo repository.DeckRepository, decks ...*models.Deck) error {
	for _, d := range decks {
		if err := repo.Update(ctx, *d); err != nil {
			return fmt.Errorf("save deck %d: %w", d.ID, err)
		}
	}
	return nil
}

// Add creates a deck through repo and registers it.
func (m *Manager) Add(ctx context.Context, repo repository.DeckRepository, d models.Deck) (*models.Deck, error) {
	if d.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidDeck)
	}
	if _, exists := m.ByName(d.Name); exists {
		return nil, fmt.Errorf("%w: %q already exists", ErrInvalidDeck, d.Name)
	}
	if !d.Dynamic && d.ConfID == 0 {
		d.ConfID = models.DefaultConfigID
	}
	id, err := repo.Insert(ctx, d)
	if err != nil {
		return nil, err
	}
	d.ID = id
	m.decks[id] = &d
	m.byName[strings.ToLower(d.Name)] = id
	return &d, nil
}
