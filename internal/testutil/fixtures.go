package testutil

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository/sqlite"
)

// Fixture seeds a test collection through the real repositories.
type Fixture struct {
	t      *testing.T
	DB     *sql.DB
	Store  *sqlite.Store
	nextID int64
}

// NewFixture opens a fresh collection. It is closed when the test ends.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	sqlDB := NewTestDB(t)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return &Fixture{t: t, DB: sqlDB, Store: sqlite.NewStore(sqlDB), nextID: 1_000_000}
}

func (f *Fixture) id() int64 {
	f.nextID++
	return f.nextID
}

// UpdateCollection loads, mutates and saves the collection row.
func (f *Fixture) UpdateCollection(mutate func(*models.Collection)) {
	f.t.Helper()
	ctx := context.Background()
	col, err := f.Store.Collection().Load(ctx)
	require.NoError(f.t, err)
	mutate(col)
	require.NoError(f.t, f.Store.Collection().Save(ctx, *col))
}

// AddConfig stores a copy of the default options group with mutate applied.
func (f *Fixture) AddConfig(name string, mutate func(*models.DeckConfig)) int64 {
	f.t.Helper()
	conf := models.DefaultDeckConfig()
	conf.ID = 0
	conf.Name = name
	if mutate != nil {
		mutate(&conf)
	}
	id, err := f.Store.Decks().InsertConfig(context.Background(), conf)
	require.NoError(f.t, err)
	return id
}

// UpdateDefaultConfig mutates the default options group in place.
func (f *Fixture) UpdateDefaultConfig(mutate func(*models.DeckConfig)) {
	f.t.Helper()
	ctx := context.Background()
	confs, err := f.Store.Decks().ListConfigs(ctx)
	require.NoError(f.t, err)
	for _, c := range confs {
		if c.ID == models.DefaultConfigID {
			mutate(&c)
			require.NoError(f.t, f.Store.Decks().UpdateConfig(ctx, c))
			return
		}
	}
	f.t.Fatalf("default deck config missing")
}

// AddDeck creates a regular deck using confID.
func (f *Fixture) AddDeck(name string, confID int64) int64 {
	f.t.Helper()
	id, err := f.Store.Decks().Insert(context.Background(), models.Deck{Name: name, ConfID: confID})
	require.NoError(f.t, err)
	return id
}

// AddFilteredDeck creates a filtered deck with the given terms.
func (f *Fixture) AddFilteredDeck(name string, resched bool, terms ...models.FilterTerm) int64 {
	f.t.Helper()
	d := models.NewFilteredDeck(name)
	d.Resched = resched
	if len(terms) > 0 {
		d.Terms = terms
	}
	id, err := f.Store.Decks().Insert(context.Background(), d)
	require.NoError(f.t, err)
	return id
}

// AddNote creates a note carrying tags.
func (f *Fixture) AddNote(tags ...string) int64 {
	f.t.Helper()
	id := f.id()
	require.NoError(f.t, f.Store.Notes().Insert(context.Background(), models.Note{ID: id, GUID: "g", Tags: tags, Fields: "front\x1fback"}))
	return id
}

// AddCard stores card, filling in an id when it has none.
func (f *Fixture) AddCard(card models.Card) models.Card {
	f.t.Helper()
	if card.ID == 0 {
		card.ID = f.id()
	}
	if card.DeckID == 0 {
		card.DeckID = models.DefaultDeckID
	}
	require.NoError(f.t, f.Store.Cards().Insert(context.Background(), card))
	return card
}

// NewCard adds a note with one new card at position due.
func (f *Fixture) NewCard(deckID int64, due int64) models.Card {
	f.t.Helper()
	nid := f.AddNote()
	return f.AddCard(models.Card{NoteID: nid, DeckID: deckID, Type: models.CardTypeNew, Queue: models.QueueNew, Due: due})
}

// ReviewCard adds a note with one review card due on day due.
func (f *Fixture) ReviewCard(deckID int64, due int64, ivl int) models.Card {
	f.t.Helper()
	nid := f.AddNote()
	return f.AddCard(models.Card{
		NoteID: nid, DeckID: deckID, Type: models.CardTypeReview, Queue: models.QueueReview,
		Due: due, Interval: ivl, Factor: models.StartingFactor, Reps: 3,
	})
}

// Card reloads a card from the store.
func (f *Fixture) Card(id int64) models.Card {
	f.t.Helper()
	c, err := f.Store.Cards().Get(context.Background(), id)
	require.NoError(f.t, err)
	return *c
}

// Note reloads a note from the store.
func (f *Fixture) Note(id int64) models.Note {
	f.t.Helper()
	n, err := f.Store.Notes().Get(context.Background(), id)
	require.NoError(f.t, err)
	return *n
}

// SetCard overwrites a stored card.
func (f *Fixture) SetCard(card models.Card) {
	f.t.Helper()
	require.NoError(f.t, f.Store.Cards().Update(context.Background(), card))
}
