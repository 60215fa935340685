package repository

import (
	"context"
	"errors"

	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/search"
)

// ErrNotFound is returned by point lookups that match no row.
var ErrNotFound = errors.New("not found")

// CardOrder selects the ORDER BY clause of a card listing.
type CardOrder int

const (
	OrderNone CardOrder = iota
	OrderID
	OrderDueOrd
	OrderDueID
	OrderDueRandom
)

// CardFilter narrows card queries. Zero values mean "no constraint".
type CardFilter struct {
	IDs       []int64
	DeckIDs   []int64
	NoteID    int64
	ExcludeID int64
	Queues    []models.Queue
	Types     []models.CardType
	// DueBefore keeps cards with due < *DueBefore.
	DueBefore *int64
	// DueAtMost keeps cards with due <= *DueAtMost.
	DueAtMost *int64
	// DueAtLeast keeps cards with due >= *DueAtLeast.
	DueAtLeast *int64
	// Filtered keeps only cards inside (true) or outside (false) filtered decks.
	Filtered *bool
	Order    CardOrder
	Limit    int
}

// FindOptions controls a search-driven card lookup.
type FindOptions struct {
	Order     models.FilterOrder
	Limit     int
	Today     int
	DayCutoff int64
	Now       int64
}

// CardRepository persists cards.
type CardRepository interface {
	Get(ctx context.Context, id int64) (*models.Card, error)
	Insert(ctx context.Context, card models.Card) error
	Update(ctx context.Context, card models.Card) error
	UpdateBatch(ctx context.Context, cards []models.Card) error
	List(ctx context.Context, filter CardFilter) ([]models.Card, error)
	IDs(ctx context.Context, filter CardFilter) ([]int64, error)
	DueEntries(ctx context.Context, filter CardFilter) ([]models.DueEntry, error)
	// Count honours filter.Limit, so it never counts past the limit.
	Count(ctx context.Context, filter CardFilter) (int, error)
	// SumStepsToday adds up left/1000 over the matching cards.
	SumStepsToday(ctx context.Context, filter CardFilter) (int, error)
	MaxNewDue(ctx context.Context) (int64, error)
	Find(ctx context.Context, query search.Node, opts FindOptions) ([]int64, error)
}

// RevlogRepository persists review log entries.
type RevlogRepository interface {
	Insert(ctx context.Context, entry models.ReviewLog) error
	ListForCard(ctx context.Context, cardID int64) ([]models.ReviewLog, error)
	DeleteLatestForCard(ctx context.Context, cardID int64) error
	MaxID(ctx context.Context) (int64, error)
	// ShiftEase adds delta to ease for learn/relearn rows whose ease is in eases.
	ShiftEase(ctx context.Context, eases []models.Ease, delta int) (int64, error)
}

// NoteRepository persists notes.
type NoteRepository interface {
	Get(ctx context.Context, id int64) (*models.Note, error)
	Insert(ctx context.Context, note models.Note) error
	UpdateTags(ctx context.Context, note models.Note) error
}

// DeckRepository persists decks and options groups.
type DeckRepository interface {
	List(ctx context.Context) ([]models.Deck, error)
	Insert(ctx context.Context, deck models.Deck) (int64, error)
	Update(ctx context.Context, deck models.Deck) error
	ListConfigs(ctx context.Context) ([]models.DeckConfig, error)
	InsertConfig(ctx context.Context, conf models.DeckConfig) (int64, error)
	UpdateConfig(ctx context.Context, conf models.DeckConfig) error
}

// CollectionRepository persists the collection row.
type CollectionRepository interface {
	Load(ctx context.Context) (*models.Collection, error)
	Save(ctx context.Context, col models.Collection) error
}

// Store groups the repositories of one collection. Repositories returned by
// a Store passed to InTx run inside that transaction.
type Store interface {
	Cards() CardRepository
	Revlog() RevlogRepository
	Notes() NoteRepository
	Decks() DeckRepository
	Collection() CollectionRepository
	InTx(ctx context.Context, fn func(Store) error) error
}
