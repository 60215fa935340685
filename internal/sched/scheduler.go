// Package sched decides which card is studied next and how an answer
// reschedules it. Two policies are supported: version 1 counts days from
// the collection creation time, version 2 starts each day at a local
// rollover hour and adds a hard button, preview decks and separate buried
// queues.
//
// A Scheduler is not safe for concurrent use.
package sched

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/vytor/cardsched/internal/decks"
	"github.com/vytor/cardsched/internal/logger"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository"
)

const (
	queueLimit     = 50
	reportLimit    = 1000
	dynReportLimit = 99999

	// ReportLimit is the largest count reported for a single queue.
	ReportLimit = reportLimit
)

// Hooks are callbacks fired after a change has been committed.
type Hooks struct {
	Leech func(ctx context.Context, card models.Card)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLocation sets the time zone used for rollover days.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithRand sets the random source used for fuzz and ordering.
func WithRand(r *rand.Rand) Option {
	return func(s *Scheduler) { s.rnd = r }
}

// WithHooks registers callbacks.
func WithHooks(h Hooks) Option {
	return func(s *Scheduler) { s.hooks = h }
}

// Scheduler is the study facade over one collection.
type Scheduler struct {
	store  repository.Store
	decks  *decks.Manager
	col    models.Collection
	policy policy

	now   func() time.Time
	loc   *time.Location
	rnd   *rand.Rand
	hooks Hooks
	ids   logIDAllocator

	today      int
	dayCutoff  int64
	lrnCutoff  int64
	haveQueues bool

	newCount       int
	lrnCount       int
	revCount       int
	newCardModulus int

	newQueue    []int64
	newDids     []int64
	lrnQueue    lrnHeap
	lrnDayQueue []int64
	lrnDids     []int64
	revQueue    []int64
	revDids     []int64

	reps         int
	undo         []undoEntry
	timeboxStart time.Time
	timeboxReps  int
}

// New loads the collection from store and prepares today's queues.
func New(ctx context.Context, store repository.Store, opts ...Option) (*Scheduler, error) {
	log := logger.FromContext(ctx).WithPrefix("sched")

	s := &Scheduler{
		store: store,
		now:   time.Now,
		loc:   time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(s.now().UnixNano()))
	}

	if err := s.load(ctx); err != nil {
		return nil, err
	}
	p, err := newPolicy(s, s.col.Conf.SchedVer)
	if err != nil {
		return nil, err
	}
	s.policy = p

	if s.col.Crt == 0 {
		s.col.Crt = startOfDay(s.now(), s.col.Conf.Rollover, s.loc)
		if err := s.saveCollection(ctx, store); err != nil {
			return nil, err
		}
		log.Info("initialised collection creation time: crt=%d", s.col.Crt)
	}

	maxID, err := store.Revlog().MaxID(ctx)
	if err != nil {
		return nil, fmt.Errorf("load review log id: %w", err)
	}
	s.ids.seed(maxID)
	s.timeboxStart = s.now()

	if err := s.Reset(ctx); err != nil {
		return nil, err
	}
	log.Debug("scheduler ready: version=%d, today=%d, cutoff=%d", s.policy.version(), s.today, s.dayCutoff)
	return s, nil
}

func (s *Scheduler) load(ctx context.Context) error {
	col, err := s.store.Collection().Load(ctx)
	if err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	m, err := decks.Load(ctx, s.store.Decks())
	if err != nil {
		return err
	}
	s.col = *col
	s.decks = m
	return nil
}

// Reload rereads decks and the collection row, discarding in-memory state.
func (s *Scheduler) Reload(ctx context.Context) error {
	if err := s.load(ctx); err != nil {
		return err
	}
	p, err := newPolicy(s, s.col.Conf.SchedVer)
	if err != nil {
		return err
	}
	s.policy = p
	return s.Reset(ctx)
}

func (s *Scheduler) nowUnix() int64 { return s.now().Unix() }

// Version is the active scheduler version.
func (s *Scheduler) Version() int { return s.policy.version() }

// Today is the current day index.
func (s *Scheduler) Today() int { return s.today }

// DayCutoff is the epoch second at which the current day ends.
func (s *Scheduler) DayCutoff() int64 { return s.dayCutoff }

// Collection returns a copy of the collection row.
func (s *Scheduler) Collection() models.Collection { return s.col }

// Decks returns the deck tree.
func (s *Scheduler) Decks() *decks.Manager { return s.decks }

func (s *Scheduler) usn() int { return s.col.CurrentUSN() }

func (s *Scheduler) saveCollection(ctx context.Context, st repository.Store) error {
	s.col.Mod = s.now().UnixMilli()
	if err := st.Collection().Save(ctx, s.col); err != nil {
		return fmt.Errorf("save collection: %w", err)
	}
	return nil
}

// active is the list of decks studied from, current deck first.
func (s *Scheduler) active() []int64 {
	if len(s.col.Conf.ActiveDecks) > 0 {
		return s.col.Conf.ActiveDecks
	}
	return s.decks.Active(s.col.Conf.CurDeck)
}

// CheckDay resets the queues if the day has ended. It reports whether it did.
func (s *Scheduler) CheckDay(ctx context.Context) (bool, error) {
	if s.nowUnix() <= s.dayCutoff {
		return false, nil
	}
	return true, s.Reset(ctx)
}

func (s *Scheduler) ensureQueues(ctx context.Context) error {
	rolled, err := s.CheckDay(ctx)
	if err != nil || rolled || s.haveQueues {
		return err
	}
	return s.Reset(ctx)
}

// Reset recomputes the day and rebuilds every queue.
func (s *Scheduler) Reset(ctx context.Context) error {
	if err := s.updateCutoff(ctx); err != nil {
		return err
	}
	if err := s.resetLrn(ctx, s.store); err != nil {
		return err
	}
	if err := s.policy.resetRev(ctx, s.store); err != nil {
		return fmt.Errorf("reset review queue: %w", err)
	}
	if err := s.resetNew(ctx, s.store); err != nil {
		return err
	}
	s.haveQueues = true
	return nil
}

func (s *Scheduler) updateCutoff(ctx context.Context) error {
	log := logger.FromContext(ctx).WithPrefix("sched")

	oldToday := s.today
	s.today, s.dayCutoff = s.policy.dayBounds(s.col.Crt, s.now())
	if oldToday != s.today {
		log.Info("day changed: today=%d, cutoff=%d", s.today, s.dayCutoff)
	}
	// Counters are saved with the next answer.
	s.decks.RollOver(s.today)

	if s.col.Conf.LastUnburied < s.today {
		return s.store.InTx(ctx, func(st repository.Store) error {
			res, err := s.unbury(ctx, st, s.policy.buriedQueues(UnburyAll), nil)
			if err != nil {
				return err
			}
			s.col.Conf.LastUnburied = s.today
			if len(res.Changed) > 0 {
				log.Info("unburied %d cards on rollover", len(res.Changed))
			}
			return s.saveCollection(ctx, st)
		})
	}
	return nil
}

// GetCard pops the next card to study, or nil when nothing is due.
func (s *Scheduler) GetCard(ctx context.Context) (*models.Card, error) {
	if err := s.ensureQueues(ctx); err != nil {
		return nil, err
	}
	c, err := s.nextCard(ctx, s.store)
	if err != nil || c == nil {
		return nil, err
	}
	s.reps++
	c.StartTimer(s.now())
	logger.FromContext(ctx).WithPrefix("sched").Debug("next card: id=%d, queue=%s, due=%d", c.ID, c.Queue, c.Due)
	return c, nil
}

// Counts returns the remaining new, learning and review counts. A card
// that is currently shown has been popped already, so it is added back.
func (s *Scheduler) Counts(ctx context.Context, current *models.Card) (models.Counts, error) {
	if err := s.ensureQueues(ctx); err != nil {
		return models.Counts{}, err
	}
	counts := models.Counts{
		New:      max(0, s.newCount),
		Learning: max(0, s.lrnCount),
		Review:   max(0, s.revCount),
	}
	if current != nil {
		s.policy.countCurrent(&counts, *current)
	}
	return counts, nil
}

// AnswerButtons is the number of answer buttons offered for c.
func (s *Scheduler) AnswerButtons(c models.Card) int {
	return s.policy.answerButtons(c)
}

// NextInterval is the delay in seconds that answering c with ease would
// give. c is not modified.
func (s *Scheduler) NextInterval(c models.Card, ease models.Ease) int64 {
	return s.policy.nextInterval(c, ease)
}

// SelectDeck makes did the current deck and its subtree the active decks.
func (s *Scheduler) SelectDeck(ctx context.Context, did int64) error {
	if _, ok := s.decks.Get(did); !ok {
		return fmt.Errorf("deck %d: %w", did, repository.ErrNotFound)
	}
	if _, err := s.CheckDay(ctx); err != nil {
		return err
	}
	if err := s.selectDeck(ctx, s.store, did); err != nil {
		return err
	}
	return s.Reset(ctx)
}

func (s *Scheduler) selectDeck(ctx context.Context, st repository.Store, did int64) error {
	s.col.Conf.CurDeck = did
	s.col.Conf.ActiveDecks = s.decks.Active(did)
	s.haveQueues = false
	return s.saveCollection(ctx, st)
}

// ExtendLimits raises today's new and review limits of the current deck,
// its ancestors and its children.
func (s *Scheduler) ExtendLimits(ctx context.Context, newCards, revCards int) error {
	if _, err := s.CheckDay(ctx); err != nil {
		return err
	}
	cur, ok := s.decks.Get(s.col.Conf.CurDeck)
	if !ok {
		return fmt.Errorf("deck %d: %w", s.col.Conf.CurDeck, repository.ErrNotFound)
	}
	targets := append([]*models.Deck{cur}, s.decks.Parents(cur.ID)...)
	targets = append(targets, s.decks.Children(cur.ID)...)
	for _, d := range targets {
		d.NewToday.Count -= newCards
		d.RevToday.Count -= revCards
	}
	if err := s.decks.Save(ctx, s.store.Decks(), targets...); err != nil {
		return err
	}
	s.Checkpoint()
	return s.Reset(ctx)
}

// StartTimebox starts a new study time box.
func (s *Scheduler) StartTimebox() {
	s.timeboxStart = s.now()
	s.timeboxReps = s.reps
}

// TimeboxReached reports whether the time box limit has passed, with the
// limit and the number of cards shown since it started.
func (s *Scheduler) TimeboxReached() (bool, time.Duration, int) {
	limit := s.col.Conf.TimeLim
	if limit <= 0 {
		return false, 0, 0
	}
	if s.now().Sub(s.timeboxStart) > time.Duration(limit)*time.Second {
		return true, time.Duration(limit) * time.Second, s.reps - s.timeboxReps
	}
	return false, 0, 0
}

// CreateFilteredDeck adds a filtered deck without building it.
func (s *Scheduler) CreateFilteredDeck(ctx context.Context, d models.Deck) (int64, error) {
	if _, err := s.CheckDay(ctx); err != nil {
		return 0, err
	}
	d.Dynamic = true
	if len(d.Terms) == 0 {
		d.Terms = models.NewFilteredDeck(d.Name).Terms
	}
	if err := d.ValidateTerms(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	created, err := s.decks.Add(ctx, s.store.Decks(), d)
	if errors.Is(err, decks.ErrInvalidDeck) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if err != nil {
		return 0, err
	}
	created.RollOver(s.today)
	return created.ID, nil
}
