package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/vytor/cardsched/internal/logger"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository"
)

// answerTx carries one answer through the version state machine and the
// writes that follow it.
type answerTx struct {
	ctx  context.Context
	st   repository.Store
	card *models.Card
	ease models.Ease
	now  time.Time

	// deck is where the card was studied; counters are charged to it.
	deck *models.Deck
	// entry is nil when the answer writes no log row.
	entry *models.ReviewLog

	note      *models.Note
	wasLeech  bool
	noteDirty bool
	leech     bool

	touched  map[int64]*models.Deck
	counted  []models.CounterKind // daily counters bumped, for undo
	colDirty bool
}

func (a *answerTx) nowUnix() int64 { return a.now.Unix() }

// AnswerCard applies ease to card, persists the result and copies the new
// state back into card. Either everything is stored or nothing is.
func (s *Scheduler) AnswerCard(ctx context.Context, card *models.Card, ease models.Ease) error {
	log := logger.FromContext(ctx).WithPrefix("sched")
	log.Debug("answering card: id=%d, ease=%d, queue=%s", card.ID, ease, card.Queue)

	if _, err := s.CheckDay(ctx); err != nil {
		return err
	}
	if card.Queue < models.QueueNew || card.Queue > models.QueuePreview {
		return fmt.Errorf("%w: card %d is in queue %s", ErrInvalidState, card.ID, card.Queue)
	}
	if buttons := s.policy.answerButtons(*card); ease < models.EaseAgain || int(ease) > buttons {
		return fmt.Errorf("%w: %d not in 1..%d", ErrInvalidEase, ease, buttons)
	}

	before := *card
	c := *card
	a := &answerTx{
		ctx:     ctx,
		card:    &c,
		ease:    ease,
		now:     s.now(),
		touched: make(map[int64]*models.Deck),
	}
	if d, ok := s.decks.Get(c.DeckID); ok {
		a.deck = d
	}

	err := s.store.InTx(ctx, func(st repository.Store) error {
		a.st = st
		return s.answer(a)
	})
	if err != nil {
		log.Error("failed to answer card %d: %v", card.ID, err)
		s.haveQueues = false
		if rerr := s.load(ctx); rerr != nil {
			log.Error("failed to reload after failed answer: %v", rerr)
		}
		return err
	}

	entry := undoEntry{card: before, wasLeech: a.wasLeech, logged: a.entry != nil, counted: a.counted}
	if a.deck != nil {
		entry.deckID = a.deck.ID
	}
	s.undo = append(s.undo, entry)
	*card = c
	if a.leech && s.hooks.Leech != nil {
		s.hooks.Leech(ctx, c)
	}
	return nil
}

func (s *Scheduler) answer(a *answerTx) error {
	ctx, st, c := a.ctx, a.st, a.card

	note, err := st.Notes().Get(ctx, c.NoteID)
	if err != nil {
		return fmt.Errorf("load note %d: %w", c.NoteID, err)
	}
	a.note = note
	a.wasLeech = note.HasTag(models.LeechTag)

	if err := s.burySiblings(ctx, st, *c); err != nil {
		return err
	}
	if err := s.policy.answer(ctx, a); err != nil {
		return err
	}

	taken := c.TimeTaken(a.now, s.cardConf(*c).MaxTaken)
	s.updateStats(a, models.CounterTime, taken)

	c.Mod = a.nowUnix()
	c.USN = s.usn()
	if err := c.CheckInvariants(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if err := st.Cards().Update(ctx, *c); err != nil {
		return fmt.Errorf("save card: %w", err)
	}

	if a.entry != nil {
		a.entry.ID = s.ids.next(a.now)
		a.entry.CardID = c.ID
		a.entry.USN = s.usn()
		a.entry.Ease = a.ease
		a.entry.Factor = c.Factor
		a.entry.TimeTaken = taken
		if err := st.Revlog().Insert(ctx, *a.entry); err != nil {
			return fmt.Errorf("write review log: %w", err)
		}
	}

	if a.noteDirty {
		a.note.Mod = a.nowUnix()
		a.note.USN = s.usn()
		if err := st.Notes().UpdateTags(ctx, *a.note); err != nil {
			return fmt.Errorf("save note tags: %w", err)
		}
	}

	touched := make([]*models.Deck, 0, len(a.touched))
	for _, d := range a.touched {
		touched = append(touched, d)
	}
	if err := s.decks.Save(ctx, st.Decks(), touched...); err != nil {
		return err
	}
	if a.colDirty {
		return s.saveCollection(ctx, st)
	}
	return nil
}

// updateStats adds delta to a counter of the studied deck and its parents.
func (s *Scheduler) updateStats(a *answerTx, kind models.CounterKind, delta int) {
	if a.deck == nil {
		return
	}
	if kind != models.CounterTime {
		a.counted = append(a.counted, kind)
	}
	for _, d := range append([]*models.Deck{a.deck}, s.decks.Parents(a.deck.ID)...) {
		d.RollOver(s.today)
		d.Counter(kind).Count += delta
		d.Mod = a.nowUnix()
		d.USN = s.usn()
		a.touched[d.ID] = d
	}
}

// nextPos takes the next new-card position from the collection.
func (s *Scheduler) nextPos(a *answerTx) int64 {
	pos := s.col.Conf.NextPos
	s.col.Conf.NextPos++
	a.colDirty = true
	return pos
}

func (a *answerTx) log(typ models.RevlogType, ivl, lastIvl int) {
	a.entry = &models.ReviewLog{Type: typ, Interval: ivl, LastInterval: lastIvl}
}

// burySiblings takes the other new and due cards of the note out of the
// in-memory queues and buries them when the options ask for it.
func (s *Scheduler) burySiblings(ctx context.Context, st repository.Store, c models.Card) error {
	siblings, err := st.Cards().List(ctx, repository.CardFilter{NoteID: c.NoteID, ExcludeID: c.ID})
	if err != nil {
		return fmt.Errorf("load siblings: %w", err)
	}
	conf := s.cardConf(c)
	var bury []models.Card
	for _, sib := range siblings {
		switch {
		case sib.Queue == models.QueueNew:
			s.dropFromQueues(sib.ID)
			if conf.New.Bury {
				bury = append(bury, sib)
			}
		case sib.Queue == models.QueueReview && sib.Due <= int64(s.today):
			s.dropFromQueues(sib.ID)
			if conf.Rev.Bury {
				bury = append(bury, sib)
			}
		}
	}
	if len(bury) == 0 {
		return nil
	}
	for i := range bury {
		bury[i].Queue = s.policy.buryQueue(false)
		bury[i].Mod = s.nowUnix()
		bury[i].USN = s.usn()
	}
	if err := st.Cards().UpdateBatch(ctx, bury); err != nil {
		return fmt.Errorf("bury siblings: %w", err)
	}
	logger.FromContext(ctx).WithPrefix("sched").Debug("buried %d siblings of card %d", len(bury), c.ID)
	return nil
}
