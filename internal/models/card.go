package models

import (
	"fmt"
	"time"
)

// CardType is the long-lived learning stage of a card.
type CardType int

const (
	CardTypeNew        CardType = 0
	CardTypeLearning   CardType = 1
	CardTypeReview     CardType = 2
	CardTypeRelearning CardType = 3
)

func (t CardType) String() string {
	switch t {
	case CardTypeNew:
		return "new"
	case CardTypeLearning:
		return "learning"
	case CardTypeReview:
		return "review"
	case CardTypeRelearning:
		return "relearning"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Valid reports whether t is a known card type.
func (t CardType) Valid() bool {
	return t >= CardTypeNew && t <= CardTypeRelearning
}

// Queue is the queue a card is currently studied from.
type Queue int

const (
	QueueUserBuried  Queue = -3
	QueueSchedBuried Queue = -2
	QueueSuspended   Queue = -1
	QueueNew         Queue = 0
	QueueLearning    Queue = 1
	QueueReview      Queue = 2
	QueueDayLearning Queue = 3
	QueuePreview     Queue = 4
)

func (q Queue) String() string {
	switch q {
	case QueueUserBuried:
		return "user_buried"
	case QueueSchedBuried:
		return "sched_buried"
	case QueueSuspended:
		return "suspended"
	case QueueNew:
		return "new"
	case QueueLearning:
		return "learning"
	case QueueReview:
		return "review"
	case QueueDayLearning:
		return "day_learning"
	case QueuePreview:
		return "preview"
	default:
		return fmt.Sprintf("queue(%d)", int(q))
	}
}

// Valid reports whether q is a known queue.
func (q Queue) Valid() bool {
	return q >= QueueUserBuried && q <= QueuePreview
}

// IsBuried reports whether q is one of the buried queues.
func (q Queue) IsBuried() bool {
	return q == QueueSchedBuried || q == QueueUserBuried
}

// Ease is the answer button pressed by the reviewer.
type Ease int

const (
	EaseAgain Ease = 1
	EaseHard  Ease = 2
	EaseGood  Ease = 3
	EaseEasy  Ease = 4
)

// MaxDue is the exclusive upper bound for a card's due value.
const MaxDue int64 = 1 << 32

// Card is one reviewable item of a note.
type Card struct {
	ID             int64    `json:"id"`
	NoteID         int64    `json:"note_id"`
	DeckID         int64    `json:"deck_id"`
	Ord            int      `json:"ord"`
	Mod            int64    `json:"mod"`
	USN            int      `json:"usn"`
	Type           CardType `json:"type"`
	Queue          Queue    `json:"queue"`
	Due            int64    `json:"due"`
	Interval       int      `json:"interval"`
	Factor         int      `json:"factor"`
	Reps           int      `json:"reps"`
	Lapses         int      `json:"lapses"`
	Left           int      `json:"left"`
	OriginalDue    int64    `json:"original_due"`
	OriginalDeckID int64    `json:"original_deck_id"`
	Flags          int      `json:"flags"`
	Data           string   `json:"data,omitempty"`

	TimerStarted time.Time `json:"-"`
}

// StepsLeft is the number of learning steps left overall.
func (c Card) StepsLeft() int { return c.Left % 1000 }

// StepsToday is the number of learning steps that can be completed today.
func (c Card) StepsToday() int { return c.Left / 1000 }

// PackLeft encodes overall and same-day remaining steps into a left value.
func PackLeft(total, today int) int { return total + today*1000 }

// IsFiltered reports whether the card is currently hosted by a filtered deck.
func (c Card) IsFiltered() bool { return c.OriginalDeckID != 0 }

// UserFlag returns the color flag stored in the low bits of Flags.
func (c Card) UserFlag() int { return c.Flags & 0b111 }

// SetUserFlag replaces the color flag, keeping the other bits.
func (c *Card) SetUserFlag(flag int) {
	c.Flags = (c.Flags &^ 0b111) | (flag & 0b111)
}

// StartTimer marks the moment the card was shown.
func (c *Card) StartTimer(now time.Time) { c.TimerStarted = now }

// TimeTaken returns the answer time in milliseconds, capped at maxTaken seconds.
func (c Card) TimeTaken(now time.Time, maxTaken int) int {
	if c.TimerStarted.IsZero() {
		return 0
	}
	taken := int(now.Sub(c.TimerStarted).Milliseconds())
	if taken < 0 {
		taken = 0
	}
	if limit := maxTaken * 1000; maxTaken > 0 && taken > limit {
		taken = limit
	}
	return taken
}

// ClearFiltered moves the card back to its home deck and drops the shadow fields.
func (c *Card) ClearFiltered() {
	if c.OriginalDeckID != 0 {
		c.DeckID = c.OriginalDeckID
	}
	c.OriginalDeckID = 0
	c.OriginalDue = 0
}

// CheckInvariants validates the due bound and the filtered shadow pairing.
func (c Card) CheckInvariants() error {
	if c.Due >= MaxDue {
		return fmt.Errorf("card %d: due %d out of range", c.ID, c.Due)
	}
	if !c.IsFiltered() && c.Due < 0 {
		return fmt.Errorf("card %d: negative due %d outside a filtered deck", c.ID, c.Due)
	}
	// A new card at position 0 keeps odue 0 inside a filtered deck, so only
	// the reverse direction is checked.
	if c.OriginalDue != 0 && c.OriginalDeckID == 0 {
		return fmt.Errorf("card %d: original due %d without an original deck", c.ID, c.OriginalDue)
	}
	if !c.Type.Valid() || !c.Queue.Valid() {
		return fmt.Errorf("card %d: invalid type %d or queue %d", c.ID, c.Type, c.Queue)
	}
	return nil
}

// DueEntry is a (due, id) pair used to build the learning heap.
type DueEntry struct {
	Due int64
	ID  int64
}

// Counts holds the remaining cards per study class.
type Counts struct {
	New      int `json:"new"`
	Learning int `json:"learning"`
	Review   int `json:"review"`
}

// BatchResult reports what a bulk card operation changed and what it skipped.
type BatchResult struct {
	Changed []int64          `json:"changed"`
	Skipped map[int64]string `json:"skipped,omitempty"`
}

// Skip records an id that was not changed.
func (r *BatchResult) Skip(id int64, reason string) {
	if r.Skipped == nil {
		r.Skipped = make(map[int64]string)
	}
	r.Skipped[id] = reason
}
