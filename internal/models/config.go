package models

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

// NewSpread controls how new cards are mixed with reviews.
type NewSpread int

const (
	NewCardsDistribute NewSpread = 0
	NewCardsLast       NewSpread = 1
	NewCardsFirst      NewSpread = 2
)

// LeechAction is what happens to a card that becomes a leech.
type LeechAction int

const (
	LeechSuspend LeechAction = 0
	LeechTagOnly LeechAction = 1
)

// StartingFactor is the ease factor given to cards that lost theirs.
const StartingFactor = 2500

// DefaultConfigID is the id of the default options group.
const DefaultConfigID int64 = 1

type NewConfig struct {
	Delays        []float64 `json:"delays" validate:"dive,gt=0"`
	Ints          []int     `json:"ints" validate:"min=2,dive,gte=1"`
	InitialFactor int       `json:"initial_factor" validate:"gte=1300,lte=10000"`
	PerDay        int       `json:"per_day" validate:"gte=0,lte=99999"`
	Bury          bool      `json:"bury"`
}

type LapseConfig struct {
	Delays      []float64   `json:"delays" validate:"dive,gt=0"`
	Mult        float64     `json:"mult" validate:"gte=0,lte=1"`
	MinInt      int         `json:"min_int" validate:"gte=1"`
	LeechFails  int         `json:"leech_fails" validate:"gte=0"`
	LeechAction LeechAction `json:"leech_action" validate:"oneof=0 1"`
}

type ReviewConfig struct {
	PerDay     int     `json:"per_day" validate:"gte=0,lte=99999"`
	Ease4      float64 `json:"ease4" validate:"gte=1,lte=5"`
	IvlFct     float64 `json:"ivl_fct" validate:"gt=0"`
	MaxIvl     int     `json:"max_ivl" validate:"gte=1"`
	Bury       bool    `json:"bury"`
	HardFactor float64 `json:"hard_factor" validate:"gt=0,lte=3"`
}

// DeckConfig is an options group shared by regular decks.
type DeckConfig struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name" validate:"required"`
	New      NewConfig    `json:"new"`
	Lapse    LapseConfig  `json:"lapse"`
	Rev      ReviewConfig `json:"rev"`
	MaxTaken int          `json:"max_taken" validate:"gte=1"`
	Mod      int64        `json:"mod"`
	USN      int          `json:"usn"`
}

// DefaultDeckConfig returns the settings of a freshly created options group.
func DefaultDeckConfig() DeckConfig {
	return DeckConfig{
		ID:   DefaultConfigID,
		Name: "Default",
		New: NewConfig{
			Delays:        []float64{1, 10},
			Ints:          []int{1, 4, 7},
			InitialFactor: StartingFactor,
			PerDay:        20,
		},
		Lapse: LapseConfig{
			Delays:      []float64{10},
			Mult:        0,
			MinInt:      1,
			LeechFails:  8,
			LeechAction: LeechSuspend,
		},
		Rev: ReviewConfig{
			PerDay:     200,
			Ease4:      1.3,
			IvlFct:     1,
			MaxIvl:     36500,
			HardFactor: 1.2,
		},
		MaxTaken: 60,
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the options group for out-of-range values.
func (c DeckConfig) Validate() error {
	return structValidator().Struct(c)
}

// ValidateTerms checks the search terms of a filtered deck.
func (d Deck) ValidateTerms() error {
	for _, t := range d.Terms {
		if err := structValidator().Struct(t); err != nil {
			return err
		}
	}
	return nil
}

// CollectionConf holds collection-wide scheduling settings.
type CollectionConf struct {
	SchedVer      int       `json:"sched_ver"`
	NewSpread     NewSpread `json:"new_spread"`
	CollapseTime  int       `json:"collapse_time"`
	TimeLim       int       `json:"time_lim"`
	NextPos       int64     `json:"next_pos"`
	LastUnburied  int       `json:"last_unburied"`
	Rollover      int       `json:"rollover"`
	DayLearnFirst bool      `json:"day_learn_first"`
	CurDeck       int64     `json:"cur_deck"`
	ActiveDecks   []int64   `json:"active_decks"`
}

// DefaultCollectionConf returns the settings of a new collection.
func DefaultCollectionConf() CollectionConf {
	return CollectionConf{
		SchedVer:     2,
		NewSpread:    NewCardsDistribute,
		CollapseTime: 1200,
		NextPos:      1,
		Rollover:     4,
		CurDeck:      DefaultDeckID,
		ActiveDecks:  []int64{DefaultDeckID},
	}
}

// Collection is the singleton collection row.
type Collection struct {
	Crt    int64          `json:"crt"`
	Mod    int64          `json:"mod"`
	Scm    int64          `json:"scm"`
	USN    int            `json:"usn"`
	Server bool           `json:"server"`
	Conf   CollectionConf `json:"conf"`
}

// CurrentUSN is the usn stamped on modified rows.
func (c Collection) CurrentUSN() int {
	if c.Server {
		return c.USN
	}
	return -1
}
