package models

import "strings"

// DeckSeparator joins the components of a nested deck name.
const DeckSeparator = "::"

// DefaultDeckID is the id of the deck every collection starts with.
const DefaultDeckID int64 = 1

// DayCount is a per-day counter tagged with the day it belongs to.
type DayCount struct {
	Day   int `json:"day"`
	Count int `json:"count"`
}

// FilterOrder selects how a filtered deck sorts matching cards.
type FilterOrder int

const (
	FilterOrderOldestSeen FilterOrder = iota
	FilterOrderRandom
	FilterOrderIntervalAsc
	FilterOrderIntervalDesc
	FilterOrderLapses
	FilterOrderAdded
	FilterOrderDue
	FilterOrderAddedDesc
	FilterOrderDuePriority
)

// FilterTerm is one search of a filtered deck.
type FilterTerm struct {
	Search string      `json:"search"`
	Limit  int         `json:"limit" validate:"gte=1,lte=99999"`
	Order  FilterOrder `json:"order" validate:"gte=0,lte=8"`
}

// Deck is a regular or filtered deck with its daily counters.
type Deck struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	ConfID  int64  `json:"conf_id"`
	Dynamic bool   `json:"dynamic"`
	Mod     int64  `json:"mod"`
	USN     int    `json:"usn"`

	NewToday  DayCount `json:"new_today"`
	RevToday  DayCount `json:"rev_today"`
	LrnToday  DayCount `json:"lrn_today"`
	TimeToday DayCount `json:"time_today"`

	// Filtered decks only.
	Terms        []FilterTerm `json:"terms,omitempty"`
	Resched      bool         `json:"resched"`
	PreviewDelay int          `json:"preview_delay"`
	Delays       []float64    `json:"delays,omitempty"`
}

// CounterKind names one of the per-day deck counters.
type CounterKind int

const (
	CounterNew CounterKind = iota
	CounterLearning
	CounterReview
	CounterTime
)

// Counter returns the day counter for kind.
func (d *Deck) Counter(kind CounterKind) *DayCount {
	switch kind {
	case CounterNew:
		return &d.NewToday
	case CounterLearning:
		return &d.LrnToday
	case CounterReview:
		return &d.RevToday
	default:
		return &d.TimeToday
	}
}

// RollOver zeroes every counter that belongs to a day other than today.
// It reports whether anything changed.
func (d *Deck) RollOver(today int) bool {
	changed := false
	for _, kind := range []CounterKind{CounterNew, CounterLearning, CounterReview, CounterTime} {
		c := d.Counter(kind)
		if c.Day != today {
			*c = DayCount{Day: today}
			changed = true
		}
	}
	return changed
}

// Path splits the deck name into its components.
func (d Deck) Path() []string {
	return strings.Split(d.Name, DeckSeparator)
}

// ParentNames returns the full names of every ancestor, root first.
func (d Deck) ParentNames() []string {
	parts := d.Path()
	names := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		names = append(names, strings.Join(parts[:i], DeckSeparator))
	}
	return names
}

// NewFilteredDeck returns a filtered deck with the usual defaults.
func NewFilteredDeck(name string) Deck {
	return Deck{
		Name:         name,
		Dynamic:      true,
		Resched:      true,
		PreviewDelay: 10,
		Terms:        []FilterTerm{{Search: "", Limit: 100, Order: FilterOrderOldestSeen}},
	}
}

// DeckDue is a deck row of the study overview.
type DeckDue struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	New      int    `json:"new"`
	Learning int    `json:"learning"`
	Review   int    `json:"review"`
}
