package models

// RevlogType classifies a review log entry.
type RevlogType int

const (
	RevlogLearn   RevlogType = 0
	RevlogReview  RevlogType = 1
	RevlogRelearn RevlogType = 2
	RevlogEarly   RevlogType = 3
)

func (t RevlogType) String() string {
	switch t {
	case RevlogLearn:
		return "learn"
	case RevlogReview:
		return "review"
	case RevlogRelearn:
		return "relearn"
	case RevlogEarly:
		return "early"
	default:
		return "unknown"
	}
}

// ReviewLog is one append-only answer record.
// Interval and LastInterval are days when positive and seconds when negative.
type ReviewLog struct {
	ID           int64      `json:"id"`
	CardID       int64      `json:"card_id"`
	USN          int        `json:"usn"`
	Ease         Ease       `json:"ease"`
	Interval     int        `json:"interval"`
	LastInterval int        `json:"last_interval"`
	Factor       int        `json:"factor"`
	TimeTaken    int        `json:"time_taken"`
	Type         RevlogType `json:"type"`
}
