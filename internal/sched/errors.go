package sched

import "errors"

var (
	// ErrInvalidState is returned when a card is in a queue that cannot be answered
	// or an operation would leave a card inconsistent.
	ErrInvalidState = errors.New("invalid card state")
	// ErrInvalidEase is returned for an answer button the card does not offer.
	ErrInvalidEase = errors.New("invalid ease")
	// ErrUnsupportedVersion is returned for scheduler versions other than 1 and 2.
	ErrUnsupportedVersion = errors.New("unsupported scheduler version")
	// ErrInvalidArgument covers malformed filters, scopes, flags and ranges.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNothingToUndo is returned by Undo when no review is recorded.
	ErrNothingToUndo = errors.New("nothing to undo")
)
