package services

import (
	stderrors "errors"
	"net/http"

	"github.com/vytor/cardsched/internal/decks"
	"github.com/vytor/cardsched/internal/errors"
	"github.com/vytor/cardsched/internal/repository"
	"github.com/vytor/cardsched/internal/sched"
	"github.com/vytor/cardsched/internal/search"
)

// mapError converts scheduler and storage errors into AppErrors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := errors.As(err); ok {
		return appErr
	}

	var syntax *search.SyntaxError
	switch {
	case errors.Is(err, sched.ErrInvalidState):
		return errors.NewInvalidStateError(err)
	case errors.Is(err, sched.ErrUnsupportedVersion):
		return &errors.AppError{Code: errors.ErrCodeUnsupportedVersion, Message: err.Error(), Status: http.StatusUnprocessableEntity, Err: err}
	case errors.Is(err, sched.ErrNothingToUndo):
		return errors.NewConflictError("nothing to undo")
	case stderrors.As(err, &syntax):
		return errors.NewValidationError("search", syntax.Error())
	case errors.Is(err, sched.ErrInvalidEase):
		return wrapValidation("ease", err)
	case errors.Is(err, sched.ErrInvalidArgument), errors.Is(err, decks.ErrInvalidDeck):
		return wrapValidation("request", err)
	case errors.Is(err, repository.ErrNotFound):
		return &errors.AppError{Code: errors.ErrCodeNotFound, Message: err.Error(), Status: http.StatusNotFound, Err: err}
	default:
		return errors.NewInternalError(err)
	}
}

func wrapValidation(field string, err error) *errors.AppError {
	appErr := errors.NewValidationError(field, err.Error())
	appErr.Err = err
	return appErr
}
