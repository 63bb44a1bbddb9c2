package quiz

import "errors"

// Engine error taxonomy. Handlers translate these to HTTP statuses with
// errors.Is; stores wrap them with context via fmt.Errorf and %w.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("attempt is not in the required state")
	ErrTimeExceeded = errors.New("time limit exceeded")
	ErrAttemptLimit = errors.New("attempt limit exceeded")
	ErrEmptyQuiz    = errors.New("quiz has no questions")
	ErrOutOfRange   = errors.New("points out of range")
)
