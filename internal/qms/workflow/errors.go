package workflow

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure out of this package wraps exactly one of these, so
// callers branch with errors.Is and map to transport-level responses.
var (
	// ErrInvalidTransition: the action has no transition rule from the NC's
	// current status/step, including any action against a terminal state.
	ErrInvalidTransition = errors.New("invalid workflow transition")

	// ErrUnauthorized: the actor's role set or ownership does not satisfy the
	// acting-role requirement for the current state.
	ErrUnauthorized = errors.New("actor not authorized for this step")

	// ErrValidation: required transition inputs are missing or malformed. The
	// check runs before any state mutation is computed.
	ErrValidation = errors.New("transition input invalid")
)

func invalidTransitionf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}

func unauthorizedf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, fmt.Sprintf(format, args...))
}

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
