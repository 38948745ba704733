package store

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrValidation marks input rejected before reaching the gateway.
var ErrValidation = errors.New("validation failed")

// IntentError is returned by every intent. UserMessage is the toast text shown
// to staff; Err keeps the cause for errors.Is.
type IntentError struct {
	Intent      string
	UserMessage string
	Err         error
}

func (e *IntentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Intent, e.Err)
}

func (e *IntentError) Unwrap() error { return e.Err }

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// fail logs and wraps err. Local state is never touched on this path.
func (s *Store) fail(intent, userMessage string, err error) error {
	s.log.WithFields(logrus.Fields{"intent": intent, "actor_id": s.actorID}).WithError(err).Warn("intent failed")
	return &IntentError{Intent: intent, UserMessage: userMessage, Err: err}
}
