// Package moderation holds clients for external safety classifiers. Clients
// only report what the classifier said; deciding what to do with an answer or
// with a failure belongs to the caller.
package moderation

import (
	"context"
	"errors"
)

// Role is the conversational side of the text being classified.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Classification struct {
	Safe       bool     `json:"safe"`
	Categories []string `json:"categories"`
}

type Classifier interface {
	Classify(ctx context.Context, role Role, text string) (Classification, error)
}

// ErrClassifierUnavailable wraps every failure to obtain a verdict.
var ErrClassifierUnavailable = errors.New("moderation classifier unavailable")

type unavailableError struct {
	cause error
}

func (e *unavailableError) Error() string {
	return ErrClassifierUnavailable.Error() + ": " + e.cause.Error()
}

func (e *unavailableError) Unwrap() []error { return []error{ErrClassifierUnavailable, e.cause} }

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return &unavailableError{cause: err}
}
