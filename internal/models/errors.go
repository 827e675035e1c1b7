package models

import (
	"errors"
	"fmt"
)

// Recoverable error taxonomy shared across the engine. All of these are
// surfaced to the caller with context; none should crash the process.
var (
	// ErrClassificationUnavailable marks a transient classifier failure.
	// The engine retries with backoff and, on exhaustion, proceeds with a
	// nil intent rather than blocking question creation.
	ErrClassificationUnavailable = errors.New("classification unavailable")

	// ErrUnknownPillar marks an upstream payload naming a pillar outside
	// the taxonomy. Rejected at the boundary, never silently coerced.
	ErrUnknownPillar = errors.New("unknown pillar")

	// ErrInvalidTransition marks a lifecycle move that is not legal from
	// the question's current status. State is left unchanged.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrIncompleteAnswers marks a clarification finalize attempted before
	// every clarifying slot has a non-empty answer.
	ErrIncompleteAnswers = errors.New("incomplete answers")

	// ErrNotFound marks an unknown question or user id.
	ErrNotFound = errors.New("not found")
)

func NewUnknownPillarError(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownPillar, name)
}

func NewInvalidTransitionError(id string, from Status, op string) error {
	return fmt.Errorf("%w: cannot %s question %s in status %q", ErrInvalidTransition, op, id, from)
}
