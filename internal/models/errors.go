package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a missing profile entity (kid, character, story).
	ErrNotFound = errors.New("not found")
	// ErrAccountNotFound marks a missing user account.
	ErrAccountNotFound = errors.New("account not found")

	// ErrNarrativeGenerationFailed wraps a story text generation that
	// exhausted its retries.
	ErrNarrativeGenerationFailed = errors.New("narrative generation failed")
	// ErrIllustrationFailed marks a single illustration slot that could
	// not be produced.
	ErrIllustrationFailed = errors.New("illustration generation failed")
	// ErrConversationStateInvalid marks a stored assistant/thread pair
	// that cannot be used.
	ErrConversationStateInvalid = errors.New("conversation state invalid")
	// ErrProviderTimeout marks an assistant run that did not finish
	// within the polling ceiling.
	ErrProviderTimeout = errors.New("provider timed out")
	// ErrRunFailed marks an assistant run that ended in a non-completed
	// terminal state.
	ErrRunFailed = errors.New("assistant run failed")

	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenMalformed = errors.New("token is malformed")
)

// QuotaExceededError is returned by the quota gate when an owner has
// no story allowance left.
type QuotaExceededError struct {
	Used   int
	Limit  int
	Reason string
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("story quota exceeded (%d/%d): %s", e.Used, e.Limit, e.Reason)
}

// IsQuotaExceeded reports whether err is a quota rejection.
func IsQuotaExceeded(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}
