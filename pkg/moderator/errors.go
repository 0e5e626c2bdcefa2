package moderator

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrDisabled is returned by the provider call path when moderation is
// administratively switched off; Moderate maps it to the fixed approve
// result instead of surfacing it.
var ErrDisabled = errors.New("moderation is disabled")

// ProviderError wraps any call-level failure (network, auth, timeout,
// provider-side error). It is never one of the three decisions: callers
// must treat the content as unmoderated.
type ProviderError struct {
	ContentID uuid.UUID
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("moderation provider call failed for content %s: %v", e.ContentID, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ParseError reports a non-JSON or schema-invalid provider response.
// The raw response is logged server-side only and deliberately not
// carried on the error.
type ParseError struct {
	ContentID uuid.UUID
	Err       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse moderation response for content %s: %v", e.ContentID, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
