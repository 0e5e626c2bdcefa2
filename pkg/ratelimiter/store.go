package ratelimiter

import (
	"context"
	"time"
)

// CounterStore is an atomic sliding-window counter keyed by an opaque
// string. Hit must perform check-and-increment as one operation: two
// concurrent callers racing for the last slot under the limit must not
// both win.
type CounterStore interface {
	// Hit counts events inside the window and, when under the limit,
	// records a new one. It reports whether the event was admitted and
	// how many slots remain after it.
	Hit(ctx context.Context, key string, window time.Duration, limit int) (allowed bool, remaining int, err error)

	// Count returns the number of events inside the window without
	// consuming a slot.
	Count(ctx context.Context, key string, window time.Duration) (int64, error)
}
