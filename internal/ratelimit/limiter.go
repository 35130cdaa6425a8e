// Package ratelimit bounds request frequency per authenticated identity.
//
// Semantics are fixed-window: a window of W seconds admits at most N units
// per identity, and the counter resets when the window elapses. Fixed window
// was chosen over sliding window because it is deterministic to test and the
// per-identity burst it permits at window boundaries is acceptable for this
// gateway. State does not survive process restart.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed bool
	// Remaining is the number of units left in the current window.
	Remaining int
	// RetryAfter is how long until the window resets. Only meaningful on
	// rejection, always positive there.
	RetryAfter time.Duration
}

// Limiter admits or rejects requests per identity. Admit must be atomic per
// identity: cost units are consumed entirely or not at all, so a
// comparison-class request (cost 2) can never half-consume quota.
// Implementations must be safe for concurrent use.
type Limiter interface {
	Admit(ctx context.Context, identity string, cost int) (Decision, error)
}
