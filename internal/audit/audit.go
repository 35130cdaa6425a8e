// Package audit records security-relevant gateway decisions: rejected
// credentials, rate limit hits, content and file rejections. Recording is
// best effort and never blocks or fails a request.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event classes.
const (
	ClassSecurity = "security"
	ClassClient   = "client"
	ClassServer   = "server"
)

// Event is a single recorded gateway decision.
type Event struct {
	ID        uuid.UUID
	Identity  string
	Endpoint  string
	Class     string
	Code      string
	Reason    string
	CreatedAt time.Time
}

// Recorder persists audit events.
type Recorder interface {
	Record(ctx context.Context, e Event) error
}

// NopRecorder discards all events. Used when no database is configured.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Event) error { return nil }

// NewEvent fills in the generated fields.
func NewEvent(identity, endpoint, class, code, reason string) Event {
	return Event{
		ID:        uuid.New(),
		Identity:  identity,
		Endpoint:  endpoint,
		Class:     class,
		Code:      code,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
}

var _ Recorder = NopRecorder{}
