package bus

import (
	"time"

	"github.com/google/uuid"
)

// Event kinds. Subscribers filter by prefix, e.g. "sync." or "warning.".
const (
	KindStatusChanged = "session.status_changed"

	KindSyncStarted   = "sync.started"
	KindSyncCompleted = "sync.completed"
	KindSyncFailed    = "sync.failed"
	KindSyncRepaired  = "sync.repaired"

	KindMessageStored  = "message.stored"
	KindMessageUpdated = "message.updated"

	KindConversationAdded   = "conversation.added"
	KindConversationUpdated = "conversation.updated"

	KindPresenceChanged = "presence.changed"

	KindNotify = "notify.message"

	KindWarning = "warning."
)

// Event represents a domain event published on the bus.
type Event struct {
	ID        string
	Kind      string
	Timestamp time.Time
	Payload   any
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(kind string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// Warning is a non-fatal, user-facing problem. Its event kind is
// "warning." followed by Code.
type Warning struct {
	Code    string
	Message string
	Pubkey  string
}
