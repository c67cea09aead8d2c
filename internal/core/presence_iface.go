package core

import (
	"context"
	"time"

	"github.com/dkeye/convo/internal/domain"
)

// PresenceRecord is one identity as last seen by the presence store.
type PresenceRecord struct {
	Name     domain.Identity `json:"name"`
	Room     domain.RoomID   `json:"room,omitempty"`
	Online   bool            `json:"online"`
	LastSeen time.Time       `json:"last_seen"`
}

// PresenceStore is the display-only presence directory. Session state
// never depends on it.
type PresenceStore interface {
	MarkOnline(ctx context.Context, name domain.Identity, room domain.RoomID, at time.Time) error
	MarkOffline(ctx context.Context, name domain.Identity, at time.Time) error
	List(ctx context.Context) ([]PresenceRecord, error)
	// Subscribe streams changes until ctx is done.
	Subscribe(ctx context.Context) <-chan PresenceRecord
	Close() error
}
