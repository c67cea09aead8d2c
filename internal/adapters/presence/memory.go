package presence

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/convo/internal/core"
	"github.com/dkeye/convo/internal/domain"
)

type MemoryStore struct {
	mu      sync.RWMutex
	records map[domain.Identity]core.PresenceRecord
	feed    *feed
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[domain.Identity]core.PresenceRecord), feed: newFeed()}
}

func (s *MemoryStore) MarkOnline(_ context.Context, name domain.Identity, room domain.RoomID, at time.Time) error {
	rec := core.PresenceRecord{Name: name, Room: room, Online: true, LastSeen: at}
	s.mu.Lock()
	s.records[name] = rec
	s.mu.Unlock()
	s.feed.publish(rec)
	return nil
}

func (s *MemoryStore) MarkOffline(_ context.Context, name domain.Identity, at time.Time) error {
	s.mu.Lock()
	rec := s.records[name]
	rec.Name, rec.Online, rec.LastSeen = name, false, at
	s.records[name] = rec
	s.mu.Unlock()
	s.feed.publish(rec)
	return nil
}

func (s *MemoryStore) List(context.Context) ([]core.PresenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.PresenceRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b core.PresenceRecord) int { return strings.Compare(string(a.Name), string(b.Name)) })
	return out, nil
}

func (s *MemoryStore) Subscribe(ctx context.Context) <-chan core.PresenceRecord {
	return s.feed.subscribe(ctx)
}

func (s *MemoryStore) Close() error {
	s.feed.close()
	return nil
}
