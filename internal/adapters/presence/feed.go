// Package presence holds the presence-store collaborator: a display
// directory of who is online and when each identity was last seen.
package presence

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/convo/internal/core"
)

// feed fans record changes out to subscribers. Slow subscribers miss
// records rather than stall writers.
type feed struct {
	mu   sync.Mutex
	subs map[chan core.PresenceRecord]struct{}
}

func newFeed() *feed {
	return &feed{subs: make(map[chan core.PresenceRecord]struct{})}
}

func (f *feed) subscribe(ctx context.Context) <-chan core.PresenceRecord {
	ch := make(chan core.PresenceRecord, 16)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	go func() {
		<-ctx.Done()
		f.mu.Lock()
		if _, ok := f.subs[ch]; ok {
			delete(f.subs, ch)
			close(ch)
		}
		f.mu.Unlock()
	}()
	return ch
}

func (f *feed) publish(rec core.PresenceRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- rec:
		default:
		}
	}
}

func (f *feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		delete(f.subs, ch)
		close(ch)
	}
}

// Open picks a store by driver name: "memory" or "sqlite".
func Open(driver, dsn string) (core.PresenceStore, error) {
	switch driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return OpenSQLite(dsn)
	default:
		return nil, fmt.Errorf("unknown presence driver %q", driver)
	}
}
