package app

import (
	"encoding/json"
	"sync"

	"github.com/dkeye/convo/internal/core"
)

type fakeConn struct {
	id     core.ConnID
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: core.ConnID(id)} }

func (c *fakeConn) ID() core.ConnID { return c.id }

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.full {
		return errFull
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		var env struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(f, &env)
		out = append(out, env.Type)
	}
	return out
}

type fullErr struct{}

func (fullErr) Error() string { return "queue full" }

var errFull error = fullErr{}
