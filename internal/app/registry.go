package app

import (
	"slices"
	"sync"

	"github.com/dkeye/convo/internal/core"
	"github.com/dkeye/convo/internal/domain"
	"github.com/rs/zerolog/log"
)

// Binding is the (identity, room) a connection claimed with join.
type Binding struct {
	Conn core.SignalConnection
	Name domain.Identity
	Room domain.RoomID
}

type connEntry struct {
	conn  core.SignalConnection
	name  domain.Identity
	room  domain.RoomID
	bound bool
}

// Registry maps live connections to their binding and identities back
// to the connection that most recently claimed them.
type Registry struct {
	mu     sync.RWMutex
	conns  map[core.ConnID]*connEntry
	byName map[domain.Identity]core.ConnID
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[core.ConnID]*connEntry),
		byName: make(map[domain.Identity]core.ConnID),
	}
}

// Open records a transport that has no binding yet. Presence snapshots
// still reach it.
func (r *Registry) Open(conn core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[conn.ID()]; ok {
		return
	}
	r.conns[conn.ID()] = &connEntry{conn: conn}
	log.Debug().Str("module", "app.registry").Str("conn", string(conn.ID())).Msg("opened")
}

// Bind records the binding and points name at id. prev is the live
// connection that held name before, if any; ok is false when id was
// never opened. An existing binding of id is released first.
func (r *Registry) Bind(id core.ConnID, name domain.Identity, room domain.RoomID) (prev core.SignalConnection, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	if e.bound {
		r.releaseLocked(id, e)
	}
	if prevID, held := r.byName[name]; held && prevID != id {
		if pe, live := r.conns[prevID]; live {
			prev = pe.conn
		}
	}
	e.name, e.room, e.bound = name, room, true
	r.byName[name] = id
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("name", string(name)).Str("room", string(room)).Msg("bound")
	return prev, true
}

// Unbind drops the binding but keeps the transport registered.
func (r *Registry) Unbind(id core.ConnID) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok || !e.bound {
		return Binding{}, false
	}
	b := Binding{Conn: e.conn, Name: e.name, Room: e.room}
	r.releaseLocked(id, e)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("name", string(b.Name)).Msg("unbound")
	return b, true
}

// ReleaseName removes the identity mapping only while it still points
// at id; a newer connection may have claimed the name since.
func (r *Registry) ReleaseName(id core.ConnID, name domain.Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byName[name]; ok && cur == id {
		delete(r.byName, name)
		return true
	}
	return false
}

// Close forgets the connection entirely. Idempotent.
func (r *Registry) Close(id core.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return
	}
	if e.bound {
		r.releaseLocked(id, e)
	}
	delete(r.conns, id)
	log.Debug().Str("module", "app.registry").Str("conn", string(id)).Msg("closed")
}

func (r *Registry) releaseLocked(id core.ConnID, e *connEntry) {
	if cur, ok := r.byName[e.name]; ok && cur == id {
		delete(r.byName, e.name)
	}
	e.name, e.room, e.bound = "", "", false
}

func (r *Registry) BindingOf(id core.ConnID) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok || !e.bound {
		return Binding{}, false
	}
	return Binding{Conn: e.conn, Name: e.name, Room: e.room}, true
}

func (r *Registry) Lookup(name domain.Identity) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	e, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	return e.conn, true
}

// Owns reports whether name currently resolves to id.
func (r *Registry) Owns(id core.ConnID, name domain.Identity) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cur, ok := r.byName[name]
	return ok && cur == id
}

func (r *Registry) RoomMembers(room domain.RoomID) []core.SignalConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.SignalConnection, 0, 4)
	for _, e := range r.conns {
		if e.bound && e.room == room {
			out = append(out, e.conn)
		}
	}
	return out
}

func (r *Registry) Connections() []core.SignalConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.SignalConnection, 0, len(r.conns))
	for _, e := range r.conns {
		out = append(out, e.conn)
	}
	return out
}

// Identities lists every name that currently resolves, sorted.
func (r *Registry) Identities() []domain.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Identity, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// RoomCounts returns bound connections per room.
func (r *Registry) RoomCounts() map[domain.RoomID]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[domain.RoomID]int)
	for _, e := range r.conns {
		if e.bound {
			out[e.room]++
		}
	}
	return out
}
