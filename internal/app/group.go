package app

import (
	"slices"
	"sync"

	"github.com/dkeye/convo/internal/domain"
)

const DefaultGroupMax = 4

type JoinStatus int

const (
	Joined JoinStatus = iota
	AlreadyMember
	GroupFull
)

type JoinResult struct {
	Status JoinStatus
	// Others are the members besides the joiner, in join order.
	Others []domain.Identity
	Count  int
}

// GroupCalls keeps one bounded member list per room. A room's list is
// created on first join and deleted once it empties.
type GroupCalls struct {
	mu    sync.RWMutex
	max   int
	rooms map[domain.RoomID][]domain.Identity
}

func NewGroupCalls(max int) *GroupCalls {
	if max <= 0 {
		max = DefaultGroupMax
	}
	return &GroupCalls{max: max, rooms: make(map[domain.RoomID][]domain.Identity)}
}

func (g *GroupCalls) Max() int { return g.max }

func (g *GroupCalls) Join(room domain.RoomID, name domain.Identity) JoinResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	members := g.rooms[room]
	if slices.Contains(members, name) {
		return JoinResult{Status: AlreadyMember, Count: len(members)}
	}
	if len(members) >= g.max {
		return JoinResult{Status: GroupFull, Count: len(members)}
	}
	others := slices.Clone(members)
	g.rooms[room] = append(members, name)
	return JoinResult{Status: Joined, Others: others, Count: len(members) + 1}
}

// Leave removes name and returns who is still in the call.
func (g *GroupCalls) Leave(room domain.RoomID, name domain.Identity) (remaining []domain.Identity, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	members := g.rooms[room]
	i := slices.Index(members, name)
	if i < 0 {
		return nil, false
	}
	members = slices.Delete(members, i, i+1)
	if len(members) == 0 {
		delete(g.rooms, room)
		return nil, true
	}
	g.rooms[room] = members
	return slices.Clone(members), true
}

func (g *GroupCalls) IsMember(room domain.RoomID, name domain.Identity) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Contains(g.rooms[room], name)
}

// Active reports whether the room has a member list at all.
func (g *GroupCalls) Active(room domain.RoomID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.rooms[room]
	return ok
}

func (g *GroupCalls) Count(room domain.RoomID) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms[room])
}

func (g *GroupCalls) Members(room domain.RoomID) []domain.Identity {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.rooms[room])
}
