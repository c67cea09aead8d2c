package app

import (
	"sync"

	"github.com/dkeye/convo/internal/domain"
)

// Pair is an unordered DM pairing.
type Pair struct {
	A, B domain.Identity
}

// Pairings is the symmetric "in a DM call with" relation. Both
// directions are written and removed under one lock.
type Pairings struct {
	mu   sync.RWMutex
	peer map[domain.Identity]domain.Identity
}

func NewPairings() *Pairings {
	return &Pairings{peer: make(map[domain.Identity]domain.Identity)}
}

// Pair records {a, b}. Any pairing either side held before is removed
// and returned so its other member can be told.
func (p *Pairings) Pair(a, b domain.Identity) []Pair {
	p.mu.Lock()
	defer p.mu.Unlock()
	var broken []Pair
	for _, x := range []domain.Identity{a, b} {
		if old, ok := p.peer[x]; ok {
			if (x == a && old == b) || (x == b && old == a) {
				continue
			}
			delete(p.peer, x)
			delete(p.peer, old)
			broken = append(broken, Pair{A: x, B: old})
		}
	}
	p.peer[a] = b
	p.peer[b] = a
	return broken
}

// Clear removes a's pairing on both sides and returns the former peer.
func (p *Pairings) Clear(a domain.Identity) (domain.Identity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.peer[a]
	if !ok {
		return "", false
	}
	delete(p.peer, a)
	delete(p.peer, b)
	return b, true
}

func (p *Pairings) PeerOf(a domain.Identity) (domain.Identity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.peer[a]
	return b, ok
}

// Len counts identities in a pairing, so twice the number of calls.
func (p *Pairings) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.peer)
}
