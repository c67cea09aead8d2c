package app

import (
	"context"
	"time"

	"github.com/dkeye/convo/internal/core"
	"github.com/dkeye/convo/internal/domain"
	"github.com/rs/zerolog/log"
)

type presenceUpdate struct {
	name   domain.Identity
	room   domain.RoomID
	online bool
	at     time.Time
}

// Presence pushes the full identity list to every transport after any
// registry change and mirrors online/offline marks into the store.
// Store writes happen on their own goroutine so dispatch never waits
// on them.
type Presence struct {
	reg     *Registry
	out     *Broadcaster
	store   core.PresenceStore
	updates chan presenceUpdate
	now     func() time.Time
}

func NewPresence(reg *Registry, out *Broadcaster, store core.PresenceStore) *Presence {
	return &Presence{
		reg:     reg,
		out:     out,
		store:   store,
		updates: make(chan presenceUpdate, 256),
		now:     time.Now,
	}
}

// Publish is unconditional; there is no diffing.
func (p *Presence) Publish() PublishResult {
	return p.out.ToAll(domain.UserList{Type: domain.TypeUserList, Users: p.reg.Identities()})
}

func (p *Presence) Online(name domain.Identity, room domain.RoomID) {
	p.enqueue(presenceUpdate{name: name, room: room, online: true, at: p.now()})
}

func (p *Presence) Offline(name domain.Identity) {
	p.enqueue(presenceUpdate{name: name, at: p.now()})
}

func (p *Presence) enqueue(u presenceUpdate) {
	if p.store == nil {
		return
	}
	select {
	case p.updates <- u:
	default:
		log.Warn().Str("module", "app.presence").Str("name", string(u.name)).Msg("presence store queue full, update dropped")
	}
}

// Run drains store updates until ctx is done.
func (p *Presence) Run(ctx context.Context) error {
	if p.store == nil {
		<-ctx.Done()
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-p.updates:
			var err error
			if u.online {
				err = p.store.MarkOnline(ctx, u.name, u.room, u.at)
			} else {
				err = p.store.MarkOffline(ctx, u.name, u.at)
			}
			if err != nil {
				log.Error().Err(err).Str("module", "app.presence").Str("name", string(u.name)).Msg("presence store write")
			}
		}
	}
}
