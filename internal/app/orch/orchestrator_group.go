package orch

import (
	"github.com/dkeye/convo/internal/app"
	"github.com/dkeye/convo/internal/core"
	"github.com/dkeye/convo/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) handleGroupJoin(b app.Binding) {
	res := o.Groups.Join(b.Room, b.Name)
	limit := o.Groups.Max()
	switch res.Status {
	case app.AlreadyMember:
		return
	case app.GroupFull:
		o.Out.ToConn(b.Conn, domain.GroupNotice{Type: domain.TypeGroupJoin, Full: true, Count: res.Count, Max: limit})
		log.Info().Str("module", "orch").Str("name", string(b.Name)).Str("room", string(b.Room)).Msg("group call full")
		return
	}

	o.Out.ToConn(b.Conn, domain.GroupNotice{
		Type:         domain.TypeGroupJoin,
		You:          true,
		Participants: res.Others,
		Count:        res.Count,
		Max:          limit,
	})
	for _, peer := range res.Others {
		o.Out.ToIdentity(peer, domain.GroupNotice{Type: domain.TypeGroupJoin, From: b.Name, Count: res.Count, Max: limit})
	}
	o.Out.ToRoom(b.Room, domain.GroupNotice{Type: domain.TypeGroupJoin, Count: res.Count, Max: limit})
	log.Info().Str("module", "orch").Str("name", string(b.Name)).Str("room", string(b.Room)).Int("count", res.Count).Msg("group call joined")
}

// groupLeave is shared by explicit leave, disconnect and takeover.
func (o *Orchestrator) groupLeave(room domain.RoomID, name domain.Identity) {
	remaining, ok := o.Groups.Leave(room, name)
	if !ok {
		return
	}
	limit := o.Groups.Max()
	for _, peer := range remaining {
		o.Out.ToIdentity(peer, domain.GroupNotice{Type: domain.TypeGroupLeave, From: name, Count: len(remaining), Max: limit})
	}
	o.Out.ToRoom(room, domain.GroupNotice{Type: domain.TypeGroupLeave, Count: len(remaining), Max: limit})
	log.Info().Str("module", "orch").Str("name", string(name)).Str("room", string(room)).Int("count", len(remaining)).Msg("group call left")
}

// handleGroupRelay forwards only between two current members of the
// sender's room call.
func (o *Orchestrator) handleGroupRelay(b app.Binding, env envelope, data core.Frame) {
	if env.To == "" {
		return
	}
	if !o.Groups.IsMember(b.Room, b.Name) || !o.Groups.IsMember(b.Room, env.To) {
		log.Debug().Str("module", "orch").Str("from", string(b.Name)).Str("to", string(env.To)).Msg("group relay outside membership dropped")
		return
	}
	payload, err := withFrom(data, b.Name)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Msg("bad group payload")
		return
	}
	o.Out.ToIdentity(env.To, payload)
}
