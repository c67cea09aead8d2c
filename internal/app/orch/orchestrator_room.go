package orch

import (
	"github.com/dkeye/convo/internal/app"
	"github.com/dkeye/convo/internal/core"
	"github.com/dkeye/convo/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomVideoMax is how many connections a 1:1 room call can serve.
const roomVideoMax = 2

func (o *Orchestrator) handleJoin(conn core.SignalConnection, env envelope) {
	name, err := domain.NewIdentity(env.Nickname)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(conn.ID())).Msg("bad join payload")
		return
	}
	room, err := domain.NewRoomID(env.RoomID)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(conn.ID())).Msg("bad join payload")
		return
	}

	if old, ok := o.Registry.BindingOf(conn.ID()); ok {
		o.teardown(old)
		o.Registry.Unbind(conn.ID())
		log.Info().Str("module", "orch").Str("conn", string(conn.ID())).Str("from_room", string(old.Room)).Msg("rejoin, previous binding released")
	}

	prev, ok := o.Registry.Bind(conn.ID(), name, room)
	if !ok {
		log.Warn().Str("module", "orch").Str("conn", string(conn.ID())).Msg("join from unknown connection")
		return
	}
	if prev != nil {
		o.takeover(prev, name)
	}
	o.Presence.Online(name, room)
	log.Info().Str("module", "orch").Str("conn", string(conn.ID())).Str("name", string(name)).Str("room", string(room)).Msg("joined")

	o.Out.ToRoom(room, system("%s joined the room", name))
	if len(o.Registry.RoomMembers(room)) > roomVideoMax {
		o.Out.ToConn(conn, system("Room is full for video"))
	}
	if o.Groups.Active(room) {
		o.Out.ToConn(conn, domain.GroupNotice{Type: domain.TypeGroupJoin, Count: o.Groups.Count(room), Max: o.Groups.Max()})
	}
	o.Presence.Publish()
}

// takeover hands name to a newer connection. The old transport stays
// open but its identity-keyed call state ends here.
func (o *Orchestrator) takeover(prev core.SignalConnection, name domain.Identity) {
	log.Warn().Str("module", "orch").Str("conn", string(prev.ID())).Str("name", string(name)).Msg("nickname claimed by a newer connection")
	o.Out.ToConn(prev, system("%s signed in from another session", name))
	if peer, ok := o.Pairs.Clear(name); ok {
		o.Out.ToIdentity(peer, dmNotice{Type: domain.TypeDMHangup, From: name})
	}
	if b, ok := o.Registry.BindingOf(prev.ID()); ok && o.Groups.IsMember(b.Room, name) {
		o.groupLeave(b.Room, name)
	}
}

func (o *Orchestrator) handleChat(b app.Binding, env envelope) {
	if env.Text == nil {
		log.Warn().Str("module", "orch").Str("conn", string(b.Conn.ID())).Msg("chat message without text")
		return
	}
	o.Out.ToRoom(b.Room, chatMessage{Type: domain.TypeMessage, Nickname: b.Name, Text: *env.Text})
}

// teardown releases everything a binding holds except the registry
// entry itself. Call state is identity-keyed, so only the connection
// that still owns the name may clear it.
func (o *Orchestrator) teardown(b app.Binding) {
	o.Out.ToRoom(b.Room, system("%s left the room", b.Name))
	o.Out.ToRoomExcept(b.Room, b.Conn.ID(), bareMessage{Type: domain.TypeHangup})

	if o.Registry.Owns(b.Conn.ID(), b.Name) {
		if peer, ok := o.Pairs.Clear(b.Name); ok {
			o.Out.ToIdentity(peer, dmNotice{Type: domain.TypeDMHangup, From: b.Name})
			log.Info().Str("module", "orch").Str("name", string(b.Name)).Str("peer", string(peer)).Msg("dm pairing cleared")
		}
		if o.Groups.IsMember(b.Room, b.Name) {
			o.groupLeave(b.Room, b.Name)
		}
	}
	if o.Registry.ReleaseName(b.Conn.ID(), b.Name) {
		o.Presence.Offline(b.Name)
	}
}
