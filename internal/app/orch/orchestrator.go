package orch

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/dkeye/convo/internal/app"
	"github.com/dkeye/convo/internal/core"
	"github.com/dkeye/convo/internal/domain"
	"github.com/rs/zerolog/log"
)

// Limiter gates dm-call-request per identity.
type Limiter interface {
	Allow(name domain.Identity) bool
}

type eventKind int

const (
	eventOpen eventKind = iota
	eventMessage
	eventClose
)

type event struct {
	kind eventKind
	conn core.SignalConnection
	data core.Frame
}

// Orchestrator is the session gateway. Every open, message and close
// event is handled to completion on the Run goroutine before the next
// one starts, so join/leave/notify sequences are never interleaved.
type Orchestrator struct {
	Registry *app.Registry
	Out      *app.Broadcaster
	Presence *app.Presence
	Pairs    *app.Pairings
	Groups   *app.GroupCalls
	Limiter  Limiter

	events chan event
	done   chan struct{}
}

func New(reg *app.Registry, out *app.Broadcaster, presence *app.Presence, groups *app.GroupCalls) *Orchestrator {
	return &Orchestrator{
		Registry: reg,
		Out:      out,
		Presence: presence,
		Pairs:    app.NewPairings(),
		Groups:   groups,
		events:   make(chan event, 256),
		done:     make(chan struct{}),
	}
}

// Run dispatches events until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer close(o.done)
	log.Info().Str("module", "orch").Msg("dispatch loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "orch").Msg("dispatch loop stopped")
			return nil
		case ev := <-o.events:
			switch ev.kind {
			case eventOpen:
				o.HandleOpen(ev.conn)
			case eventMessage:
				o.HandleMessage(ev.conn, ev.data)
			case eventClose:
				o.HandleClose(ev.conn)
			}
		}
	}
}

// Opened, Received and Closed queue events for Run. They block while
// the queue is full and return false once Run has exited.
func (o *Orchestrator) Opened(conn core.SignalConnection) bool {
	return o.submit(event{kind: eventOpen, conn: conn})
}

func (o *Orchestrator) Received(conn core.SignalConnection, data core.Frame) bool {
	return o.submit(event{kind: eventMessage, conn: conn, data: data})
}

func (o *Orchestrator) Closed(conn core.SignalConnection) bool {
	return o.submit(event{kind: eventClose, conn: conn})
}

func (o *Orchestrator) submit(ev event) bool {
	select {
	case <-o.done:
		return false
	default:
	}
	select {
	case o.events <- ev:
		return true
	case <-o.done:
		return false
	}
}

func (o *Orchestrator) HandleOpen(conn core.SignalConnection) {
	o.Registry.Open(conn)
	log.Info().Str("module", "orch").Str("conn", string(conn.ID())).Msg("client connected")
}

// envelope holds the fields routing needs; relays forward the raw frame.
type envelope struct {
	Type     domain.MessageType `json:"type"`
	To       domain.Identity    `json:"to"`
	Nickname string             `json:"nickname"`
	RoomID   string             `json:"roomId"`
	Text     *string            `json:"text"`
}

// IsCallState reports types that create or mutate DM and group call state.
func (e envelope) IsCallState() bool {
	return e.Type.IsDM() || e.Type == domain.TypeGroupJoin || e.Type == domain.TypeGroupLeave || e.Type.IsGroupNegotiation()
}

func (o *Orchestrator) HandleMessage(conn core.SignalConnection, data core.Frame) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(conn.ID())).Msg("invalid json message")
		return
	}
	if env.Type == domain.TypeJoin {
		o.handleJoin(conn, env)
		return
	}

	b, ok := o.Registry.BindingOf(conn.ID())
	if !ok {
		log.Debug().Str("module", "orch").Str("conn", string(conn.ID())).Str("type", string(env.Type)).Msg("message before join dropped")
		return
	}

	if env.IsCallState() && !o.Registry.Owns(conn.ID(), b.Name) {
		log.Debug().Str("module", "orch").Str("conn", string(conn.ID())).Str("type", string(env.Type)).Msg("call signal from superseded connection dropped")
		return
	}

	switch {
	case env.Type == domain.TypeMessage:
		o.handleChat(b, env)
	case env.Type.IsRoomRelay():
		o.Out.ToRoomExcept(b.Room, conn.ID(), json.RawMessage(data))
	case env.Type.IsDM():
		o.handleDM(b, env, data)
	case env.Type == domain.TypeGroupJoin:
		o.handleGroupJoin(b)
	case env.Type == domain.TypeGroupLeave:
		o.groupLeave(b.Room, b.Name)
	case env.Type.IsGroupNegotiation():
		o.handleGroupRelay(b, env, data)
	default:
		log.Warn().Str("module", "orch").Str("conn", string(conn.ID())).Str("type", string(env.Type)).Msg("unknown message type")
	}
}

// HandleClose runs the full disconnect cleanup. Safe to call twice.
func (o *Orchestrator) HandleClose(conn core.SignalConnection) {
	if b, ok := o.Registry.BindingOf(conn.ID()); ok {
		o.teardown(b)
		o.Registry.Close(conn.ID())
		o.Presence.Publish()
		log.Info().Str("module", "orch").Str("conn", string(conn.ID())).Str("name", string(b.Name)).Str("room", string(b.Room)).Msg("client disconnected")
		return
	}
	o.Registry.Close(conn.ID())
	log.Info().Str("module", "orch").Str("conn", string(conn.ID())).Msg("client disconnected")
}

// withFrom rewrites a targeted frame: "to" stripped, sender attached,
// everything else untouched.
func withFrom(data core.Frame, from domain.Identity) (json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	delete(m, "to")
	f, err := json.Marshal(from)
	if err != nil {
		return nil, err
	}
	m["from"] = f
	return json.Marshal(m)
}

// RoomInfo is a read-only view for APIs.
type RoomInfo struct {
	Room         domain.RoomID     `json:"room"`
	Members      int               `json:"members"`
	GroupCount   int               `json:"group_count"`
	GroupMax     int               `json:"group_max"`
	GroupMembers []domain.Identity `json:"group_members"`
}

func (o *Orchestrator) Rooms() []RoomInfo {
	counts := o.Registry.RoomCounts()
	out := make([]RoomInfo, 0, len(counts))
	for room, n := range counts {
		out = append(out, RoomInfo{
			Room:         room,
			Members:      n,
			GroupCount:   o.Groups.Count(room),
			GroupMax:     o.Groups.Max(),
			GroupMembers: o.Groups.Members(room),
		})
	}
	slices.SortFunc(out, func(a, b RoomInfo) int { return strings.Compare(string(a.Room), string(b.Room)) })
	return out
}
