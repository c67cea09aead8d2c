package app

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/convo/internal/core"
	"github.com/dkeye/convo/internal/domain"
	"github.com/rs/zerolog/log"
)

// PublishResult reports delivery stats for one fan-out.
type PublishResult struct {
	SentTo  int
	Dropped []core.SignalConnection
}

// Broadcaster delivers at most once: a connection that cannot take a
// frame right now is skipped, never queued or retried.
type Broadcaster struct {
	Registry *Registry
	Policy   Policy
}

func NewBroadcaster(reg *Registry, policy Policy) *Broadcaster {
	if policy == nil {
		policy = DropPolicy{}
	}
	return &Broadcaster{Registry: reg, Policy: policy}
}

// Encode marshals v; core.Frame and raw JSON pass through untouched.
func Encode(v any) (core.Frame, error) {
	switch f := v.(type) {
	case core.Frame:
		return f, nil
	case json.RawMessage:
		return core.Frame(f), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return core.Frame(b), nil
}

func (b *Broadcaster) ToRoom(room domain.RoomID, v any) PublishResult {
	return b.fanout(b.Registry.RoomMembers(room), "", v)
}

func (b *Broadcaster) ToRoomExcept(room domain.RoomID, excluded core.ConnID, v any) PublishResult {
	return b.fanout(b.Registry.RoomMembers(room), excluded, v)
}

// ToAll reaches every open transport, bound or not.
func (b *Broadcaster) ToAll(v any) PublishResult {
	return b.fanout(b.Registry.Connections(), "", v)
}

// ToIdentity reports false when name does not resolve or the frame was
// refused.
func (b *Broadcaster) ToIdentity(name domain.Identity, v any) bool {
	conn, ok := b.Registry.Lookup(name)
	if !ok {
		return false
	}
	return b.ToConn(conn, v)
}

func (b *Broadcaster) ToConn(conn core.SignalConnection, v any) bool {
	f, err := Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.broadcast").Msg("encode")
		return false
	}
	if err := conn.TrySend(f); err != nil {
		b.backpressure(conn, err)
		return false
	}
	return true
}

func (b *Broadcaster) fanout(conns []core.SignalConnection, excluded core.ConnID, v any) PublishResult {
	res := PublishResult{}
	f, err := Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.broadcast").Msg("encode")
		return res
	}
	for _, c := range conns {
		if excluded != "" && c.ID() == excluded {
			continue
		}
		if err := c.TrySend(f); err != nil {
			res.Dropped = append(res.Dropped, c)
			b.backpressure(c, err)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "app.broadcast").Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (b *Broadcaster) backpressure(c core.SignalConnection, err error) {
	if errors.Is(err, core.ErrConnClosed) {
		return
	}
	switch b.Policy.OnBackPressure(c) {
	case KickMember:
		log.Warn().Err(err).Str("module", "app.broadcast").Str("conn", string(c.ID())).Msg("kicking slow connection")
		c.Close()
	case DropFrame:
		log.Debug().Err(err).Str("module", "app.broadcast").Str("conn", string(c.ID())).Msg("frame dropped")
	}
}
