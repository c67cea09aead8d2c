// Package callclient is the client half of a call: the per-client call
// state machine, the session that interprets relayed signaling, and the
// websocket transport that carries it.
package callclient

import (
	"errors"
	"fmt"

	"github.com/dkeye/convo/internal/domain"
)

var (
	ErrInvalidTransition = errors.New("invalid call state transition")
	ErrBusy              = errors.New("already in a call")
	ErrNoCall            = errors.New("no call in progress")
	ErrNotInDMCall       = errors.New("not in a connected dm call")
	ErrGroupFull         = errors.New("room group call is full")
)

type State int

const (
	Idle State = iota
	Ringing
	Calling
	Connected
	Ended
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ringing:
		return "ringing"
	case Calling:
		return "calling"
	case Connected:
		return "connected"
	case Ended:
		return "ended"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Scope int

const (
	ScopeNone Scope = iota
	ScopeRoom
	ScopeDM
)

func (s Scope) String() string {
	switch s {
	case ScopeRoom:
		return "room"
	case ScopeDM:
		return "dm"
	}
	return "none"
}

type Event int

const (
	EventOfferSent Event = iota
	EventInbound
	EventAccept
	EventTransportUp
	EventTerminate
	EventReset
)

func (e Event) String() string {
	return [...]string{"offer-sent", "inbound", "accept", "transport-up", "terminate", "reset"}[e]
}

var transitions = map[State]map[Event]State{
	Idle: {
		EventOfferSent: Calling,
		EventInbound:   Ringing,
	},
	Ringing: {
		EventAccept:      Calling,
		EventTransportUp: Connected,
		EventTerminate:   Ended,
	},
	Calling: {
		EventTransportUp: Connected,
		EventTerminate:   Ended,
	},
	Connected: {
		EventTerminate: Ended,
	},
	Ended: {
		EventReset: Idle,
	},
}

// Machine is one call attempt's state. It is not safe for concurrent
// use; Session serializes access.
type Machine struct {
	state State
	scope Scope
	peer  domain.Identity
}

func (m *Machine) State() State          { return m.state }
func (m *Machine) Scope() Scope          { return m.scope }
func (m *Machine) Peer() domain.Identity { return m.peer }

// Fire applies ev. Undefined transitions leave the machine untouched.
func (m *Machine) Fire(ev Event) error {
	next, ok := transitions[m.state][ev]
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrInvalidTransition, m.state, ev)
	}
	m.state = next
	if next == Idle {
		m.scope, m.peer = ScopeNone, ""
	}
	return nil
}

// Begin leaves idle for a new attempt in scope with an optional remote
// identity.
func (m *Machine) Begin(ev Event, scope Scope, peer domain.Identity) error {
	if m.state != Idle {
		return fmt.Errorf("%w: %s on %s", ErrInvalidTransition, m.state, ev)
	}
	if err := m.Fire(ev); err != nil {
		return err
	}
	m.scope, m.peer = scope, peer
	return nil
}

// End terminates the attempt and resets to idle. It is a no-op when
// already idle.
func (m *Machine) End() {
	if m.state == Idle {
		return
	}
	if m.state != Ended {
		_ = m.Fire(EventTerminate)
	}
	_ = m.Fire(EventReset)
}
