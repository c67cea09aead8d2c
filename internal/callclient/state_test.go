package callclient

import (
	"errors"
	"testing"
)

func TestMachineTransitions(t *testing.T) {
	tests := []struct {
		name   string
		from   State
		ev     Event
		want   State
		reject bool
	}{
		{"offer from idle", Idle, EventOfferSent, Calling, false},
		{"inbound from idle", Idle, EventInbound, Ringing, false},
		{"accept ringing", Ringing, EventAccept, Calling, false},
		{"calling connects", Calling, EventTransportUp, Connected, false},
		{"ringing connects", Ringing, EventTransportUp, Connected, false},
		{"connected ends", Connected, EventTerminate, Ended, false},
		{"calling ends", Calling, EventTerminate, Ended, false},
		{"ringing ends", Ringing, EventTerminate, Ended, false},
		{"ended resets", Ended, EventReset, Idle, false},
		{"accept while idle", Idle, EventAccept, Idle, true},
		{"offer while connected", Connected, EventOfferSent, Connected, true},
		{"inbound while calling", Calling, EventInbound, Calling, true},
		{"terminate idle", Idle, EventTerminate, Idle, true},
		{"connect after end", Ended, EventTransportUp, Ended, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Machine{state: tt.from}
			err := m.Fire(tt.ev)
			if tt.reject != (err != nil) {
				t.Fatalf("err = %v", err)
			}
			if err != nil && !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("err = %v, want ErrInvalidTransition", err)
			}
			if m.State() != tt.want {
				t.Fatalf("state = %s, want %s", m.State(), tt.want)
			}
		})
	}
}

func TestMachineBeginAndEnd(t *testing.T) {
	var m Machine
	if err := m.Begin(EventInbound, ScopeDM, "bob"); err != nil {
		t.Fatal(err)
	}
	if m.Scope() != ScopeDM || m.Peer() != "bob" {
		t.Fatalf("scope=%s peer=%s", m.Scope(), m.Peer())
	}
	if err := m.Begin(EventOfferSent, ScopeRoom, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second begin err = %v", err)
	}
	m.End()
	if m.State() != Idle || m.Scope() != ScopeNone || m.Peer() != "" {
		t.Fatalf("after end: %s %s %q", m.State(), m.Scope(), m.Peer())
	}
	m.End()
	if m.State() != Idle {
		t.Fatal("end on idle changed state")
	}
}
