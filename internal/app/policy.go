package app

import "github.com/dkeye/convo/internal/core"

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a connection whose outbound queue
// refused a frame. The frame itself is never retried.
type Policy interface {
	OnBackPressure(conn core.SignalConnection) BackpressureAction
}

type DropPolicy struct{}

func (DropPolicy) OnBackPressure(core.SignalConnection) BackpressureAction { return DropFrame }

type KickPolicy struct{}

func (KickPolicy) OnBackPressure(core.SignalConnection) BackpressureAction { return KickMember }

// PolicyByName maps the config value to a policy; unknown names drop.
func PolicyByName(name string) Policy {
	if name == "kick" {
		return KickPolicy{}
	}
	return DropPolicy{}
}
