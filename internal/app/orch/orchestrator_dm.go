package orch

import (
	"github.com/dkeye/convo/internal/app"
	"github.com/dkeye/convo/internal/core"
	"github.com/dkeye/convo/internal/domain"
	"github.com/rs/zerolog/log"
)

// handleDM relays a targeted DM frame. Busy checks are the clients'
// job; the server only checks reachability.
func (o *Orchestrator) handleDM(b app.Binding, env envelope, data core.Frame) {
	if env.To == "" {
		log.Warn().Str("module", "orch").Str("name", string(b.Name)).Str("type", string(env.Type)).Msg("dm message without target")
		return
	}
	if env.Type == domain.TypeDMCallRequest && o.Limiter != nil && !o.Limiter.Allow(b.Name) {
		log.Warn().Str("module", "orch").Str("name", string(b.Name)).Msg("dm call request rate limited")
		return
	}
	payload, err := withFrom(data, b.Name)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("name", string(b.Name)).Msg("bad dm payload")
		return
	}

	delivered := o.Out.ToIdentity(env.To, payload)
	switch env.Type {
	case domain.TypeDMCallRequest:
		if !delivered {
			o.Out.ToConn(b.Conn, dmNotice{Type: domain.TypeDMCallReject, From: env.To, Reason: domain.ReasonOffline})
			log.Info().Str("module", "orch").Str("from", string(b.Name)).Str("to", string(env.To)).Msg("dm call target offline")
		}
	case domain.TypeDMCallAccept:
		if !delivered {
			return
		}
		if peer, ok := o.Pairs.PeerOf(b.Name); ok && peer == env.To {
			return
		}
		for _, stale := range o.Pairs.Pair(b.Name, env.To) {
			o.Out.ToIdentity(stale.B, dmNotice{Type: domain.TypeDMHangup, From: stale.A})
		}
		log.Info().Str("module", "orch").Str("a", string(b.Name)).Str("b", string(env.To)).Int("dm_calls", o.Pairs.Len()/2).Msg("dm pairing established")
	case domain.TypeDMHangup:
		if peer, ok := o.Pairs.Clear(b.Name); ok {
			if peer != env.To {
				o.Out.ToIdentity(peer, dmNotice{Type: domain.TypeDMHangup, From: b.Name})
			}
			log.Info().Str("module", "orch").Str("name", string(b.Name)).Str("peer", string(peer)).Msg("dm pairing cleared")
		}
	}
}
