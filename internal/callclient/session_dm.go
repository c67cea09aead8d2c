package callclient

import (
	"github.com/dkeye/convo/internal/domain"
	"github.com/rs/zerolog/log"
)

// CallDM asks to to start a dm call. The request rings until accepted,
// rejected, cancelled with Hangup, or the ring timeout sends a hangup.
func (s *Session) CallDM(to domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if to == "" || to == s.self {
		return ErrNoCall
	}
	if s.busy() {
		return ErrBusy
	}
	s.dmOut = to
	s.send(domain.Message{Type: domain.TypeDMCallRequest, To: to})
	s.opts.Notify("[SYSTEM] Calling " + string(to) + "...")
	s.armRing(func() {
		log.Info().Str("module", "callclient").Str("to", string(to)).Msg("dm request unanswered")
		s.send(domain.Message{Type: domain.TypeDMHangup, To: to})
		s.dmOut = ""
		s.opts.Notify("[SYSTEM] No answer from " + string(to))
	})
	return nil
}

func (s *Session) AcceptDM() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dmIn == "" || s.call.State() != Ringing || s.call.Scope() != ScopeDM {
		return ErrNoCall
	}
	if s.dmOut != "" || s.group.pending || s.group.active {
		return ErrBusy
	}
	s.cancelRing()
	from := s.dmIn
	if err := s.openPeer(ScopeDM, from); err != nil {
		s.rejectIncoming(domain.ReasonBusy)
		return err
	}
	if err := s.call.Fire(EventAccept); err != nil {
		return err
	}
	s.dmIn = ""
	s.send(domain.Message{Type: domain.TypeDMCallAccept, To: from})
	return nil
}

func (s *Session) RejectDM() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dmIn == "" {
		return ErrNoCall
	}
	s.rejectIncoming(domain.ReasonRejected)
	return nil
}

func (s *Session) rejectIncoming(reason string) {
	s.send(domain.Message{Type: domain.TypeDMCallReject, To: s.dmIn, Reason: reason})
	s.endCall(false)
}

func (s *Session) onDMRequest(msg domain.Message) {
	if msg.From == "" || msg.From == s.self {
		return
	}
	// already ringing for this caller
	if msg.From == s.dmIn {
		return
	}
	if s.busy() {
		s.send(domain.Message{Type: domain.TypeDMCallReject, To: msg.From, Reason: domain.ReasonBusy})
		return
	}
	if err := s.call.Begin(EventInbound, ScopeDM, msg.From); err != nil {
		return
	}
	s.dmIn = msg.From
	s.opts.Notify("[SYSTEM] Incoming DM call from " + string(msg.From))
	s.armRing(func() {
		log.Info().Str("module", "callclient").Str("from", string(msg.From)).Msg("dm request not answered in time")
		s.rejectIncoming(domain.ReasonTimeout)
	})
}

func (s *Session) onDMAccept(msg domain.Message) {
	if s.dmOut == "" || msg.From != s.dmOut {
		return
	}
	s.cancelRing()
	s.dmOut = ""
	if err := s.openPeer(ScopeDM, msg.From); err != nil {
		log.Error().Err(err).Str("module", "callclient").Msg("dm peer")
		s.send(domain.Message{Type: domain.TypeDMHangup, To: msg.From})
		return
	}
	sdp, err := s.peer.CreateOffer()
	if err != nil {
		log.Error().Err(err).Str("module", "callclient").Msg("dm offer")
		s.closePeer()
		s.send(domain.Message{Type: domain.TypeDMHangup, To: msg.From})
		return
	}
	if err := s.call.Begin(EventOfferSent, ScopeDM, msg.From); err != nil {
		s.closePeer()
		return
	}
	s.send(domain.Message{Type: domain.TypeDMOffer, To: msg.From, SDP: sdp})
}

func (s *Session) onDMReject(msg domain.Message) {
	switch {
	case s.dmOut != "" && msg.From == s.dmOut:
		s.cancelRing()
		s.dmOut = ""
		switch msg.Reason {
		case domain.ReasonBusy:
			s.opts.Notify("[SYSTEM] DM call failed: user is busy")
		case domain.ReasonOffline:
			s.opts.Notify("[SYSTEM] DM call failed: user not available")
		default:
			s.opts.Notify("[SYSTEM] DM call rejected by " + string(msg.From))
		}
	case s.call.Scope() == ScopeDM && msg.From == s.call.Peer():
		s.endCall(false)
	}
}

// onDMOffer answers only the peer this client accepted; anyone else is
// told it is busy.
func (s *Session) onDMOffer(msg domain.Message) {
	if msg.From == "" || msg.SDP == "" {
		return
	}
	if s.call.Scope() != ScopeDM || s.call.Peer() != msg.From || s.call.State() != Calling || s.peer == nil {
		s.send(domain.Message{Type: domain.TypeDMCallReject, To: msg.From, Reason: domain.ReasonBusy})
		return
	}
	answer, err := s.peer.AcceptOffer(msg.SDP)
	if err != nil {
		log.Error().Err(err).Str("module", "callclient").Msg("dm answer")
		s.endCall(true)
		return
	}
	s.send(domain.Message{Type: domain.TypeDMAnswer, To: msg.From, SDP: answer})
}

func (s *Session) onDMICE(msg domain.Message) {
	if s.call.Scope() == ScopeDM && msg.From == s.call.Peer() {
		s.addICE(msg.Candidate)
	}
}

func (s *Session) onDMHangup(msg domain.Message) {
	if s.call.Scope() == ScopeDM && msg.From == s.call.Peer() {
		s.endCall(false)
	}
}
