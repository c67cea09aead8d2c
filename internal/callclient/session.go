package callclient

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/dkeye/convo/internal/domain"
	"github.com/rs/zerolog/log"
)

const DefaultRingTimeout = 30 * time.Second

type PeerState int

const (
	PeerConnected PeerState = iota
	PeerFailed
)

// Peer is one media connection to one remote client.
type Peer interface {
	CreateOffer() (string, error)
	AcceptOffer(sdp string) (string, error)
	ApplyAnswer(sdp string) error
	AddICECandidate(candidate json.RawMessage) error
	OnICECandidate(fn func(candidate json.RawMessage))
	OnStateChange(fn func(PeerState))
	// SetScreenShare swaps the outgoing video between camera and screen
	// without renegotiating.
	SetScreenShare(on bool) error
	Close() error
}

type PeerFactory func(remote domain.Identity) (Peer, error)

type Signaler interface {
	Send(msg domain.Message) error
}

type Options struct {
	RingTimeout time.Duration
	GroupMax    int
	// Notify receives human-readable call and chat events.
	Notify func(text string)
}

// Session drives one client's calls from user actions and relayed
// signaling. At most one call context is live at a time: a room or dm
// call in the state machine, a pending dm request, or a group call.
type Session struct {
	mu      sync.Mutex
	self    domain.Identity
	sig     Signaler
	newPeer PeerFactory
	opts    Options

	call      Machine
	peer      Peer
	offer     string // pending inbound room offer
	iceQueue  []json.RawMessage
	dmOut     domain.Identity
	dmIn      domain.Identity
	sharing   bool
	ringTimer *time.Timer
	ringGen   uint64

	group groupState
}

func NewSession(self domain.Identity, sig Signaler, newPeer PeerFactory, opts Options) *Session {
	if opts.RingTimeout <= 0 {
		opts.RingTimeout = DefaultRingTimeout
	}
	if opts.GroupMax <= 0 {
		opts.GroupMax = 4
	}
	if opts.Notify == nil {
		opts.Notify = func(string) {}
	}
	return &Session{
		self:    self,
		sig:     sig,
		newPeer: newPeer,
		opts:    opts,
		group:   groupState{peers: make(map[domain.Identity]Peer)},
	}
}

func (s *Session) State() (State, Scope, domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.call.State(), s.call.Scope(), s.call.Peer()
}

func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy()
}

func (s *Session) busy() bool {
	return s.call.State() != Idle || s.offer != "" || s.dmOut != "" || s.dmIn != "" ||
		s.group.pending || s.group.active
}

func (s *Session) send(msg domain.Message) {
	if err := s.sig.Send(msg); err != nil {
		log.Warn().Err(err).Str("module", "callclient").Str("type", string(msg.Type)).Msg("signal send")
	}
}

// Handle interprets one inbound frame. Undecodable frames are logged
// and dropped.
func (s *Session) Handle(data []byte) {
	var msg domain.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn().Err(err).Str("module", "callclient").Msg("invalid message")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg.Type {
	case domain.TypeMessage:
		s.opts.Notify(string(msg.Nickname) + ": " + msg.Text)
	case domain.TypeSystem:
		s.opts.Notify("[SYSTEM] " + msg.Text)
	case domain.TypeUserList:
		log.Debug().Str("module", "callclient").Int("users", len(msg.Users)).Msg("presence")
	case domain.TypeOffer:
		s.onRoomOffer(msg)
	case domain.TypeAnswer:
		if s.peer != nil && s.call.Scope() == ScopeRoom {
			if err := s.peer.ApplyAnswer(msg.SDP); err != nil {
				log.Error().Err(err).Str("module", "callclient").Msg("room answer")
			}
		}
	case domain.TypeICE:
		if s.call.Scope() == ScopeRoom {
			s.addICE(msg.Candidate)
		}
	case domain.TypeHangup:
		if s.call.Scope() == ScopeRoom {
			s.endCall(false)
		}
	case domain.TypeDMCallRequest:
		s.onDMRequest(msg)
	case domain.TypeDMCallAccept:
		s.onDMAccept(msg)
	case domain.TypeDMCallReject:
		s.onDMReject(msg)
	case domain.TypeDMOffer:
		s.onDMOffer(msg)
	case domain.TypeDMAnswer:
		if s.peer != nil && s.call.Scope() == ScopeDM && msg.From == s.call.Peer() {
			if err := s.peer.ApplyAnswer(msg.SDP); err != nil {
				log.Error().Err(err).Str("module", "callclient").Msg("dm answer")
			}
		}
	case domain.TypeDMICE:
		s.onDMICE(msg)
	case domain.TypeDMHangup:
		s.onDMHangup(msg)
	case domain.TypeGroupJoin:
		s.onGroupJoin(msg)
	case domain.TypeGroupLeave:
		s.onGroupLeave(msg)
	case domain.TypeGroupOffer, domain.TypeGroupAnswer, domain.TypeGroupICE:
		s.onGroupNegotiation(msg)
	default:
		log.Debug().Str("module", "callclient").Str("type", string(msg.Type)).Msg("unhandled message")
	}
}

// StartRoomCall offers a call to whoever else is in the room.
func (s *Session) StartRoomCall() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy() {
		return ErrBusy
	}
	if err := s.openPeer(ScopeRoom, ""); err != nil {
		return err
	}
	sdp, err := s.peer.CreateOffer()
	if err != nil {
		s.closePeer()
		return err
	}
	if err := s.call.Begin(EventOfferSent, ScopeRoom, ""); err != nil {
		s.closePeer()
		return err
	}
	s.send(domain.Message{Type: domain.TypeOffer, SDP: sdp})
	log.Info().Str("module", "callclient").Msg("room offer sent")
	return nil
}

func (s *Session) onRoomOffer(msg domain.Message) {
	if s.busy() || msg.SDP == "" {
		return
	}
	if err := s.call.Begin(EventInbound, ScopeRoom, ""); err != nil {
		return
	}
	s.offer = msg.SDP
	s.opts.Notify("[SYSTEM] Incoming call")
	s.armRing(func() {
		log.Info().Str("module", "callclient").Msg("room offer unanswered, dropped")
		s.endCall(false)
	})
}

// AcceptRoomCall answers the pending inbound room offer.
func (s *Session) AcceptRoomCall() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.call.State() != Ringing || s.call.Scope() != ScopeRoom || s.offer == "" {
		return ErrNoCall
	}
	if s.dmOut != "" || s.dmIn != "" || s.group.pending || s.group.active {
		return ErrBusy
	}
	s.cancelRing()
	if err := s.openPeer(ScopeRoom, ""); err != nil {
		return err
	}
	answer, err := s.peer.AcceptOffer(s.offer)
	if err != nil {
		s.endCall(false)
		return err
	}
	s.offer = ""
	if err := s.call.Fire(EventAccept); err != nil {
		return err
	}
	s.send(domain.Message{Type: domain.TypeAnswer, SDP: answer})
	return nil
}

// Hangup ends the 1:1 call or cancels an outgoing dm request. Group
// membership is left alone; see LeaveGroup.
func (s *Session) Hangup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.dmOut != "":
		s.send(domain.Message{Type: domain.TypeDMHangup, To: s.dmOut})
		s.dmOut = ""
		s.cancelRing()
		return nil
	case s.call.State() == Idle:
		return ErrNoCall
	case s.call.Scope() == ScopeDM && s.call.State() == Ringing:
		s.rejectIncoming(domain.ReasonRejected)
		return nil
	}
	s.endCall(true)
	return nil
}

// StartScreenShare is only available in a connected dm call.
func (s *Session) StartScreenShare() error {
	return s.setScreenShare(true)
}

func (s *Session) StopScreenShare() error {
	return s.setScreenShare(false)
}

func (s *Session) setScreenShare(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.call.Scope() != ScopeDM || s.call.State() != Connected || s.peer == nil {
		return ErrNotInDMCall
	}
	if s.sharing == on {
		return nil
	}
	if err := s.peer.SetScreenShare(on); err != nil {
		return err
	}
	s.sharing = on
	return nil
}

func (s *Session) Sharing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sharing
}

// Disconnected tears down all local call state after the signaling
// transport dropped.
func (s *Session) Disconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dmOut = ""
	s.endCall(false)
	s.endGroup(false)
}

// openPeer creates the 1:1 peer and applies queued candidates.
func (s *Session) openPeer(scope Scope, remote domain.Identity) error {
	if s.peer != nil {
		return nil
	}
	p, err := s.newPeer(remote)
	if err != nil {
		return err
	}
	s.peer = p
	p.OnICECandidate(func(c json.RawMessage) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.peer != p {
			return
		}
		if scope == ScopeDM {
			s.send(domain.Message{Type: domain.TypeDMICE, To: remote, Candidate: c})
		} else {
			s.send(domain.Message{Type: domain.TypeICE, Candidate: c})
		}
	})
	p.OnStateChange(func(st PeerState) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.peer != p {
			return
		}
		s.onTransport(st)
	})
	queued := s.iceQueue
	s.iceQueue = nil
	for _, c := range queued {
		if err := p.AddICECandidate(c); err != nil {
			log.Warn().Err(err).Str("module", "callclient").Msg("queued ice")
		}
	}
	return nil
}

func (s *Session) onTransport(st PeerState) {
	switch st {
	case PeerConnected:
		if err := s.call.Fire(EventTransportUp); err != nil {
			log.Debug().Err(err).Str("module", "callclient").Msg("transport up")
			return
		}
		if s.call.Scope() == ScopeDM {
			s.opts.Notify("[SYSTEM] DM call accepted with " + string(s.call.Peer()))
		} else {
			s.opts.Notify("[SYSTEM] Call accepted")
		}
	case PeerFailed:
		log.Info().Str("module", "callclient").Msg("peer disconnected")
		s.endCall(false)
	}
}

func (s *Session) addICE(c json.RawMessage) {
	if len(c) == 0 {
		return
	}
	if s.peer == nil {
		s.iceQueue = append(s.iceQueue, c)
		return
	}
	if err := s.peer.AddICECandidate(c); err != nil {
		log.Warn().Err(err).Str("module", "callclient").Msg("add ice")
	}
}

func (s *Session) closePeer() {
	if s.peer == nil {
		return
	}
	if err := s.peer.Close(); err != nil {
		log.Warn().Err(err).Str("module", "callclient").Msg("peer close")
	}
	s.peer = nil
}

// endCall tears the 1:1 call down without waiting for the remote side.
func (s *Session) endCall(sendHangup bool) {
	prev, scope := s.call.State(), s.call.Scope()
	if sendHangup && prev != Idle {
		if scope == ScopeDM {
			s.send(domain.Message{Type: domain.TypeDMHangup, To: s.call.Peer()})
		} else {
			s.send(domain.Message{Type: domain.TypeHangup})
		}
	}
	if s.sharing && s.peer != nil {
		_ = s.peer.SetScreenShare(false)
	}
	s.sharing = false
	s.cancelRing()
	s.closePeer()
	s.offer = ""
	s.iceQueue = nil
	s.dmIn = ""
	s.call.End()
	if prev != Idle {
		if scope == ScopeDM {
			s.opts.Notify("[SYSTEM] DM call ended")
		} else {
			s.opts.Notify("[SYSTEM] Call ended")
		}
	}
}

// armRing runs fn under the session lock after the ring timeout unless
// cancelRing or another armRing happens first.
func (s *Session) armRing(fn func()) {
	s.cancelRing()
	gen := s.ringGen
	s.ringTimer = time.AfterFunc(s.opts.RingTimeout, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ringGen != gen {
			return
		}
		s.ringTimer = nil
		fn()
	})
}

func (s *Session) cancelRing() {
	s.ringGen++
	if s.ringTimer != nil {
		s.ringTimer.Stop()
		s.ringTimer = nil
	}
}
