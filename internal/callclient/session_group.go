package callclient

import (
	"encoding/json"

	"github.com/dkeye/convo/internal/domain"
	"github.com/rs/zerolog/log"
)

// groupState is this client's view of its room's mesh call.
type groupState struct {
	pending bool
	active  bool
	count   int
	peers   map[domain.Identity]Peer
}

func (s *Session) JoinGroup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy() {
		return ErrBusy
	}
	if s.group.count >= s.opts.GroupMax {
		return ErrGroupFull
	}
	s.group.pending = true
	s.send(domain.Message{Type: domain.TypeGroupJoin})
	return nil
}

func (s *Session) LeaveGroup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.group.pending && !s.group.active {
		return ErrNoCall
	}
	s.endGroup(true)
	return nil
}

// GroupStatus reports the room's call size and whether this client is in it.
func (s *Session) GroupStatus() (count int, active bool, peers []domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for p := range s.group.peers {
		peers = append(peers, p)
	}
	return s.group.count, s.group.active, peers
}

func (s *Session) endGroup(sendLeave bool) {
	if sendLeave && (s.group.pending || s.group.active) {
		s.send(domain.Message{Type: domain.TypeGroupLeave})
	}
	for name := range s.group.peers {
		s.removeGroupPeer(name)
	}
	s.group.pending, s.group.active = false, false
}

func (s *Session) onGroupJoin(msg domain.Message) {
	if msg.Count != nil {
		s.group.count = *msg.Count
	}
	switch {
	case msg.Full:
		s.group.pending = false
		s.opts.Notify("[SYSTEM] Room group call is full")
	case msg.You:
		s.group.pending, s.group.active = false, true
		for _, p := range msg.Participants {
			if p != "" && p != s.self {
				if _, err := s.groupPeer(p); err != nil {
					log.Error().Err(err).Str("module", "callclient").Str("peer", string(p)).Msg("group peer")
				}
			}
		}
	case msg.From != "" && msg.From != s.self && s.group.active:
		s.sendGroupOffer(msg.From)
	}
}

func (s *Session) onGroupLeave(msg domain.Message) {
	if msg.Count != nil {
		s.group.count = *msg.Count
	}
	if msg.From != "" && msg.From != s.self {
		s.removeGroupPeer(msg.From)
	}
}

// onGroupNegotiation also promotes a pending join: the server only
// relays among members, so any such message means the join landed.
func (s *Session) onGroupNegotiation(msg domain.Message) {
	if !s.group.active && !s.group.pending {
		return
	}
	if s.group.pending {
		s.group.pending, s.group.active = false, true
	}
	if msg.From == "" {
		return
	}
	switch msg.Type {
	case domain.TypeGroupOffer:
		if msg.SDP == "" {
			return
		}
		p, err := s.groupPeer(msg.From)
		if err != nil {
			log.Error().Err(err).Str("module", "callclient").Msg("group peer")
			return
		}
		answer, err := p.AcceptOffer(msg.SDP)
		if err != nil {
			log.Error().Err(err).Str("module", "callclient").Msg("group answer")
			return
		}
		s.send(domain.Message{Type: domain.TypeGroupAnswer, To: msg.From, SDP: answer})
	case domain.TypeGroupAnswer:
		if p, ok := s.group.peers[msg.From]; ok && msg.SDP != "" {
			if err := p.ApplyAnswer(msg.SDP); err != nil {
				log.Error().Err(err).Str("module", "callclient").Msg("group answer apply")
			}
		}
	case domain.TypeGroupICE:
		if len(msg.Candidate) == 0 {
			return
		}
		p, err := s.groupPeer(msg.From)
		if err != nil {
			return
		}
		if err := p.AddICECandidate(msg.Candidate); err != nil {
			log.Warn().Err(err).Str("module", "callclient").Msg("group ice")
		}
	}
}

func (s *Session) sendGroupOffer(to domain.Identity) {
	p, err := s.groupPeer(to)
	if err != nil {
		log.Error().Err(err).Str("module", "callclient").Msg("group peer")
		return
	}
	sdp, err := p.CreateOffer()
	if err != nil {
		log.Error().Err(err).Str("module", "callclient").Msg("group offer")
		return
	}
	s.send(domain.Message{Type: domain.TypeGroupOffer, To: to, SDP: sdp})
}

func (s *Session) groupPeer(remote domain.Identity) (Peer, error) {
	if p, ok := s.group.peers[remote]; ok {
		return p, nil
	}
	p, err := s.newPeer(remote)
	if err != nil {
		return nil, err
	}
	s.group.peers[remote] = p
	p.OnICECandidate(func(c json.RawMessage) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.group.peers[remote] != p {
			return
		}
		s.send(domain.Message{Type: domain.TypeGroupICE, To: remote, Candidate: c})
	})
	p.OnStateChange(func(st PeerState) {
		if st != PeerFailed {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.group.peers[remote] == p {
			s.removeGroupPeer(remote)
		}
	})
	log.Info().Str("module", "callclient").Str("peer", string(remote)).Msg("group peer added")
	return p, nil
}

func (s *Session) removeGroupPeer(remote domain.Identity) {
	p, ok := s.group.peers[remote]
	if !ok {
		return
	}
	delete(s.group.peers, remote)
	if err := p.Close(); err != nil {
		log.Warn().Err(err).Str("module", "callclient").Msg("group peer close")
	}
}
