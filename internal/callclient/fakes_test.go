package callclient

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/dkeye/convo/internal/domain"
)

type fakePeer struct {
	remote  domain.Identity
	offered bool
	gotOffer string
	answer  string
	ice     []json.RawMessage
	onICE   func(json.RawMessage)
	onState func(PeerState)
	screen  bool
	closed  bool
}

func (p *fakePeer) CreateOffer() (string, error) {
	p.offered = true
	return "offer-sdp", nil
}

func (p *fakePeer) AcceptOffer(sdp string) (string, error) {
	p.gotOffer = sdp
	return "answer-sdp", nil
}

func (p *fakePeer) ApplyAnswer(sdp string) error {
	p.answer = sdp
	return nil
}

func (p *fakePeer) AddICECandidate(c json.RawMessage) error {
	p.ice = append(p.ice, c)
	return nil
}

func (p *fakePeer) OnICECandidate(fn func(json.RawMessage)) { p.onICE = fn }
func (p *fakePeer) OnStateChange(fn func(PeerState))       { p.onState = fn }

func (p *fakePeer) SetScreenShare(on bool) error {
	p.screen = on
	return nil
}

func (p *fakePeer) Close() error {
	p.closed = true
	return nil
}

type peerFactory struct {
	mu    sync.Mutex
	peers []*fakePeer
	fail  bool
}

func (f *peerFactory) New(remote domain.Identity) (Peer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("no media")
	}
	p := &fakePeer{remote: remote}
	f.peers = append(f.peers, p)
	return p, nil
}

func (f *peerFactory) last() *fakePeer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.peers) == 0 {
		return nil
	}
	return f.peers[len(f.peers)-1]
}

type fakeSignaler struct {
	mu   sync.Mutex
	sent []domain.Message
}

func (s *fakeSignaler) Send(m domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, m)
	return nil
}

// take returns and clears everything sent so far.
func (s *fakeSignaler) take() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sent
	s.sent = nil
	return out
}

func frame(m domain.Message) []byte {
	b, _ := json.Marshal(m)
	return b
}

func count(n int) *int { return &n }
