package rtc

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/dkeye/convo/internal/callclient"
	"github.com/dkeye/convo/internal/domain"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

func TestTrackStatsCountsLoss(t *testing.T) {
	var st TrackStats
	for _, seq := range []uint16{65534, 65535, 2, 3, 3} {
		st.observe(&rtp.Packet{Header: rtp.Header{SequenceNumber: seq}, Payload: make([]byte, 10)})
	}
	// 0 and 1 were lost across the wrap; the duplicate 3 is not loss.
	if st.Packets != 5 || st.Bytes != 50 || st.Lost != 2 {
		t.Fatalf("stats = %+v", st)
	}
}

func newTestPeer(t *testing.T, remote string) *Peer {
	t.Helper()
	m, err := NewMedia("test")
	if err != nil {
		t.Fatal(err)
	}
	p, err := NewPeer(context.Background(), webrtc.Configuration{}, m, domain.Identity(remote))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestOfferAnswerFlushesBufferedICE(t *testing.T) {
	a := newTestPeer(t, "a")
	b := newTestPeer(t, "b")

	cand, _ := json.Marshal(webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 2130706431 192.0.2.1 50000 typ host"})
	if err := b.AddICECandidate(cand); err != nil {
		t.Fatal(err)
	}
	b.mu.Lock()
	buffered := len(b.pending)
	b.mu.Unlock()
	if buffered != 1 {
		t.Fatalf("buffered = %d", buffered)
	}

	offer, err := a.CreateOffer()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(offer, "m=audio") || !strings.Contains(offer, "m=video") {
		t.Fatalf("offer lacks media sections:\n%s", offer)
	}
	answer, err := b.AcceptOffer(offer)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.ApplyAnswer(answer); err != nil {
		t.Fatal(err)
	}

	b.mu.Lock()
	buffered = len(b.pending)
	b.mu.Unlock()
	if buffered != 0 {
		t.Fatalf("candidates still buffered: %d", buffered)
	}
}

func TestScreenShareReplacesTrack(t *testing.T) {
	p := newTestPeer(t, "a")
	if err := p.SetScreenShare(true); err != nil {
		t.Fatal(err)
	}
	if p.video.Track().ID() != "screen" {
		t.Fatalf("video track = %s", p.video.Track().ID())
	}
	if err := p.SetScreenShare(false); err != nil {
		t.Fatal(err)
	}
	if p.video.Track().ID() != "camera" {
		t.Fatalf("video track = %s", p.video.Track().ID())
	}
}

func TestClosedPeerDropsCallbacksAndCandidates(t *testing.T) {
	p := newTestPeer(t, "a")
	p.OnStateChange(func(callclient.PeerState) {})
	p.Close()
	if p.onState != nil || p.onICE != nil {
		t.Fatal("callbacks still attached")
	}
	if err := p.AddICECandidate(json.RawMessage(`{"candidate":""}`)); err != ErrClosed {
		t.Fatalf("err = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestFactoryBuildsPeers(t *testing.T) {
	m, err := NewMedia("test")
	if err != nil {
		t.Fatal(err)
	}
	newPeer := Factory(context.Background(), webrtc.Configuration{}, m)
	var _ callclient.PeerFactory = newPeer
	peer, err := newPeer("bob")
	if err != nil {
		t.Fatal(err)
	}
	defer peer.Close()
	if peer.(*Peer).remote != "bob" {
		t.Fatal("remote not recorded")
	}
}
