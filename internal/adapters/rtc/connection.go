package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/convo/internal/callclient"
	"github.com/dkeye/convo/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrClosed = errors.New("peer closed")

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// Peer is one pion PeerConnection to one remote client. Candidates
// that arrive before the remote description are held until it is set.
type Peer struct {
	pc     *webrtc.PeerConnection
	remote domain.Identity
	media  *Media
	video  *webrtc.RTPSender
	sink   *sink
	cancel context.CancelFunc

	mu        sync.Mutex
	closed    bool
	remoteSet bool
	pending   []webrtc.ICECandidateInit
	onICE     func(json.RawMessage)
	onState   func(callclient.PeerState)
}

func NewPeer(ctx context.Context, cfg webrtc.Configuration, m *Media, remote domain.Identity) (*Peer, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &Peer{pc: pc, remote: remote, media: m, sink: newSink(), cancel: cancel}

	if m != nil {
		if _, err := p.addTrack(m.Audio); err != nil {
			p.Close()
			return nil, err
		}
		if p.video, err = p.addTrack(m.Camera); err != nil {
			p.Close()
			return nil, err
		}
	}

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		data, err := json.Marshal(cand.ToJSON())
		if err != nil {
			return
		}
		p.mu.Lock()
		fn := p.onICE
		p.mu.Unlock()
		if fn != nil {
			fn(data)
		}
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("peer", string(remote)).Str("peer_connection_state", s.String()).Msg("Peer state")
		var st callclient.PeerState
		switch s {
		case webrtc.PeerConnectionStateConnected:
			st = callclient.PeerConnected
		case webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed:
			st = callclient.PeerFailed
		default:
			return
		}
		p.mu.Lock()
		fn := p.onState
		p.mu.Unlock()
		if fn != nil {
			fn(st)
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("peer", string(remote)).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		go p.sink.drain(ctx, remote, track)
	})

	return p, nil
}

// Factory builds peers that share one local media source.
func Factory(ctx context.Context, cfg webrtc.Configuration, m *Media) callclient.PeerFactory {
	return func(remote domain.Identity) (callclient.Peer, error) {
		return NewPeer(ctx, cfg, m, remote)
	}
}

func (p *Peer) addTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error) {
	sender, err := p.pc.AddTrack(track)
	if err != nil {
		return nil, fmt.Errorf("add %s track: %w", track.ID(), err)
	}
	// RTCP has to be read for interceptors to run.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return sender, nil
}

func (p *Peer) CreateOffer() (string, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return "", err
	}
	return offer.SDP, nil
}

func (p *Peer) AcceptOffer(sdp string) (string, error) {
	if err := p.setRemote(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		return "", err
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", err
	}
	return answer.SDP, nil
}

func (p *Peer) ApplyAnswer(sdp string) error {
	return p.setRemote(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
}

func (p *Peer) setRemote(desc webrtc.SessionDescription) error {
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return err
	}
	p.mu.Lock()
	p.remoteSet = true
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()
	for _, c := range pending {
		if err := p.pc.AddICECandidate(c); err != nil {
			log.Warn().Err(err).Str("module", "rtc").Str("peer", string(p.remote)).Msg("buffered ICE candidate")
		}
	}
	return nil
}

func (p *Peer) AddICECandidate(raw json.RawMessage) error {
	var c webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &c); err != nil {
		return fmt.Errorf("decode candidate: %w", err)
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if !p.remoteSet {
		p.pending = append(p.pending, c)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.pc.AddICECandidate(c)
}

func (p *Peer) OnICECandidate(fn func(json.RawMessage)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onICE = fn
}

func (p *Peer) OnStateChange(fn func(callclient.PeerState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onState = fn
}

// SetScreenShare swaps the outgoing video track in place.
func (p *Peer) SetScreenShare(on bool) error {
	if p.video == nil {
		return errors.New("no outgoing video")
	}
	track := p.media.Camera
	if on {
		track = p.media.Screen
	}
	if err := p.video.ReplaceTrack(track); err != nil {
		return fmt.Errorf("replace video: %w", err)
	}
	log.Info().Str("module", "rtc").Str("peer", string(p.remote)).Bool("screen", on).Msg("video source switched")
	return nil
}

// Stats returns per-track counters for media received from the peer.
func (p *Peer) Stats() map[string]TrackStats {
	return p.sink.snapshot()
}

// Close detaches callbacks before closing so no late state change
// reaches the session.
func (p *Peer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.onICE, p.onState = nil, nil
	p.mu.Unlock()

	p.cancel()
	if err := p.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("peer", string(p.remote)).Msg("close error")
		return err
	}
	var packets, lost uint64
	for _, st := range p.Stats() {
		packets += st.Packets
		lost += st.Lost
	}
	log.Info().Str("module", "rtc").Str("peer", string(p.remote)).Uint64("packets", packets).Uint64("lost", lost).Msg("closed")
	return nil
}
