package rtc

import (
	"context"
	"sync"

	"github.com/dkeye/convo/internal/domain"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TrackStats counts what arrived on one remote track.
type TrackStats struct {
	Packets uint64
	Bytes   uint64
	Lost    uint64
	lastSeq uint16
}

// maxSeqGap bounds what counts as loss; larger jumps are a sender reset.
const maxSeqGap = 1000

func (st *TrackStats) observe(pkt *rtp.Packet) {
	if st.Packets > 0 {
		if gap := pkt.SequenceNumber - st.lastSeq - 1; gap < maxSeqGap {
			st.Lost += uint64(gap)
		}
	}
	st.lastSeq = pkt.SequenceNumber
	st.Packets++
	st.Bytes += uint64(len(pkt.Payload))
}

// sink drains remote tracks. Nothing is rendered; packets are counted
// so the client can report that media flows.
type sink struct {
	mu     sync.Mutex
	tracks map[string]*TrackStats
}

func newSink() *sink {
	return &sink{tracks: make(map[string]*TrackStats)}
}

func (s *sink) drain(ctx context.Context, remote domain.Identity, track *webrtc.TrackRemote) {
	logger := log.With().
		Str("module", "rtc").
		Str("peer", string(remote)).
		Str("kind", track.Kind().String()).
		Str("track_id", track.ID()).
		Logger()
	st := &TrackStats{}
	s.mu.Lock()
	s.tracks[track.ID()] = st
	s.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			s.report(&logger, track.ID())
			return
		default:
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			logger.Debug().Err(err).Msg("remote track ended")
			s.report(&logger, track.ID())
			return
		}
		s.mu.Lock()
		st.observe(pkt)
		s.mu.Unlock()
	}
}

func (s *sink) report(logger *zerolog.Logger, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.tracks[id]; ok {
		logger.Info().Uint64("packets", st.Packets).Uint64("bytes", st.Bytes).Uint64("lost", st.Lost).Msg("remote track stats")
	}
}

func (s *sink) snapshot() map[string]TrackStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]TrackStats, len(s.tracks))
	for id, st := range s.tracks {
		out[id] = *st
	}
	return out
}
