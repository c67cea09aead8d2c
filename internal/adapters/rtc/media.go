package rtc

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// opusSilence is a single 20ms Opus frame of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// Media is the local media source: one audio track and two video
// sources, camera and screen, of which one is sent at a time. Tracks
// are shared by every peer connection of the client.
type Media struct {
	Audio  *webrtc.TrackLocalStaticSample
	Camera *webrtc.TrackLocalStaticSample
	Screen *webrtc.TrackLocalStaticSample

	muted atomic.Bool
}

func NewMedia(stream string) (*Media, error) {
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}, "audio", stream)
	if err != nil {
		return nil, fmt.Errorf("audio track: %w", err)
	}
	camera, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}, "camera", stream)
	if err != nil {
		return nil, fmt.Errorf("camera track: %w", err)
	}
	screen, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}, "screen", stream)
	if err != nil {
		return nil, fmt.Errorf("screen track: %w", err)
	}
	return &Media{Audio: audio, Camera: camera, Screen: screen}, nil
}

func (m *Media) SetMuted(muted bool) { m.muted.Store(muted) }
func (m *Media) Muted() bool         { return m.muted.Load() }

// Run keeps the audio track alive with silence until ctx is done. A
// headless client has no capture device.
func (m *Media) Run(ctx context.Context) error {
	const frame = 20 * time.Millisecond
	ticker := time.NewTicker(frame)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if m.muted.Load() {
				continue
			}
			if err := m.Audio.WriteSample(media.Sample{Data: opusSilence, Duration: frame}); err != nil {
				return fmt.Errorf("audio sample: %w", err)
			}
		}
	}
}
