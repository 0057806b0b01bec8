package video

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4/pkg/media/samplebuilder"
)

const defaultSampleRate = time.Second

// Sampler consumes RTP packets from one screen-share track, reassembles
// complete VP8 samples, and appends at most one decoded frame per second to
// the buffer. It is the buffer's sole writer for the life of the track.
type Sampler struct {
	buffer     *Buffer
	decoder    Decoder
	sampleRate time.Duration
	log        *slog.Logger

	mu            sync.Mutex
	sampleBuilder *samplebuilder.SampleBuilder
	mimeType      string
	lastAppend    time.Time
	frameCount    int
	closed        bool
}

type SamplerConfig struct {
	Buffer     *Buffer
	Decoder    Decoder
	SampleRate time.Duration
	Logger     *slog.Logger
}

func NewSampler(cfg SamplerConfig) *Sampler {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Decoder == nil {
		cfg.Decoder = NewVP8Decoder()
	}

	return &Sampler{
		buffer:     cfg.Buffer,
		decoder:    cfg.Decoder,
		sampleRate: cfg.SampleRate,
		log:        cfg.Logger.With("component", "frame-sampler"),
	}
}

// HandleRTPPacket is invoked by the transport for every marshaled video RTP
// packet on the subscribed track.
func (s *Sampler) HandleRTPPacket(packet []byte, mimeType string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if s.sampleBuilder == nil || s.mimeType != mimeType {
		s.mimeType = mimeType
		s.sampleBuilder = s.createSampleBuilder(mimeType)
		if s.sampleBuilder == nil {
			return
		}
	}

	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(packet); err != nil {
		s.log.Debug("drop malformed rtp packet", "error", err)
		return
	}
	s.sampleBuilder.Push(pkt)

	for {
		sample := s.sampleBuilder.Pop()
		if sample == nil {
			return
		}
		s.ingest(sample.Data, mimeType, time.Now())
	}
}

// ingest applies the one-frame-per-second rule, then decodes and appends.
// Caller holds the mutex.
func (s *Sampler) ingest(sample []byte, mimeType string, now time.Time) bool {
	if !s.lastAppend.IsZero() && now.Sub(s.lastAppend) < s.sampleRate {
		return false
	}

	img, err := s.decoder.Decode(sample, mimeType)
	if err != nil {
		s.log.Debug("frame decode failed", "error", err)
		return false
	}

	bounds := img.Bounds()
	s.buffer.Append(Frame{
		Image:     img,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Timestamp: now,
	})
	s.lastAppend = now
	s.frameCount++
	s.log.Info("captured frame", "count", s.frameCount, "width", bounds.Dx(), "height", bounds.Dy())
	return true
}

func (s *Sampler) createSampleBuilder(mimeType string) *samplebuilder.SampleBuilder {
	switch mimeType {
	case "video/VP8":
		return samplebuilder.New(64, &codecs.VP8Packet{}, 90000)
	case "video/VP9":
		return samplebuilder.New(64, &codecs.VP9Packet{}, 90000)
	default:
		s.log.Warn("unsupported video codec", "mime_type", mimeType)
		return nil
	}
}

func (s *Sampler) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameCount
}

// Close stops consumption. Safe to call multiple times or when no packet was
// ever received; the buffer is left intact for the next turn.
func (s *Sampler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.log.Info("frame capture ended", "captured", s.frameCount)
	if s.decoder != nil {
		s.decoder.Close()
	}
}
