package realtime

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/harithebeast/multimodal-ai/internal/transport"
)

// Peer owns one pion peer connection: an outbound opus track for agent
// speech, inbound audio forwarded as opus payloads, and inbound video
// forwarded as marshaled RTP packets tagged with their publication source.
type Peer struct {
	pc         *webrtc.PeerConnection
	audioTrack *webrtc.TrackLocalStaticRTP
	log        *slog.Logger

	mu        sync.RWMutex
	seq       uint16
	timestamp uint32
	ssrc      uint32
	sources   map[string]string
	onAudio   func(payload []byte)
	onVideo   func(packet []byte, mimeType, source string)
	onTrack   func(kind, source string)
	onState   func(state webrtc.PeerConnectionState)
}

func NewPeer(pc *webrtc.PeerConnection, log *slog.Logger) (*Peer, error) {
	var ssrcBytes [4]byte
	if _, err := rand.Read(ssrcBytes[:]); err != nil {
		return nil, err
	}

	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		"agent-audio",
	)
	if err != nil {
		return nil, err
	}
	if _, err := pc.AddTrack(track); err != nil {
		return nil, err
	}

	p := &Peer{
		pc:         pc,
		audioTrack: track,
		log:        log,
		ssrc:       binary.BigEndian.Uint32(ssrcBytes[:]),
		sources:    make(map[string]string),
	}

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		codec := remote.Codec()
		source := p.trackSource(remote)
		p.log.Info("remote track subscribed",
			"kind", remote.Kind().String(), "codec", codec.MimeType, "source", source)

		p.mu.RLock()
		onTrack := p.onTrack
		p.mu.RUnlock()
		if onTrack != nil {
			onTrack(remote.Kind().String(), source)
		}

		switch remote.Kind() {
		case webrtc.RTPCodecTypeAudio:
			go p.readAudio(remote)
		case webrtc.RTPCodecTypeVideo:
			go p.readVideo(remote, codec.MimeType, source)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.mu.RLock()
		onState := p.onState
		p.mu.RUnlock()
		if onState != nil {
			onState(state)
		}
	})

	return p, nil
}

// SetTrackSources records the stream-id to source mapping announced over
// signaling. Without an entry, video defaults to screen share and audio to
// the microphone.
func (p *Peer) SetTrackSources(sources map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, src := range sources {
		p.sources[id] = src
	}
}

func (p *Peer) trackSource(remote *webrtc.TrackRemote) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if src, ok := p.sources[remote.StreamID()]; ok {
		return src
	}
	if remote.Kind() == webrtc.RTPCodecTypeAudio {
		return transport.SourceMicrophone
	}
	return transport.SourceScreenShare
}

func (p *Peer) readAudio(remote *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		n, _, err := remote.Read(buf)
		if err != nil {
			return
		}

		p.mu.RLock()
		cb := p.onAudio
		p.mu.RUnlock()
		if cb == nil {
			continue
		}

		pkt := &rtp.Packet{}
		if err := pkt.Unmarshal(buf[:n]); err == nil && len(pkt.Payload) > 0 {
			cb(pkt.Payload)
		}
	}
}

func (p *Peer) readVideo(remote *webrtc.TrackRemote, mimeType, source string) {
	buf := make([]byte, 1500)
	for {
		n, _, err := remote.Read(buf)
		if err != nil {
			return
		}

		p.mu.RLock()
		cb := p.onVideo
		p.mu.RUnlock()
		if cb == nil {
			continue
		}

		packet := make([]byte, n)
		copy(packet, buf[:n])
		cb(packet, mimeType, source)
	}
}

func (p *Peer) SetOffer(sdp string) error {
	return p.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  sdp,
	})
}

func (p *Peer) CreateAnswer() (string, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", err
	}
	return answer.SDP, nil
}

// WriteAudio sends one opus packet on the agent track, advancing the RTP
// clock by the packet's sample count.
func (p *Peer) WriteAudio(opusData []byte, samples int) error {
	p.mu.Lock()
	seq := p.seq
	ts := p.timestamp
	p.seq++
	p.timestamp += uint32(samples)
	p.mu.Unlock()

	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    111,
			SequenceNumber: seq,
			Timestamp:      ts,
			SSRC:           p.ssrc,
		},
		Payload: opusData,
	}

	data, err := pkt.Marshal()
	if err != nil {
		return err
	}
	_, err = p.audioTrack.Write(data)
	return err
}

func (p *Peer) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(candidate)
}

func (p *Peer) OnAudio(fn func([]byte)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onAudio = fn
}

func (p *Peer) OnVideo(fn func(packet []byte, mimeType, source string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onVideo = fn
}

func (p *Peer) OnTrackSubscribed(fn func(kind, source string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTrack = fn
}

func (p *Peer) OnStateChange(fn func(webrtc.PeerConnectionState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onState = fn
}

func (p *Peer) OnICECandidate(fn func(*webrtc.ICECandidate)) {
	p.pc.OnICECandidate(fn)
}

func (p *Peer) OnDataChannel(fn func(*webrtc.DataChannel)) {
	p.pc.OnDataChannel(fn)
}

func (p *Peer) Close() error {
	return p.pc.Close()
}
