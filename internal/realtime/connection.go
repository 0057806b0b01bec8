package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/harithebeast/multimodal-ai/internal/audio"
	"github.com/harithebeast/multimodal-ai/internal/transport"
)

// sttSampleRate is what the transcription stream expects on AudioIn.
const sttSampleRate = 16000

// Conn adapts one WebRTC peer to the transport contract: inbound microphone
// audio is decoded to 16 kHz PCM, inbound video packets fan out to the
// registered handler, and agent events travel over the data channel.
//
// Shutdown is signalled through done only. The audioIn and events channels
// are never closed: peer callbacks can still fire while Close runs, and a
// send racing a close would panic. Consumers select on done or watch for
// EventParticipantLeft instead of a channel close.
type Conn struct {
	cfg         Config
	peer        *Peer
	codec       *OpusCodec
	log         *slog.Logger
	dataChannel *webrtc.DataChannel

	events    chan transport.Event
	audioIn   chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu           sync.RWMutex
	connected    bool
	participants int
	videoHandler func(packet []byte, mimeType, source string)
}

func NewConn(peer *Peer, cfg Config, log *slog.Logger) (*Conn, error) {
	codec, err := NewOpusCodec()
	if err != nil {
		return nil, err
	}

	audioBuf := cfg.BufferSizes.AudioFrames
	if audioBuf <= 0 {
		audioBuf = 128
	}
	eventBuf := cfg.BufferSizes.Events
	if eventBuf <= 0 {
		eventBuf = 64
	}

	c := &Conn{
		cfg:     cfg,
		peer:    peer,
		codec:   codec,
		log:     log,
		events:  make(chan transport.Event, eventBuf),
		audioIn: make(chan []byte, audioBuf),
		done:    make(chan struct{}),
	}

	peer.OnAudio(c.handleIncomingAudio)

	peer.OnVideo(func(packet []byte, mimeType, source string) {
		c.mu.RLock()
		handler := c.videoHandler
		c.mu.RUnlock()
		if handler != nil {
			handler(packet, mimeType, source)
		}
	})

	peer.OnTrackSubscribed(func(kind, source string) {
		c.emit(transport.Event{
			Type:        transport.EventTrackSubscribed,
			TrackSource: source,
			Timestamp:   time.Now(),
		})
	})

	peer.OnStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			c.mu.Lock()
			c.connected = true
			c.participants = 1
			c.mu.Unlock()
			c.emit(transport.Event{Type: transport.EventParticipantJoined, Timestamp: time.Now()})
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected:
			c.mu.Lock()
			c.participants = 0
			c.mu.Unlock()
			c.emit(transport.Event{Type: transport.EventParticipantLeft, Timestamp: time.Now()})
			c.Close()
		}
	})

	return c, nil
}

func (c *Conn) handleIncomingAudio(opusPayload []byte) {
	pcm48, err := c.codec.Decode(opusPayload)
	if err != nil {
		c.log.Debug("opus decode failed", "error", err)
		return
	}
	pcm16 := audio.ResamplePCM16(pcm48, SampleRate, sttSampleRate)

	select {
	case c.audioIn <- audio.PCM16ToBytes(pcm16):
	case <-c.done:
	default:
		// drop under backpressure, speech recognition tolerates gaps
	}
}

func (c *Conn) SetupDataChannel(dc *webrtc.DataChannel) {
	c.dataChannel = dc

	dc.OnOpen(func() {
		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if msg.IsString {
			c.handleMessage(msg.Data)
		}
	})

	dc.OnClose(func() {
		c.Close()
	})
}

func (c *Conn) handleMessage(data []byte) {
	var base struct {
		Type  string `json:"type"`
		State string `json:"state,omitempty"`
	}
	if err := json.Unmarshal(data, &base); err != nil {
		return
	}

	switch base.Type {
	case "ice.candidate":
		var msg struct {
			Candidate webrtc.ICECandidateInit `json:"candidate"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		if err := c.peer.AddICECandidate(msg.Candidate); err != nil {
			c.log.Debug("failed to add ICE candidate", "error", err)
		}
	case "speech_start":
		c.emit(transport.Event{Type: transport.EventSpeechStart, Timestamp: time.Now()})
	case "speech_end":
		c.emit(transport.Event{Type: transport.EventSpeechEnd, Timestamp: time.Now()})
	case "user_state":
		c.emit(transport.Event{Type: transport.EventUserStateChanged, State: base.State, Timestamp: time.Now()})
	}
}

func (c *Conn) emit(ev transport.Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	default:
	}
}

func (c *Conn) Send(ctx context.Context, event transport.ServerEvent) error {
	c.mu.RLock()
	connected := c.connected
	dc := c.dataChannel
	c.mu.RUnlock()

	if !connected || dc == nil {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return dc.SendText(string(data))
}

// SendAudio encodes agent PCM into 20 ms opus frames on the outbound track.
func (c *Conn) SendAudio(ctx context.Context, chunk transport.AudioChunk) error {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	if !connected || len(chunk.Data) == 0 {
		return nil
	}

	samples := audio.BytesToPCM16(chunk.Data)
	rate := chunk.SampleRate
	if rate <= 0 {
		rate = SampleRate
	}
	if rate != SampleRate {
		samples = audio.ResamplePCM16(samples, rate, SampleRate)
	}

	for i := 0; i+FrameSize <= len(samples); i += FrameSize {
		opusData, err := c.codec.Encode(samples[i : i+FrameSize])
		if err != nil {
			c.log.Error("opus encode failed", "error", err)
			continue
		}
		if err := c.peer.WriteAudio(opusData, FrameSize); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conn) OnVideo(handler func(packet []byte, mimeType, source string)) {
	c.mu.Lock()
	c.videoHandler = handler
	c.mu.Unlock()
}

func (c *Conn) AudioIn() <-chan []byte {
	return c.audioIn
}

func (c *Conn) Events() <-chan transport.Event {
	return c.events
}

func (c *Conn) RemoteParticipants() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.participants
}

func (c *Conn) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.connected = false
		c.participants = 0
		c.mu.Unlock()

		close(c.done)

		err = c.peer.Close()
	})
	return err
}
