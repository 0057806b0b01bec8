package agentsession

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/harithebeast/multimodal-ai/internal/chat"
	"github.com/harithebeast/multimodal-ai/internal/generation"
	"github.com/harithebeast/multimodal-ai/internal/shared"
	"github.com/harithebeast/multimodal-ai/internal/synthesis"
	"github.com/harithebeast/multimodal-ai/internal/trace"
	"github.com/harithebeast/multimodal-ai/internal/transcription"
	"github.com/harithebeast/multimodal-ai/internal/transport"
	"github.com/harithebeast/multimodal-ai/internal/video"
)

type State string

const (
	StateConnecting State = "connecting"
	StateGreeting   State = "greeting"
	StateListening  State = "listening"
	StateTurn       State = "turn"
	StateExiting    State = "exiting"
)

const (
	connectTimeout = 10 * time.Second
	flushTimeout   = 5 * time.Second
)

// TranscriberFactory opens a speech-to-text stream wired to the session's
// callbacks. Each session owns one stream.
type TranscriberFactory func(cb transcription.Callbacks) (transcription.Transcriber, error)

type Config struct {
	Conn           transport.Connection
	Participant    string
	NewTranscriber TranscriberFactory
	Generator      generation.Generator
	Synthesizer    synthesis.Synthesizer
	Tracer         trace.Tracer
	Instructions   string
	// Detector overrides the runner registry, used in tests.
	Detector TurnDetector
	Logger   *slog.Logger
}

type sttEvent struct {
	event transcription.TranscriptEvent
	err   error
}

// Session drives one conversation: it pumps caller audio into transcription,
// samples shared-screen frames between turns, and on each completed user turn
// runs the generation and synthesis stages against the frame-grounded context.
type Session struct {
	id          string
	conn        transport.Connection
	participant string
	generator   generation.Generator
	tts         synthesis.Synthesizer
	tracer      trace.Tracer
	log         *slog.Logger

	chatCtx  *chat.Context
	buffer   *video.Buffer
	detector TurnDetector

	samplerMu sync.RWMutex
	sampler   *video.Sampler

	stt       transcription.Transcriber
	newSTT    TranscriberFactory
	sttEvents chan sttEvent

	stateMu sync.RWMutex
	state   State

	currentTrace trace.Trace
	currentSTT   *sttSpan
	pending      strings.Builder

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSession(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = trace.Noop{}
	}
	if cfg.Detector == nil {
		cfg.Detector = ActiveDetector()
	}

	id := shared.NewID("session")
	ctx, cancel := context.WithCancel(context.Background())

	chatCtx := chat.NewContext()
	if cfg.Instructions != "" {
		chatCtx.AppendText(chat.RoleSystem, cfg.Instructions)
	}

	buffer := video.NewBuffer()

	return &Session{
		id:          id,
		conn:        cfg.Conn,
		participant: cfg.Participant,
		generator:   cfg.Generator,
		tts:         cfg.Synthesizer,
		tracer:      cfg.Tracer,
		log:         cfg.Logger.With("component", "agent-session", "session_id", id),
		chatCtx:     chatCtx,
		buffer:      buffer,
		detector:    cfg.Detector,
		sampler:     video.NewSampler(video.SamplerConfig{Buffer: buffer, Logger: cfg.Logger}),
		newSTT:      cfg.NewTranscriber,
		sttEvents:   make(chan sttEvent, 64),
		state:       StateConnecting,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.stateMu.Lock()
	prev := s.state
	s.state = st
	s.stateMu.Unlock()
	if prev != st {
		s.log.Info("state change", "from", string(prev), "to", string(st))
	}
}

// Done is closed once the session has fully shut down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Run executes the session until the caller leaves or Close is called.
func (s *Session) Run() {
	defer close(s.done)
	defer s.shutdown()

	if !s.waitConnected() {
		s.log.Info("no remote participant, exiting without greeting")
		s.setState(StateExiting)
		return
	}

	if err := s.openTranscriber(); err != nil {
		s.log.Error("transcription unavailable", "error", err)
		s.setState(StateExiting)
		return
	}
	go s.pumpAudio()
	s.wireVideo()

	s.resetTrace()

	s.setState(StateGreeting)
	s.greet()

	s.setState(StateListening)
	s.loop()
}

// Close requests shutdown and waits for Run to finish.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}

func (s *Session) waitConnected() bool {
	deadline := time.NewTimer(connectTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for {
		if s.conn.IsConnected() && s.remoteParticipants() > 0 {
			return true
		}
		select {
		case <-s.ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-tick.C:
		}
	}
}

func (s *Session) remoteParticipants() int {
	type counter interface{ RemoteParticipants() int }
	if c, ok := s.conn.(counter); ok {
		return c.RemoteParticipants()
	}
	if s.conn.IsConnected() {
		return 1
	}
	return 0
}

func (s *Session) openTranscriber() error {
	if s.newSTT == nil {
		return shared.ErrUnavailable
	}
	stt, err := s.newSTT(transcription.Callbacks{
		OnSpeechEnd: func() {
			s.detector.OnSpeechEnd()
		},
		OnTranscript: func(event transcription.TranscriptEvent) {
			select {
			case s.sttEvents <- sttEvent{event: event}:
			case <-s.ctx.Done():
			}
		},
		OnError: func(err error) {
			select {
			case s.sttEvents <- sttEvent{err: err}:
			case <-s.ctx.Done():
			}
		},
	})
	if err != nil {
		return err
	}
	s.stt = stt

	ready, cancel := context.WithTimeout(s.ctx, connectTimeout)
	defer cancel()
	if !stt.WaitReady(ready) {
		stt.Close()
		return shared.ErrUnavailable
	}
	return nil
}

func (s *Session) pumpAudio() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case pcm, ok := <-s.conn.AudioIn():
			if !ok {
				return
			}
			if err := s.stt.SendAudio(pcm); err != nil {
				s.log.Debug("audio forward failed", "error", err)
			}
		}
	}
}

func (s *Session) wireVideo() {
	vc, ok := s.conn.(transport.VideoConnection)
	if !ok {
		return
	}
	vc.OnVideo(func(packet []byte, mimeType, source string) {
		if source != transport.SourceScreenShare {
			return
		}
		s.samplerMu.RLock()
		sampler := s.sampler
		s.samplerMu.RUnlock()
		sampler.HandleRTPPacket(packet, mimeType)
	})
}

// replaceSampler swaps in a fresh sampler for a newly subscribed screen-share
// track. Frames already captured stay in the buffer.
func (s *Session) replaceSampler() {
	s.samplerMu.Lock()
	old := s.sampler
	s.sampler = video.NewSampler(video.SamplerConfig{Buffer: s.buffer, Logger: s.log})
	s.samplerMu.Unlock()
	old.Close()
	s.log.Info("screen share track attached")
}

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			return

		case ev, ok := <-s.conn.Events():
			if !ok {
				return
			}
			switch ev.Type {
			case transport.EventUserStateChanged:
				s.log.Info("user state changed", "state", ev.State)
			case transport.EventTrackSubscribed:
				if ev.TrackSource == transport.SourceScreenShare {
					s.replaceSampler()
				}
			case transport.EventSpeechStart:
				s.log.Debug("speech started")
			case transport.EventSpeechEnd:
				s.detector.OnSpeechEnd()
			case transport.EventParticipantLeft, transport.EventDisconnected:
				s.log.Info("participant gone", "event", string(ev.Type))
				return
			}

		case ev := <-s.sttEvents:
			s.handleSTTEvent(ev)

		case <-s.detector.C():
			s.completeTurn()
		}
	}
}

func (s *Session) handleSTTEvent(ev sttEvent) {
	if ev.err != nil {
		s.log.Error("transcription error", "error", ev.err)
		if s.currentSTT != nil {
			s.currentSTT.fail(ev.err)
			s.currentSTT = nil
		}
		return
	}

	event := ev.event
	s.sendTranscript(event.Text, !event.IsPartial)
	if event.IsPartial {
		return
	}

	if s.currentSTT == nil {
		s.currentSTT = s.openSTTSpan(s.ensureTrace())
	}
	s.currentSTT.observe(s, event)

	if s.pending.Len() > 0 {
		s.pending.WriteByte(' ')
	}
	s.pending.WriteString(event.Text)
	s.detector.OnTranscript(time.Now())
}

// completeTurn runs the generation and synthesis stages for the accumulated
// transcript. The trace is reset here so each turn gets its own trace.
func (s *Session) completeTurn() {
	text := strings.TrimSpace(s.pending.String())
	s.pending.Reset()
	s.detector.Reset()
	if text == "" {
		return
	}

	if s.currentSTT != nil {
		s.currentSTT.end(text)
		s.currentSTT = nil
	}
	tr := s.resetTrace()
	s.log.Info("user turn completed", "trace_id", tr.TraceID(), "chars", len(text))

	s.setState(StateTurn)
	defer s.setState(StateListening)

	frames := video.Select(s.buffer)
	s.log.Info("turn context", "frames", len(frames))

	s.chatCtx.AppendText(chat.RoleUser, text)
	assembled := assembleContext(s.chatCtx, frames, s.log)

	reply, err := s.llmNode(s.ctx, tr, assembled)
	if err != nil {
		s.log.Error("generation failed", "error", err)
		s.sendError("I ran into a problem answering that. Please try again.")
		return
	}
	s.chatCtx.AppendText(chat.RoleAssistant, reply)

	if err := s.ttsNode(s.ctx, tr, reply); err != nil {
		s.log.Error("synthesis failed", "error", err)
	}
}

// greet speaks a short self-introduction before the first user turn.
func (s *Session) greet() {
	tr := s.ensureTrace()

	text := degradedGreeting
	if s.generator != nil {
		assembled := s.chatCtx.Copy()
		assembled.AppendText(chat.RoleSystem, greetingInstruction)
		reply, err := s.llmNode(s.ctx, tr, assembled)
		if err != nil {
			s.log.Error("greeting generation failed", "error", err)
		} else {
			text = reply
		}
	} else {
		s.sendResponse(s.ctx, text, false)
	}

	s.chatCtx.AppendText(chat.RoleAssistant, text)
	if err := s.conn.Send(s.ctx, transport.ServerEvent{
		Type:    transport.ServerEventGreeting,
		Payload: transport.ResponsePayload{Text: text},
	}); err != nil {
		s.log.Debug("greeting send failed", "error", err)
	}
	if err := s.ttsNode(s.ctx, tr, text); err != nil {
		s.log.Error("greeting synthesis failed", "error", err)
	}
}

// farewell speaks a goodbye on the way out. Best effort, and skipped entirely
// when no generator is available.
func (s *Session) farewell() {
	if s.generator == nil || !s.conn.IsConnected() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	tr := s.ensureTrace()
	assembled := s.chatCtx.Copy()
	assembled.AppendText(chat.RoleSystem, farewellInstruction)
	reply, err := s.llmNode(ctx, tr, assembled)
	if err != nil {
		s.log.Debug("farewell generation failed", "error", err)
		return
	}
	if err := s.ttsNode(ctx, tr, reply); err != nil {
		s.log.Debug("farewell synthesis failed", "error", err)
	}
}

func (s *Session) shutdown() {
	s.setState(StateExiting)

	s.farewell()

	s.samplerMu.Lock()
	s.sampler.Close()
	s.samplerMu.Unlock()
	s.detector.Close()

	if s.currentSTT != nil {
		s.currentSTT.end(s.pending.String())
		s.currentSTT = nil
	}
	if s.currentTrace != nil {
		s.currentTrace.End()
		s.currentTrace = nil
	}
	flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := s.tracer.Flush(flushCtx); err != nil {
		s.log.Warn("trace flush failed", "error", err)
	}

	if s.stt != nil {
		s.stt.Close()
	}
	if err := s.conn.Close(); err != nil {
		s.log.Debug("connection close", "error", err)
	}
	s.cancel()
	s.log.Info("session ended")
}

func (s *Session) ensureTrace() trace.Trace {
	if s.currentTrace == nil {
		s.currentTrace = s.startTrace()
	}
	return s.currentTrace
}

func (s *Session) resetTrace() trace.Trace {
	if s.currentTrace != nil {
		s.currentTrace.End()
	}
	s.currentTrace = s.startTrace()
	return s.currentTrace
}

func (s *Session) startTrace() trace.Trace {
	return s.tracer.StartTrace("video_agent", map[string]any{
		"session_id":  s.id,
		"participant": s.participant,
	})
}

func (s *Session) sendTranscript(text string, final bool) {
	err := s.conn.Send(s.ctx, transport.ServerEvent{
		Type:    transport.ServerEventTranscript,
		Payload: transport.TranscriptPayload{Text: text, IsFinal: final},
	})
	if err != nil {
		s.log.Debug("transcript send failed", "error", err)
	}
}

func (s *Session) sendError(message string) {
	err := s.conn.Send(s.ctx, transport.ServerEvent{
		Type:    transport.ServerEventError,
		Payload: map[string]string{"message": message},
	})
	if err != nil {
		s.log.Debug("error send failed", "error", err)
	}
}
