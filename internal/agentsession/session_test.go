package agentsession

import (
	"context"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/harithebeast/multimodal-ai/internal/chat"
	"github.com/harithebeast/multimodal-ai/internal/generation"
	"github.com/harithebeast/multimodal-ai/internal/synthesis"
	"github.com/harithebeast/multimodal-ai/internal/trace"
	"github.com/harithebeast/multimodal-ai/internal/transcription"
	"github.com/harithebeast/multimodal-ai/internal/transport"
	"github.com/harithebeast/multimodal-ai/internal/video"
)

type fakeConn struct {
	mu        sync.Mutex
	connected bool
	remotes   int
	events    chan transport.Event
	audioIn   chan []byte
	sent      []transport.ServerEvent
	audio     []transport.AudioChunk
	closed    bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		connected: true,
		remotes:   1,
		events:    make(chan transport.Event, 16),
		audioIn:   make(chan []byte, 16),
	}
}

func (c *fakeConn) Send(_ context.Context, event transport.ServerEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, event)
	return nil
}

func (c *fakeConn) SendAudio(_ context.Context, chunk transport.AudioChunk) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audio = append(c.audio, chunk)
	return nil
}

func (c *fakeConn) AudioIn() <-chan []byte         { return c.audioIn }
func (c *fakeConn) Events() <-chan transport.Event { return c.events }

func (c *fakeConn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeConn) RemoteParticipants() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remotes
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) setConnected(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = v
	if !v {
		c.remotes = 0
	}
}

func (c *fakeConn) sentEvents() []transport.ServerEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]transport.ServerEvent, len(c.sent))
	copy(out, c.sent)
	return out
}

type fakeTranscriber struct {
	mu     sync.Mutex
	pcm    [][]byte
	closed bool
}

func (f *fakeTranscriber) SendAudio(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pcm = append(f.pcm, pcm)
	return nil
}

func (f *fakeTranscriber) WaitReady(context.Context) bool { return true }
func (f *fakeTranscriber) IsConnected() bool              { return true }

func (f *fakeTranscriber) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	calls   [][]chat.Message
	replies []string
	failAt  int
}

func (g *fakeGenerator) Stream(_ context.Context, messages []chat.Message) (<-chan generation.Chunk, <-chan error) {
	g.mu.Lock()
	g.calls = append(g.calls, messages)
	call := len(g.calls)
	var reply string
	if len(g.replies) > 0 {
		reply = g.replies[(call-1)%len(g.replies)]
	}
	fail := g.failAt != 0 && call == g.failAt
	g.mu.Unlock()

	chunks := make(chan generation.Chunk, 4)
	errs := make(chan error, 1)
	if fail {
		errs <- fmt.Errorf("model offline")
	} else {
		half := len(reply) / 2
		chunks <- generation.Chunk{Delta: reply[:half]}
		chunks <- generation.Chunk{Delta: reply[half:]}
	}
	close(chunks)
	close(errs)
	return chunks, errs
}

func (g *fakeGenerator) RenderMessages(messages []chat.Message) (any, error) {
	return messages, nil
}

func (g *fakeGenerator) Model() string { return "fake-model" }
func (g *fakeGenerator) Close() error  { return nil }

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *fakeGenerator) call(i int) []chat.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[i]
}

type fakeSynth struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeSynth) Synthesize(_ context.Context, req synthesis.Request, cb synthesis.Callbacks) error {
	f.mu.Lock()
	f.texts = append(f.texts, req.Text)
	f.mu.Unlock()
	if cb.OnReady != nil {
		cb.OnReady(48000)
	}
	if cb.OnAudio != nil {
		cb.OnAudio(make([]byte, 960))
	}
	if cb.OnDone != nil {
		cb.OnDone()
	}
	return nil
}

func (f *fakeSynth) Close() error { return nil }

func (f *fakeSynth) spoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.texts))
	copy(out, f.texts)
	return out
}

type recordingSpan struct {
	name    string
	model   string
	mu      sync.Mutex
	updates int
	ended   bool
}

func (s *recordingSpan) Update(...trace.UpdateOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
}

func (s *recordingSpan) End(...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
}

type recordingTrace struct {
	id    string
	mu    sync.Mutex
	spans []*recordingSpan
	ended bool
}

func (t *recordingTrace) TraceID() string { return t.id }

func (t *recordingTrace) Span(name string, _ map[string]any) trace.Span {
	span := &recordingSpan{name: name}
	t.mu.Lock()
	t.spans = append(t.spans, span)
	t.mu.Unlock()
	return span
}

func (t *recordingTrace) Generation(name, model string, _ any) trace.Span {
	span := &recordingSpan{name: name, model: model}
	t.mu.Lock()
	t.spans = append(t.spans, span)
	t.mu.Unlock()
	return span
}

func (t *recordingTrace) End() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ended = true
}

func (t *recordingTrace) spanNames() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, len(t.spans))
	for i, s := range t.spans {
		names[i] = s.name
	}
	return names
}

type recordingTracer struct {
	mu      sync.Mutex
	traces  []*recordingTrace
	flushes int
}

func (r *recordingTracer) StartTrace(string, map[string]any) trace.Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	tr := &recordingTrace{id: fmt.Sprintf("trace-%d", len(r.traces)+1)}
	r.traces = append(r.traces, tr)
	return tr
}

func (r *recordingTracer) Flush(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
	return nil
}

func (r *recordingTracer) traceCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.traces)
}

type sessionHarness struct {
	session *Session
	conn    *fakeConn
	gen     *fakeGenerator
	synth   *fakeSynth
	tracer  *recordingTracer
	stt     transcription.Callbacks
}

func startSession(t *testing.T, gen *fakeGenerator) *sessionHarness {
	t.Helper()

	conn := newFakeConn()
	synth := &fakeSynth{}
	tracer := &recordingTracer{}
	cbCh := make(chan transcription.Callbacks, 1)

	var generator generation.Generator
	if gen != nil {
		generator = gen
	}

	session := NewSession(Config{
		Conn:        conn,
		Participant: "participant",
		NewTranscriber: func(cb transcription.Callbacks) (transcription.Transcriber, error) {
			cbCh <- cb
			return &fakeTranscriber{}, nil
		},
		Generator:    generator,
		Synthesizer:  synth,
		Tracer:       tracer,
		Instructions: "You are a hardware upgrade assistant.",
		Detector:     NewSpeechEndDetector(),
	})
	go session.Run()

	var cb transcription.Callbacks
	select {
	case cb = <-cbCh:
	case <-time.After(2 * time.Second):
		t.Fatal("transcriber never opened")
	}

	return &sessionHarness{session: session, conn: conn, gen: gen, synth: synth, tracer: tracer, stt: cb}
}

func (h *sessionHarness) stop(t *testing.T) {
	t.Helper()
	h.conn.setConnected(false)
	close(h.conn.events)
	select {
	case <-h.session.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not shut down")
	}
}

func (h *sessionHarness) speak(text string) {
	h.stt.OnTranscript(transcription.TranscriptEvent{Text: text, Confidence: 0.98})
	h.stt.OnSpeechEnd()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSession_ExitsWithoutGreetingWhenNoParticipant(t *testing.T) {
	conn := newFakeConn()
	conn.setConnected(false)
	synth := &fakeSynth{}

	session := NewSession(Config{
		Conn:        conn,
		Synthesizer: synth,
		Detector:    NewSpeechEndDetector(),
		NewTranscriber: func(cb transcription.Callbacks) (transcription.Transcriber, error) {
			return &fakeTranscriber{}, nil
		},
	})
	go session.Run()
	time.Sleep(50 * time.Millisecond)
	session.Close()

	if got := len(synth.spoken()); got != 0 {
		t.Fatalf("expected no speech, got %d utterances", got)
	}
	for _, ev := range conn.sentEvents() {
		if ev.Type == transport.ServerEventGreeting {
			t.Fatal("greeting sent despite no remote participant")
		}
	}
	if session.State() != StateExiting {
		t.Fatalf("expected exiting state, got %s", session.State())
	}
}

func TestSession_DegradedGreetingWithoutGenerator(t *testing.T) {
	h := startSession(t, nil)

	waitFor(t, "greeting speech", func() bool { return len(h.synth.spoken()) >= 1 })
	if got := h.synth.spoken()[0]; got != degradedGreeting {
		t.Fatalf("unexpected greeting: %q", got)
	}

	var greeted bool
	for _, ev := range h.conn.sentEvents() {
		if ev.Type == transport.ServerEventGreeting {
			greeted = true
		}
	}
	if !greeted {
		t.Fatal("greeting event never sent")
	}

	h.stop(t)
}

func TestSession_TurnPipelineWithoutScreenShare(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"Hello! I can help with upgrades.", "Open the back panel first."}}
	h := startSession(t, gen)

	waitFor(t, "greeting", func() bool { return len(h.synth.spoken()) == 1 })

	h.speak("How do I upgrade my RAM?")
	waitFor(t, "turn reply", func() bool { return len(h.synth.spoken()) == 2 })

	if got := h.synth.spoken()[1]; got != "Open the back panel first." {
		t.Fatalf("unexpected spoken reply: %q", got)
	}

	// second generator call carries the turn context
	messages := gen.call(1)
	last := messages[len(messages)-1]
	if last.Role != chat.RoleSystem {
		t.Fatalf("expected trailing system notice, got role %s", last.Role)
	}
	if text, ok := last.Parts[0].(chat.TextPart); !ok || text.Text != noScreenShareNotice {
		t.Fatalf("expected no-screen-share notice, got %+v", last.Parts[0])
	}
	user := messages[len(messages)-2]
	if user.Role != chat.RoleUser {
		t.Fatalf("expected user message before notice, got role %s", user.Role)
	}

	waitFor(t, "listening state", func() bool { return h.session.State() == StateListening })
	h.stop(t)
}

func TestSession_TurnInjectsSelectedFrames(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"Hi.", "That is a DDR4 module."}}
	h := startSession(t, gen)
	waitFor(t, "greeting", func() bool { return len(h.synth.spoken()) == 1 })

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < 3; i++ {
		h.session.buffer.Append(video.Frame{Image: img, Width: 8, Height: 8, Timestamp: time.Now()})
	}

	h.speak("What memory is this?")
	waitFor(t, "turn reply", func() bool { return len(h.synth.spoken()) == 2 })

	messages := gen.call(1)
	var frameTexts []string
	var images int
	for _, m := range messages {
		if m.Role != chat.RoleUser || len(m.Parts) != 2 {
			continue
		}
		text, ok := m.Parts[0].(chat.TextPart)
		if !ok {
			continue
		}
		blob, ok := m.Parts[1].(chat.ImagePart)
		if !ok || blob.MIMEType != "image/jpeg" || len(blob.Data) == 0 {
			t.Fatalf("expected jpeg image part, got %+v", m.Parts[1])
		}
		frameTexts = append(frameTexts, text.Text)
		images++
	}
	if images != 2 {
		t.Fatalf("expected 2 frame messages for a 3-frame buffer, got %d", images)
	}
	if frameTexts[0] != "Most Recent view of user during speech:" {
		t.Fatalf("expected most recent frame first, got %q", frameTexts[0])
	}
	if frameTexts[1] != "First view of user during speech:" {
		t.Fatalf("expected first frame second, got %q", frameTexts[1])
	}

	if h.session.buffer.Len() != 0 {
		t.Fatalf("buffer should be drained after the turn, has %d", h.session.buffer.Len())
	}

	h.stop(t)
}

func TestSession_FailedTurnReturnsToListening(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"Hi.", "unused"}, failAt: 2}
	h := startSession(t, gen)
	waitFor(t, "greeting", func() bool { return len(h.synth.spoken()) == 1 })

	h.speak("Will this break?")
	waitFor(t, "error event", func() bool {
		for _, ev := range h.conn.sentEvents() {
			if ev.Type == transport.ServerEventError {
				return true
			}
		}
		return false
	})

	waitFor(t, "listening state", func() bool { return h.session.State() == StateListening })
	if got := len(h.synth.spoken()); got != 1 {
		t.Fatalf("failed turn must not reach synthesis, spoke %d times", got)
	}

	// the next turn still works
	h.speak("Try again")
	waitFor(t, "recovered reply", func() bool { return len(h.synth.spoken()) == 2 })

	h.stop(t)
}

func TestSession_EmptyTurnIgnored(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"Hi."}}
	h := startSession(t, gen)
	waitFor(t, "greeting", func() bool { return len(h.synth.spoken()) == 1 })

	h.stt.OnSpeechEnd()
	time.Sleep(100 * time.Millisecond)

	if got := gen.callCount(); got != 1 {
		t.Fatalf("speech end without transcript must not trigger a turn, got %d calls", got)
	}
	h.stop(t)
}

func TestSession_TraceResetPerTurn(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"Hi.", "Step one.", "Step two."}}
	h := startSession(t, gen)
	waitFor(t, "greeting", func() bool { return len(h.synth.spoken()) == 1 })

	h.speak("First question")
	waitFor(t, "first reply", func() bool { return len(h.synth.spoken()) == 2 })
	h.speak("Second question")
	waitFor(t, "second reply", func() bool { return len(h.synth.spoken()) == 3 })

	h.stop(t)

	h.tracer.mu.Lock()
	defer h.tracer.mu.Unlock()
	if len(h.tracer.traces) != 3 {
		t.Fatalf("expected a trace per greeting and turn, got %d", len(h.tracer.traces))
	}
	for i, tr := range h.tracer.traces {
		if !tr.ended {
			t.Errorf("trace %d never ended", i+1)
		}
		for _, span := range tr.spans {
			if !span.ended {
				t.Errorf("span %s on trace %d never ended", span.name, i+1)
			}
		}
	}
	if h.tracer.flushes == 0 {
		t.Error("tracer never flushed on shutdown")
	}

	turnSpans := h.tracer.traces[1].spanNames()
	wantLLM, wantTTS := false, false
	for _, name := range turnSpans {
		if name == "llm_generation" {
			wantLLM = true
		}
		if name == "tts_node" {
			wantTTS = true
		}
	}
	if !wantLLM || !wantTTS {
		t.Fatalf("turn trace missing pipeline spans: %v", turnSpans)
	}
}

func TestSession_ScreenShareResubscribeKeepsBuffer(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"Hi."}}
	h := startSession(t, gen)
	waitFor(t, "greeting", func() bool { return len(h.synth.spoken()) == 1 })

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	h.session.buffer.Append(video.Frame{Image: img, Width: 4, Height: 4, Timestamp: time.Now()})

	before := h.session.sampler
	h.conn.events <- transport.Event{Type: transport.EventTrackSubscribed, TrackSource: transport.SourceScreenShare}
	waitFor(t, "sampler swap", func() bool {
		h.session.samplerMu.RLock()
		defer h.session.samplerMu.RUnlock()
		return h.session.sampler != before
	})

	if h.session.buffer.Len() != 1 {
		t.Fatalf("buffer must survive a track resubscribe, has %d frames", h.session.buffer.Len())
	}
	h.stop(t)
}

func TestSession_AudioPumpForwardsToTranscriber(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"Hi."}}

	conn := newFakeConn()
	synth := &fakeSynth{}
	transcriber := &fakeTranscriber{}
	session := NewSession(Config{
		Conn:        conn,
		Generator:   gen,
		Synthesizer: synth,
		Detector:    NewSpeechEndDetector(),
		NewTranscriber: func(cb transcription.Callbacks) (transcription.Transcriber, error) {
			return transcriber, nil
		},
	})
	go session.Run()

	waitFor(t, "greeting", func() bool { return len(synth.spoken()) == 1 })
	conn.audioIn <- make([]byte, 320)
	waitFor(t, "audio forward", func() bool {
		transcriber.mu.Lock()
		defer transcriber.mu.Unlock()
		return len(transcriber.pcm) == 1
	})

	conn.setConnected(false)
	close(conn.events)
	<-session.Done()

	transcriber.mu.Lock()
	defer transcriber.mu.Unlock()
	if !transcriber.closed {
		t.Fatal("transcriber not closed on shutdown")
	}
}

func TestManager_StartAndRemove(t *testing.T) {
	conn := newFakeConn()
	manager := NewManager(Deps{
		Synthesizer: &fakeSynth{},
		NewTranscriber: func(cb transcription.Callbacks) (transcription.Transcriber, error) {
			return &fakeTranscriber{}, nil
		},
	})

	if err := manager.Start(transport.StartRequest{Conn: conn, Participant: "participant"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "session registered", func() bool { return manager.Count() == 1 })

	conn.setConnected(false)
	close(conn.events)
	waitFor(t, "session removed", func() bool { return manager.Count() == 0 })
}
