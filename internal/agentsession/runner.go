package agentsession

import (
	"sync"
	"time"
)

// TurnDetector decides when the user has finished speaking. Implementations
// receive transcription activity and explicit speech boundary signals and fire
// C once per completed turn.
type TurnDetector interface {
	OnTranscript(at time.Time)
	OnSpeechEnd()
	C() <-chan struct{}
	Reset()
	Close()
}

// DetectorFactory builds a fresh detector for a new session.
type DetectorFactory func() TurnDetector

var (
	runnerMu   sync.Mutex
	runners    = map[string]DetectorFactory{}
	lastRunner string
)

// RegisterRunner makes a detector factory available under name. The most
// recently registered runner wins when a session starts.
func RegisterRunner(name string, f DetectorFactory) {
	runnerMu.Lock()
	defer runnerMu.Unlock()
	runners[name] = f
	lastRunner = name
}

// ClearRunners removes every registered runner. Sessions then fall back to
// transport speech-end events.
func ClearRunners() {
	runnerMu.Lock()
	defer runnerMu.Unlock()
	runners = map[string]DetectorFactory{}
	lastRunner = ""
}

// ActiveDetector returns a detector from the most recently registered runner,
// or the default speech-end detector when nothing is registered.
func ActiveDetector() TurnDetector {
	runnerMu.Lock()
	defer runnerMu.Unlock()
	if f, ok := runners[lastRunner]; ok {
		return f()
	}
	return NewSpeechEndDetector()
}

// speechEndDetector completes a turn on an explicit speech-end signal from the
// transport or the transcription service.
type speechEndDetector struct {
	ch chan struct{}
}

func NewSpeechEndDetector() TurnDetector {
	return &speechEndDetector{ch: make(chan struct{}, 1)}
}

func (d *speechEndDetector) OnTranscript(time.Time) {}

func (d *speechEndDetector) OnSpeechEnd() {
	select {
	case d.ch <- struct{}{}:
	default:
	}
}

func (d *speechEndDetector) C() <-chan struct{} { return d.ch }
func (d *speechEndDetector) Reset()             {}
func (d *speechEndDetector) Close()             {}

const defaultSilenceGap = 1200 * time.Millisecond

// silenceGapDetector completes a turn once no transcript has arrived for a
// fixed gap. Speech-end signals shortcut the wait.
type silenceGapDetector struct {
	gap   time.Duration
	ch    chan struct{}
	mu    sync.Mutex
	timer *time.Timer
}

func NewSilenceGapDetector(gap time.Duration) TurnDetector {
	if gap <= 0 {
		gap = defaultSilenceGap
	}
	return &silenceGapDetector{gap: gap, ch: make(chan struct{}, 1)}
}

func (d *silenceGapDetector) OnTranscript(time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		d.timer = time.AfterFunc(d.gap, d.fire)
		return
	}
	d.timer.Reset(d.gap)
}

func (d *silenceGapDetector) OnSpeechEnd() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
	d.fire()
}

func (d *silenceGapDetector) fire() {
	d.mu.Lock()
	d.timer = nil
	d.mu.Unlock()
	select {
	case d.ch <- struct{}{}:
	default:
	}
}

func (d *silenceGapDetector) C() <-chan struct{} { return d.ch }

func (d *silenceGapDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *silenceGapDetector) Close() { d.Reset() }
