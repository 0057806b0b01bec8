package transcription

import (
	"time"

	"github.com/harithebeast/multimodal-ai/internal/shared"
)

type TranscriptEvent struct {
	Text       string
	IsPartial  bool
	Confidence float64
	StartMs    uint64
	EndMs      uint64
	Model      string
}

type Callbacks struct {
	OnReady       func()
	OnSpeechStart func()
	OnSpeechEnd   func()
	OnTranscript  func(event TranscriptEvent)
	OnError       func(error)
}

type Config struct {
	APIKey     string
	Model      string
	Language   string
	SampleRate int
	// Endpoint overrides the default websocket endpoint, used in tests.
	Endpoint         string
	HandshakeTimeout time.Duration
	KeepAlive        time.Duration
	// Reconnect paces redials after the live stream drops mid-session.
	Reconnect shared.BackoffConfig
}
