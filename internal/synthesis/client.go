package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/websocket/interfaces"
	clientinterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces/v1"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/speak"
)

const (
	defaultVoiceModel = "aura-2-thalia-en"
	defaultSampleRate = 48000
	defaultEncoding   = "linear16"
	defaultIdleWindow = 400 * time.Millisecond
	defaultDeadline   = 12 * time.Second
)

// Client turns response text into PCM audio through the Deepgram speak
// websocket API. Each Synthesize call opens a fresh stream.
type Client struct {
	cfg Config
	log *slog.Logger
}

func New(cfg Config, log *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("deepgram api key is empty")
	}
	if cfg.Model == "" {
		cfg.Model = defaultVoiceModel
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.Encoding == "" {
		cfg.Encoding = defaultEncoding
	}
	if cfg.IdleWindow <= 0 {
		cfg.IdleWindow = defaultIdleWindow
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = defaultDeadline
	}
	return &Client{cfg: cfg, log: log.With("component", "synthesis")}, nil
}

func (c *Client) Close() error { return nil }

// Synthesize streams audio for the request text, invoking cb.OnAudio per
// chunk. It returns once the stream drains, the context is cancelled, or the
// deadline passes.
func (c *Client) Synthesize(ctx context.Context, req Request, cb Callbacks) error {
	if req.Text == "" {
		if cb.OnDone != nil {
			cb.OnDone()
		}
		return nil
	}

	options := &clientinterfaces.WSSpeakOptions{
		Model:      c.cfg.Model,
		Encoding:   c.cfg.Encoding,
		SampleRate: c.cfg.SampleRate,
	}

	var lastRecvUnix int64
	var seenAudio int32

	handler := &speakCallback{onBinary: func(data []byte) error {
		if len(data) == 0 {
			return nil
		}
		atomic.StoreInt64(&lastRecvUnix, time.Now().UnixNano())
		atomic.StoreInt32(&seenAudio, 1)
		if cb.OnAudio != nil {
			chunk := make([]byte, len(data))
			copy(chunk, data)
			cb.OnAudio(chunk)
		}
		return nil
	}}

	dg, err := speak.NewWSUsingCallback(ctx, c.cfg.APIKey, &clientinterfaces.ClientOptions{}, options, handler)
	if err != nil {
		return fmt.Errorf("create speak client: %w", err)
	}

	stopped := false
	stopClient := func() {
		if !stopped {
			stopped = true
			dg.Stop()
		}
	}
	defer stopClient()

	if ok := dg.Connect(); !ok {
		return fmt.Errorf("speak connect failed")
	}
	if cb.OnReady != nil {
		cb.OnReady(c.cfg.SampleRate)
	}

	if err := dg.SpeakWithText(req.Text); err != nil {
		return fmt.Errorf("speak text: %w", err)
	}
	if err := dg.Flush(); err != nil {
		c.log.Warn("speak flush failed", "error", err)
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.Now().Add(c.cfg.Deadline)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if atomic.LoadInt32(&seenAudio) == 1 {
				last := time.Unix(0, atomic.LoadInt64(&lastRecvUnix))
				if time.Since(last) > c.cfg.IdleWindow {
					if cb.OnDone != nil {
						cb.OnDone()
					}
					return nil
				}
			}
			if time.Now().After(deadline) {
				if atomic.LoadInt32(&seenAudio) == 0 {
					err := fmt.Errorf("speak produced no audio before deadline")
					if cb.OnError != nil {
						cb.OnError(err)
					}
					return err
				}
				if cb.OnDone != nil {
					cb.OnDone()
				}
				return nil
			}
		}
	}
}

type speakCallback struct{ onBinary func([]byte) error }

func (s *speakCallback) Open(*msginterfaces.OpenResponse) error         { return nil }
func (s *speakCallback) Metadata(*msginterfaces.MetadataResponse) error { return nil }
func (s *speakCallback) Flush(*msginterfaces.FlushedResponse) error     { return nil }
func (s *speakCallback) Clear(*msginterfaces.ClearedResponse) error     { return nil }
func (s *speakCallback) Close(*msginterfaces.CloseResponse) error       { return nil }
func (s *speakCallback) Warning(*msginterfaces.WarningResponse) error   { return nil }
func (s *speakCallback) Error(*msginterfaces.ErrorResponse) error       { return nil }
func (s *speakCallback) UnhandledEvent([]byte) error                    { return nil }
func (s *speakCallback) Binary(data []byte) error {
	if s.onBinary != nil {
		return s.onBinary(data)
	}
	return nil
}
