package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultEndpoint         = "wss://api.deepgram.com/v1/listen"
	defaultModel            = "nova-2"
	defaultSampleRate       = 16000
	defaultHandshakeTimeout = 10 * time.Second
	defaultKeepAlive        = 5 * time.Second
)

// Client streams linear16 PCM to the Deepgram live transcription API over a
// websocket and surfaces results through Callbacks.
type Client struct {
	cfg     Config
	cb      Callbacks
	log     *slog.Logger
	conn    *websocket.Conn
	mu      sync.RWMutex
	wmu     sync.Mutex
	readyCh chan struct{}
	stopCh  chan struct{}
	closed  bool

	speakingMu sync.Mutex
	speaking   bool
}

type resultsMessage struct {
	Type        string  `json:"type"`
	IsFinal     bool    `json:"is_final"`
	SpeechFinal bool    `json:"speech_final"`
	Start       float64 `json:"start"`
	Duration    float64 `json:"duration"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func New(cfg Config, cb Callbacks, log *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("deepgram api key is empty")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = defaultKeepAlive
	}
	cfg.Reconnect = cfg.Reconnect.Normalize()

	c := &Client{
		cfg:     cfg,
		cb:      cb,
		log:     log.With("component", "transcription"),
		readyCh: make(chan struct{}),
		stopCh:  make(chan struct{}),
	}

	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	conn, err := c.dial()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)
	go c.keepAliveLoop(conn)

	close(c.readyCh)
	if c.cb.OnReady != nil {
		c.cb.OnReady()
	}
	c.log.Info("STT connection established")
	return nil
}

func (c *Client) dial() (*websocket.Conn, error) {
	params := url.Values{}
	params.Set("model", c.cfg.Model)
	params.Set("encoding", "linear16")
	params.Set("sample_rate", strconv.Itoa(c.cfg.SampleRate))
	params.Set("channels", "1")
	params.Set("interim_results", "true")
	params.Set("vad_events", "true")
	params.Set("endpointing", "300")
	params.Set("smart_format", "true")
	if c.cfg.Language != "" {
		params.Set("language", c.cfg.Language)
	}

	wsURL := c.cfg.Endpoint + "?" + params.Encode()
	headers := http.Header{"Authorization": {"Token " + c.cfg.APIKey}}
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}

	c.log.Info("STT connecting", "model", c.cfg.Model, "sample_rate", c.cfg.SampleRate)
	conn, resp, err := dialer.Dial(wsURL, headers)
	if err != nil {
		if resp != nil {
			c.log.Error("STT handshake rejected", "status", resp.StatusCode)
		}
		return nil, fmt.Errorf("dial deepgram: %w", err)
	}
	return conn, nil
}

// reconnect redials with exponential backoff until the stream is restored or
// the client is closed.
func (c *Client) reconnect() {
	var delay time.Duration
	for attempt := 1; ; attempt++ {
		delay = c.cfg.Reconnect.Next(delay)
		select {
		case <-c.stopCh:
			return
		case <-time.After(delay):
		}

		conn, err := c.dial()
		if err != nil {
			c.log.Warn("STT reconnect failed", "attempt", attempt, "error", err)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()

		go c.readLoop(conn)
		go c.keepAliveLoop(conn)
		c.log.Info("STT connection restored", "attempt", attempt)
		return
	}
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.closed
}

func (c *Client) WaitReady(ctx context.Context) bool {
	select {
	case <-c.readyCh:
		return true
	case <-ctx.Done():
		return false
	}
}

// SendAudio writes one chunk of 16-bit little-endian mono PCM to the stream.
func (c *Client) SendAudio(pcm []byte) error {
	c.mu.RLock()
	conn := c.conn
	closed := c.closed
	c.mu.RUnlock()
	if closed || conn == nil {
		return fmt.Errorf("transcription stream closed")
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	close(c.stopCh)
	if conn != nil {
		c.wmu.Lock()
		_ = conn.WriteJSON(map[string]string{"type": "CloseStream"})
		c.wmu.Unlock()
		_ = conn.Close()
	}
	c.log.Info("STT connection closed")
	return nil
}

func (c *Client) keepAliveLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.KeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.wmu.Lock()
			err := conn.WriteJSON(map[string]string{"type": "KeepAlive"})
			c.wmu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.stopCh:
			default:
				c.log.Error("STT read failed", "error", err)
				if c.cb.OnError != nil {
					c.cb.OnError(err)
				}
				go c.reconnect()
			}
			return
		}
		c.processMessage(message)
	}
}

func (c *Client) processMessage(message []byte) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &envelope); err != nil {
		c.log.Debug("STT message unmarshal failed", "error", err)
		return
	}

	switch envelope.Type {
	case "Results":
		var msg resultsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.log.Debug("STT results unmarshal failed", "error", err)
			return
		}
		c.handleResults(msg)
	case "SpeechStarted":
		c.setSpeaking(true)
	case "UtteranceEnd":
		c.setSpeaking(false)
	case "Metadata":
	default:
		c.log.Debug("STT unknown message type", "type", envelope.Type)
	}
}

func (c *Client) handleResults(msg resultsMessage) {
	if len(msg.Channel.Alternatives) == 0 {
		return
	}
	alt := msg.Channel.Alternatives[0]
	if alt.Transcript == "" {
		return
	}

	c.setSpeaking(true)

	if c.cb.OnTranscript != nil {
		c.cb.OnTranscript(TranscriptEvent{
			Text:       alt.Transcript,
			IsPartial:  !msg.IsFinal,
			Confidence: alt.Confidence,
			StartMs:    uint64(msg.Start * 1000),
			EndMs:      uint64((msg.Start + msg.Duration) * 1000),
			Model:      c.cfg.Model,
		})
	}

	if msg.SpeechFinal {
		c.setSpeaking(false)
	}
}

func (c *Client) setSpeaking(speaking bool) {
	c.speakingMu.Lock()
	changed := c.speaking != speaking
	c.speaking = speaking
	c.speakingMu.Unlock()
	if !changed {
		return
	}
	if speaking {
		if c.cb.OnSpeechStart != nil {
			c.cb.OnSpeechStart()
		}
	} else if c.cb.OnSpeechEnd != nil {
		c.cb.OnSpeechEnd()
	}
}
