package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const ingestionPath = "/api/public/ingestion"

type Config struct {
	Host      string
	PublicKey string
	SecretKey string
	Timeout   time.Duration
}

// Langfuse ships observations to the Langfuse ingestion API in best-effort
// batches. Every failure is swallowed after a debug log; media flow never
// waits on trace export.
type Langfuse struct {
	httpClient *http.Client
	host       string
	publicKey  string
	secretKey  string
	log        *slog.Logger

	mu     sync.Mutex
	events []ingestionEvent
}

// New returns a Langfuse tracer, or Noop when the key pair is not
// configured.
func New(cfg Config, log *slog.Logger) Tracer {
	if cfg.PublicKey == "" || cfg.SecretKey == "" {
		if log != nil {
			log.Info("langfuse keys not configured, tracing disabled")
		}
		return Noop{}
	}
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	host := cfg.Host
	if host == "" {
		host = "https://cloud.langfuse.com"
	}

	return &Langfuse{
		httpClient: &http.Client{Timeout: timeout},
		host:       host,
		publicKey:  cfg.PublicKey,
		secretKey:  cfg.SecretKey,
		log:        log.With("component", "langfuse"),
	}
}

type ingestionEvent struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Body      map[string]any `json:"body"`
}

func (l *Langfuse) enqueue(eventType string, body map[string]any) {
	l.mu.Lock()
	l.events = append(l.events, ingestionEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Body:      body,
	})
	l.mu.Unlock()
}

func (l *Langfuse) StartTrace(name string, metadata map[string]any) Trace {
	id := uuid.New().String()
	l.enqueue("trace-create", map[string]any{
		"id":        id,
		"name":      name,
		"timestamp": time.Now().UTC(),
		"metadata":  metadata,
	})
	return &langfuseTrace{tracer: l, id: id}
}

func (l *Langfuse) Flush(ctx context.Context) error {
	l.mu.Lock()
	events := l.events
	l.events = nil
	l.mu.Unlock()

	if len(events) == 0 {
		return nil
	}

	payload, err := json.Marshal(map[string]any{"batch": events})
	if err != nil {
		l.log.Debug("marshal ingestion batch failed", "error", err)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.host+ingestionPath, bytes.NewReader(payload))
	if err != nil {
		l.log.Debug("create ingestion request failed", "error", err)
		return nil
	}
	req.SetBasicAuth(l.publicKey, l.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		l.log.Debug("ingestion request failed", "error", err, "events", len(events))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		l.log.Debug("ingestion rejected", "status", resp.StatusCode, "events", len(events))
	}
	return nil
}

type langfuseTrace struct {
	tracer *Langfuse
	id     string
}

func (t *langfuseTrace) TraceID() string { return t.id }

func (t *langfuseTrace) Span(name string, metadata map[string]any) Span {
	return t.startObservation("SPAN", name, "", metadata, nil)
}

func (t *langfuseTrace) Generation(name, model string, input any) Span {
	return t.startObservation("GENERATION", name, model, nil, input)
}

func (t *langfuseTrace) End() {
	t.tracer.enqueue("trace-update", map[string]any{
		"id":        t.id,
		"timestamp": time.Now().UTC(),
	})
}

func (t *langfuseTrace) startObservation(obsType, name, model string, metadata map[string]any, input any) Span {
	id := uuid.New().String()
	body := map[string]any{
		"id":        id,
		"traceId":   t.id,
		"type":      obsType,
		"name":      name,
		"startTime": time.Now().UTC(),
	}
	if model != "" {
		body["model"] = model
	}
	if metadata != nil {
		body["metadata"] = metadata
	}
	if input != nil {
		body["input"] = input
	}
	t.tracer.enqueue("observation-create", body)

	return &langfuseSpan{tracer: t.tracer, traceID: t.id, id: id, obsType: obsType}
}

type langfuseSpan struct {
	tracer  *Langfuse
	traceID string
	id      string
	obsType string

	mu    sync.Mutex
	state spanState
	ended bool
}

func (s *langfuseSpan) Update(opts ...UpdateOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	for _, opt := range opts {
		opt(&s.state)
	}
}

func (s *langfuseSpan) End(output ...any) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	state := s.state
	s.mu.Unlock()

	body := map[string]any{
		"id":      s.id,
		"traceId": s.traceID,
		"type":    s.obsType,
		"endTime": time.Now().UTC(),
	}
	if len(output) > 0 && output[0] != nil {
		body["output"] = output[0]
	}
	if state.level != "" {
		body["level"] = string(state.level)
	}
	if state.completionStartTime != nil {
		body["completionStartTime"] = state.completionStartTime.UTC()
	}
	if state.metadata != nil {
		body["metadata"] = state.metadata
	}
	s.tracer.enqueue("observation-update", body)
}
