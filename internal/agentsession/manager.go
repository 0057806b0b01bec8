package agentsession

import (
	"log/slog"
	"sync"

	"github.com/harithebeast/multimodal-ai/internal/generation"
	"github.com/harithebeast/multimodal-ai/internal/synthesis"
	"github.com/harithebeast/multimodal-ai/internal/trace"
	"github.com/harithebeast/multimodal-ai/internal/transport"
)

// Deps carries the shared services sessions are built from. Transcription is
// a factory because each session owns its own streaming connection; the
// generator and synthesizer are safe to share.
type Deps struct {
	NewTranscriber TranscriberFactory
	Generator      generation.Generator
	Synthesizer    synthesis.Synthesizer
	Tracer         trace.Tracer
	Instructions   string
	Logger         *slog.Logger
}

// Manager tracks live sessions and starts one per negotiated connection.
type Manager struct {
	deps Deps
	log  *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Manager{
		deps:     deps,
		log:      deps.Logger.With("component", "session-manager"),
		sessions: make(map[string]*Session),
	}
}

var _ transport.SessionStarter = (*Manager)(nil)

// Start launches a session for the connection and returns immediately.
func (m *Manager) Start(req transport.StartRequest) error {
	session := NewSession(Config{
		Conn:           req.Conn,
		Participant:    req.Participant,
		NewTranscriber: m.deps.NewTranscriber,
		Generator:      m.deps.Generator,
		Synthesizer:    m.deps.Synthesizer,
		Tracer:         m.deps.Tracer,
		Instructions:   m.deps.Instructions,
		Logger:         m.deps.Logger,
	})

	m.mu.Lock()
	m.sessions[session.ID()] = session
	m.mu.Unlock()
	m.log.Info("session started", "session_id", session.ID(), "participant", req.Participant)

	go func() {
		session.Run()
		m.mu.Lock()
		delete(m.sessions, session.ID())
		m.mu.Unlock()
		m.log.Info("session removed", "session_id", session.ID())
	}()
	return nil
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll shuts every live session down and waits for each to finish.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		s.Close()
	}
}
