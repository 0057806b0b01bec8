package realtime

import (
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/harithebeast/multimodal-ai/internal/shared"
)

type Manager struct {
	cfg Config
	api *webrtc.API
	log *slog.Logger

	mu    sync.RWMutex
	conns map[string]*Conn
}

func NewManager(cfg Config, log *slog.Logger) (*Manager, error) {
	me := &webrtc.MediaEngine{}
	if err := me.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}

	se := &webrtc.SettingEngine{}
	if cfg.PortRange.Min > 0 && cfg.PortRange.Max > cfg.PortRange.Min {
		if err := se.SetEphemeralUDPPortRange(uint16(cfg.PortRange.Min), uint16(cfg.PortRange.Max)); err != nil {
			return nil, err
		}
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(me),
		webrtc.WithSettingEngine(*se),
	)

	return &Manager{
		cfg:   cfg,
		api:   api,
		log:   log.With("component", "realtime"),
		conns: make(map[string]*Conn),
	}, nil
}

func (m *Manager) NewPeer() (*Peer, error) {
	pc, err := m.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: m.iceServers(),
	})
	if err != nil {
		return nil, err
	}
	return NewPeer(pc, m.log)
}

func (m *Manager) iceServers() []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(m.cfg.ICEServers))
	for _, s := range m.cfg.ICEServers {
		server := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			server.Username = s.Username
			server.Credential = s.Credential
			server.CredentialType = webrtc.ICECredentialTypePassword
		}
		servers = append(servers, server)
	}
	if len(servers) == 0 {
		servers = append(servers, webrtc.ICEServer{
			URLs: []string{"stun:stun.l.google.com:19302"},
		})
	}
	return servers
}

// Register tracks a live connection under a fresh call id.
func (m *Manager) Register(conn *Conn) string {
	id := shared.NewID("call")
	m.mu.Lock()
	m.conns[id] = conn
	m.mu.Unlock()
	return id
}

func (m *Manager) Get(id string) (*Conn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conns[id]
	return c, ok
}

func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.conns[id]; ok {
		c.Close()
		delete(m.conns, id)
	}
}

func (m *Manager) Config() Config {
	return m.cfg
}
