package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pion/webrtc/v4"

	"github.com/harithebeast/multimodal-ai/internal/transport"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  65536,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// signalMessage is the websocket signaling envelope. Client sends
// offer/candidate/track_metadata/bye, server replies with
// answer/candidate/ice-complete/error.
type signalMessage struct {
	Type          string            `json:"type"`
	SDP           string            `json:"sdp,omitempty"`
	Candidate     string            `json:"candidate,omitempty"`
	SDPMid        *string           `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16           `json:"sdpMLineIndex,omitempty"`
	Participant   string            `json:"participant,omitempty"`
	Tracks        map[string]string `json:"tracks,omitempty"`
	Error         string            `json:"error,omitempty"`
}

type Handler struct {
	manager *Manager
	starter transport.SessionStarter
	log     *slog.Logger
}

func NewHandler(manager *Manager, starter transport.SessionStarter, log *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		starter: starter,
		log:     log.With("component", "realtime"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", h.HandleSignaling)
}

// HandleSignaling runs offer/answer and trickle ICE over a websocket, then
// hands the negotiated connection to the agent layer.
func (h *Handler) HandleSignaling(c echo.Context) error {
	ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return nil
	}
	defer ws.Close()

	offer, ok := h.awaitOffer(ws)
	if !ok {
		return nil
	}

	peer, err := h.manager.NewPeer()
	if err != nil {
		h.log.Error("failed to create peer", "error", err)
		h.writeError(ws, "failed to create peer connection")
		return nil
	}

	if len(offer.Tracks) > 0 {
		peer.SetTrackSources(offer.Tracks)
	}

	if err := peer.SetOffer(offer.SDP); err != nil {
		peer.Close()
		h.log.Error("failed to set offer", "error", err)
		h.writeError(ws, "failed to process offer")
		return nil
	}

	conn, err := NewConn(peer, h.manager.Config(), h.log)
	if err != nil {
		peer.Close()
		h.log.Error("failed to create connection", "error", err)
		h.writeError(ws, "failed to create connection")
		return nil
	}

	peer.OnDataChannel(func(dc *webrtc.DataChannel) {
		conn.SetupDataChannel(dc)
	})

	callID := h.manager.Register(conn)

	candidates := make(chan signalMessage, 64)
	peer.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			select {
			case candidates <- signalMessage{Type: "ice-complete"}:
			default:
			}
			return
		}
		init := cand.ToJSON()
		select {
		case candidates <- signalMessage{
			Type:          "candidate",
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		}:
		default:
		}
	})

	answer, err := peer.CreateAnswer()
	if err != nil {
		h.manager.Remove(callID)
		h.log.Error("failed to create answer", "error", err)
		h.writeError(ws, "failed to create answer")
		return nil
	}

	if err := ws.WriteJSON(signalMessage{Type: "answer", SDP: answer}); err != nil {
		h.manager.Remove(callID)
		return nil
	}

	if err := h.starter.Start(transport.StartRequest{
		Conn:        conn,
		Participant: offer.Participant,
	}); err != nil {
		h.manager.Remove(callID)
		h.log.Error("session start failed", "error", err)
		h.writeError(ws, "failed to start session")
		return nil
	}

	h.log.Info("call negotiated", "call_id", callID, "participant", offer.Participant)

	// fan out server candidates while reading client ones
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			var msg signalMessage
			if err := ws.ReadJSON(&msg); err != nil {
				return
			}
			switch msg.Type {
			case "candidate":
				if msg.Candidate == "" {
					continue
				}
				_ = peer.AddICECandidate(webrtc.ICECandidateInit{
					Candidate:     msg.Candidate,
					SDPMid:        msg.SDPMid,
					SDPMLineIndex: msg.SDPMLineIndex,
				})
			case "track_metadata":
				peer.SetTrackSources(msg.Tracks)
			case "bye":
				h.manager.Remove(callID)
				return
			}
		}
	}()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case msg := <-candidates:
			if err := ws.WriteJSON(msg); err != nil {
				h.manager.Remove(callID)
				return nil
			}
		case <-readDone:
			return nil
		case <-conn.done:
			h.manager.Remove(callID)
			return nil
		case <-ticker.C:
		}
	}
}

func (h *Handler) awaitOffer(ws *websocket.Conn) (signalMessage, bool) {
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			return signalMessage{}, false
		}
		if mt != websocket.TextMessage {
			continue
		}
		var msg signalMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "offer":
			if msg.SDP == "" {
				h.writeError(ws, "missing sdp")
				continue
			}
			return msg, true
		case "bye":
			return signalMessage{}, false
		}
	}
}

func (h *Handler) writeError(ws *websocket.Conn, message string) {
	_ = ws.WriteJSON(signalMessage{Type: "error", Error: message})
}
