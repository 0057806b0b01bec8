package transport

import "context"

type Connection interface {
	Send(ctx context.Context, event ServerEvent) error
	SendAudio(ctx context.Context, chunk AudioChunk) error
	AudioIn() <-chan []byte
	Events() <-chan Event
	IsConnected() bool
	Close() error
}

// VideoConnection is implemented by connections that carry subscribed video
// tracks. The handler receives marshaled RTP packets together with the
// track's codec mime type and its publication source.
type VideoConnection interface {
	OnVideo(handler func(packet []byte, mimeType, source string))
}

type StartRequest struct {
	Conn        Connection
	Participant string
}

// SessionStarter hands a freshly negotiated connection to the agent layer.
type SessionStarter interface {
	Start(req StartRequest) error
}
