package transcription

import "context"

type Transcriber interface {
	SendAudio(pcm []byte) error
	WaitReady(ctx context.Context) bool
	IsConnected() bool
	Close() error
}
