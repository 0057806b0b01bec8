package video

import (
	"image"
	"sync"
	"time"
)

// Track source labels carried by the transport. Only screen-share tracks
// feed a sampler.
const (
	SourceScreenShare = "screen_share"
	SourceCamera      = "camera"
	SourceMicrophone  = "microphone"
)

type Frame struct {
	Image     image.Image
	Width     int
	Height    int
	Timestamp time.Time
}

type Position string

const (
	PositionFirst      Position = "first"
	PositionMiddle     Position = "middle"
	PositionMostRecent Position = "most recent"
)

type PositionedFrame struct {
	Position Position
	Frame    Frame
}

// Buffer holds captured frames between turns. The sampler is the sole
// appender and the selector the sole drainer; the mutex serializes the two
// since they run on different goroutines.
type Buffer struct {
	mu     sync.Mutex
	frames []Frame
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Append(f Frame) {
	b.mu.Lock()
	b.frames = append(b.frames, f)
	b.mu.Unlock()
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// Drain returns the captured frames in order and clears the buffer.
func (b *Buffer) Drain() []Frame {
	b.mu.Lock()
	frames := b.frames
	b.frames = nil
	b.mu.Unlock()
	return frames
}
