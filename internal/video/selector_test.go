package video

import (
	"image"
	"testing"
	"time"
)

func makeFrames(n int) []Frame {
	frames := make([]Frame, n)
	base := time.Now()
	for i := range frames {
		frames[i] = Frame{
			Image:     image.NewYCbCr(image.Rect(0, 0, 16, 16), image.YCbCrSubsampleRatio420),
			Width:     16,
			Height:    16,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
	}
	return frames
}

func fillBuffer(n int) *Buffer {
	buf := NewBuffer()
	for _, f := range makeFrames(n) {
		buf.Append(f)
	}
	return buf
}

func TestSelect_EmptyBuffer(t *testing.T) {
	buf := NewBuffer()
	if got := Select(buf); got != nil {
		t.Errorf("empty buffer should select nothing, got %d", len(got))
	}
	// idempotent across repeated empty calls
	if got := Select(buf); got != nil {
		t.Errorf("repeated empty select should stay nil, got %d", len(got))
	}
}

func TestSelect_ClearsBuffer(t *testing.T) {
	buf := fillBuffer(4)
	Select(buf)
	if buf.Len() != 0 {
		t.Errorf("buffer must be empty after selection, has %d", buf.Len())
	}
}

func TestSelect_OneFrame(t *testing.T) {
	got := Select(fillBuffer(1))
	if len(got) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(got))
	}
	if got[0].Position != PositionMostRecent {
		t.Errorf("single frame should be most recent, got %s", got[0].Position)
	}
}

func TestSelect_TwoFrames(t *testing.T) {
	frames := makeFrames(2)
	buf := NewBuffer()
	for _, f := range frames {
		buf.Append(f)
	}

	got := Select(buf)
	if len(got) != 1 {
		t.Fatalf("two captured frames still select one, got %d", len(got))
	}
	if !got[0].Frame.Timestamp.Equal(frames[1].Timestamp) {
		t.Error("the later frame should be selected")
	}
}

func TestSelect_ThreeFrames(t *testing.T) {
	frames := makeFrames(3)
	buf := NewBuffer()
	for _, f := range frames {
		buf.Append(f)
	}

	got := Select(buf)
	if len(got) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(got))
	}
	// delivery order: most recent first
	if got[0].Position != PositionMostRecent || !got[0].Frame.Timestamp.Equal(frames[2].Timestamp) {
		t.Errorf("first delivered should be most recent F2, got %s", got[0].Position)
	}
	if got[1].Position != PositionFirst || !got[1].Frame.Timestamp.Equal(frames[0].Timestamp) {
		t.Errorf("second delivered should be first F0, got %s", got[1].Position)
	}
}

func TestSelect_FiveFrames(t *testing.T) {
	frames := makeFrames(5)
	buf := NewBuffer()
	for _, f := range frames {
		buf.Append(f)
	}

	got := Select(buf)
	if len(got) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(got))
	}

	wantPositions := []Position{PositionMostRecent, PositionMiddle, PositionFirst}
	wantIdx := []int{4, 2, 0}
	for i := range got {
		if got[i].Position != wantPositions[i] {
			t.Errorf("frame %d: expected position %s, got %s", i, wantPositions[i], got[i].Position)
		}
		if !got[i].Frame.Timestamp.Equal(frames[wantIdx[i]].Timestamp) {
			t.Errorf("frame %d: expected buffer index %d", i, wantIdx[i])
		}
	}
}

func TestSelect_DistinctPositions(t *testing.T) {
	got := Select(fillBuffer(9))
	seen := make(map[Position]bool)
	for _, pf := range got {
		if seen[pf.Position] {
			t.Errorf("duplicate position %s", pf.Position)
		}
		seen[pf.Position] = true
	}
}

func TestPick_MiddleIndex(t *testing.T) {
	frames := makeFrames(7)
	got := pick(frames)
	if len(got) != 3 {
		t.Fatalf("expected 3, got %d", len(got))
	}
	// middle should be index 3 for N=7
	if !got[1].Frame.Timestamp.Equal(frames[3].Timestamp) {
		t.Error("middle frame should be index N/2")
	}
}
