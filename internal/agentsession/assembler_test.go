package agentsession

import (
	"image"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/harithebeast/multimodal-ai/internal/chat"
	"github.com/harithebeast/multimodal-ai/internal/knowledge"
	"github.com/harithebeast/multimodal-ai/internal/video"
)

func TestAssembleContext_NoFrames(t *testing.T) {
	base := chat.NewContext()
	base.AppendText(chat.RoleSystem, "instructions")
	base.AppendText(chat.RoleUser, "hello")

	assembled := assembleContext(base, nil, slog.Default())

	if assembled.Len() != 3 {
		t.Fatalf("expected 3 messages, got %d", assembled.Len())
	}
	last := assembled.Messages()[2]
	if last.Role != chat.RoleSystem {
		t.Fatalf("expected system notice, got role %s", last.Role)
	}
	if text := last.Parts[0].(chat.TextPart).Text; text != noScreenShareNotice {
		t.Fatalf("unexpected notice text: %q", text)
	}
	if base.Len() != 2 {
		t.Fatalf("base context mutated, has %d messages", base.Len())
	}
}

func TestAssembleContext_FrameMessages(t *testing.T) {
	base := chat.NewContext()
	base.AppendText(chat.RoleUser, "what is this?")

	img := image.NewRGBA(image.Rect(0, 0, 16, 9))
	frames := []video.PositionedFrame{
		{Position: video.PositionMostRecent, Frame: video.Frame{Image: img, Width: 16, Height: 9, Timestamp: time.Now()}},
		{Position: video.PositionFirst, Frame: video.Frame{Image: img, Width: 16, Height: 9, Timestamp: time.Now()}},
	}

	assembled := assembleContext(base, frames, slog.Default())

	if assembled.Len() != 3 {
		t.Fatalf("expected 3 messages, got %d", assembled.Len())
	}

	first := assembled.Messages()[1]
	if first.Role != chat.RoleUser {
		t.Fatalf("frame message role = %s", first.Role)
	}
	if text := first.Parts[0].(chat.TextPart).Text; text != "Most Recent view of user during speech:" {
		t.Fatalf("unexpected frame caption: %q", text)
	}
	blob, ok := first.Parts[1].(chat.ImagePart)
	if !ok {
		t.Fatalf("expected image part, got %T", first.Parts[1])
	}
	if blob.MIMEType != "image/jpeg" || len(blob.Data) == 0 {
		t.Fatalf("bad image part: mime=%s bytes=%d", blob.MIMEType, len(blob.Data))
	}
	if blob.Width != 16 || blob.Height != 9 {
		t.Fatalf("image dimensions not carried: %dx%d", blob.Width, blob.Height)
	}

	second := assembled.Messages()[2]
	if text := second.Parts[0].(chat.TextPart).Text; text != "First view of user during speech:" {
		t.Fatalf("unexpected second caption: %q", text)
	}
}

func TestAssembleContext_SkipsUndecodableFrame(t *testing.T) {
	base := chat.NewContext()
	frames := []video.PositionedFrame{
		{Position: video.PositionMostRecent, Frame: video.Frame{}},
	}

	assembled := assembleContext(base, frames, slog.Default())
	if assembled.Len() != 0 {
		t.Fatalf("nil-image frame should be skipped, got %d messages", assembled.Len())
	}
}

func TestTitleWords(t *testing.T) {
	cases := map[string]string{
		"first":       "First",
		"middle":      "Middle",
		"most recent": "Most Recent",
		"":            "",
	}
	for in, want := range cases {
		if got := titleWords(in); got != want {
			t.Errorf("titleWords(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildInstructions_IncludesKnowledge(t *testing.T) {
	kb := knowledge.Load(t.TempDir(), slog.Default())
	got := BuildInstructions(kb)
	if !strings.HasPrefix(got, baseInstructions) {
		t.Fatal("persona prompt must lead the instructions")
	}
	if !strings.Contains(got, "HARDWARE UPGRADE KNOWLEDGE BASE") {
		t.Fatal("knowledge block missing from instructions")
	}
}
