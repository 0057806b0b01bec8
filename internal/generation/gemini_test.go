package generation

import (
	"testing"

	"cloud.google.com/go/vertexai/genai"

	"github.com/harithebeast/multimodal-ai/internal/chat"
)

func TestConfigNormalized(t *testing.T) {
	cfg := Config{}.normalized()
	if cfg.Model != "gemini-2.0-flash" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.Location != "us-central1" {
		t.Errorf("Location = %q", cfg.Location)
	}

	cfg = Config{Model: "gemini-1.5-pro", Location: "europe-west4"}.normalized()
	if cfg.Model != "gemini-1.5-pro" {
		t.Errorf("Model = %q, custom value must survive", cfg.Model)
	}
	if cfg.Location != "europe-west4" {
		t.Errorf("Location = %q, custom value must survive", cfg.Location)
	}
}

func TestGemini_RenderMessages(t *testing.T) {
	g := &Gemini{cfg: Config{Model: "gemini-2.0-flash"}}

	rendered, err := g.RenderMessages([]chat.Message{
		{Role: chat.RoleUser, Parts: []chat.Part{chat.TextPart{Text: "how do I remove the battery"}}},
	})
	if err != nil {
		t.Fatalf("RenderMessages failed: %v", err)
	}
	contents, ok := rendered.([]*genai.Content)
	if !ok {
		t.Fatalf("rendered type = %T", rendered)
	}
	if len(contents) != 1 || contents[0].Role != "user" {
		t.Errorf("unexpected contents: %+v", contents)
	}

	if _, err := g.RenderMessages(nil); err == nil {
		t.Error("empty history should not render")
	}
}

func TestGemini_ModelName(t *testing.T) {
	g := &Gemini{cfg: Config{Model: "gemini-2.0-flash"}}
	if g.Model() != "gemini-2.0-flash" {
		t.Errorf("Model() = %q", g.Model())
	}
}
