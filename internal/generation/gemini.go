package generation

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/harithebeast/multimodal-ai/internal/chat"
)

const (
	defaultModel    = "gemini-2.0-flash"
	defaultLocation = "us-central1"
)

type Config struct {
	ProjectID string
	Location  string
	Model     string
	APIKey    string
}

func (c Config) normalized() Config {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Location == "" {
		c.Location = defaultLocation
	}
	return c
}

// Gemini streams multimodal completions from the Vertex AI Gemini API.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	cfg    Config
	log    *slog.Logger
}

func NewGemini(ctx context.Context, cfg Config, log *slog.Logger) (*Gemini, error) {
	cfg = cfg.normalized()
	if cfg.ProjectID == "" && cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini credentials missing")
	}

	var opts []option.ClientOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	client, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Location, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(cfg.Model),
		cfg:    cfg,
		log:    log.With("component", "generation"),
	}, nil
}

func (g *Gemini) Model() string { return g.cfg.Model }

func (g *Gemini) Close() error { return g.client.Close() }

func (g *Gemini) RenderMessages(messages []chat.Message) (any, error) {
	return chat.ToGeminiContents(messages)
}

// Stream sends the full history as a chat session, with the last message as
// the active turn, and forwards text deltas as they arrive.
func (g *Gemini) Stream(ctx context.Context, messages []chat.Message) (<-chan Chunk, <-chan error) {
	out := make(chan Chunk, 32)
	errs := make(chan error, 1)

	contents, err := chat.ToGeminiContents(messages)
	if err != nil {
		errs <- fmt.Errorf("render messages: %w", err)
		close(out)
		close(errs)
		return out, errs
	}

	go func() {
		defer close(out)
		defer close(errs)

		last := contents[len(contents)-1]
		cs := g.model.StartChat()
		cs.History = contents[:len(contents)-1]

		it := cs.SendMessageStream(ctx, last.Parts...)
		for {
			resp, err := it.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				errs <- fmt.Errorf("gemini stream: %w", err)
				return
			}

			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if t, ok := part.(genai.Text); ok {
						select {
						case out <- Chunk{Delta: string(t)}:
						case <-ctx.Done():
							errs <- ctx.Err()
							return
						}
					}
				}
			}
		}
	}()

	return out, errs
}
