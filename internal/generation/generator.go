package generation

import (
	"context"

	"github.com/harithebeast/multimodal-ai/internal/chat"
)

// Chunk is one streamed piece of a model response.
type Chunk struct {
	Delta string
}

// Generator streams completions for a chat history. Implementations close
// both channels when the stream ends.
type Generator interface {
	Stream(ctx context.Context, messages []chat.Message) (<-chan Chunk, <-chan error)
	// RenderMessages converts the history into the provider's native request
	// shape, used to record generation inputs.
	RenderMessages(messages []chat.Message) (any, error)
	Model() string
	Close() error
}
