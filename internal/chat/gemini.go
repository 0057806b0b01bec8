package chat

import (
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// ToGeminiContents renders messages into the Gemini native format. Gemini
// contents only carry "user" and "model" roles, so system messages are
// downgraded to user-role text; the distinct role survives in the Context for
// providers that support it.
func ToGeminiContents(messages []Message) ([]*genai.Content, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages to render")
	}

	contents := make([]*genai.Content, 0, len(messages))
	for i, msg := range messages {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}

		parts := make([]genai.Part, 0, len(msg.Parts))
		for _, p := range msg.Parts {
			switch part := p.(type) {
			case TextPart:
				parts = append(parts, genai.Text(part.Text))
			case ImagePart:
				format := "jpeg"
				if part.MIMEType == "image/png" {
					format = "png"
				}
				parts = append(parts, genai.ImageData(format, part.Data))
			case AudioPart:
				// audio is carried by the realtime transport, not the
				// text-generation path
				continue
			default:
				return nil, fmt.Errorf("message %d: unsupported part type %T", i, p)
			}
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	if len(contents) == 0 {
		return nil, fmt.Errorf("no renderable content")
	}
	return contents, nil
}
