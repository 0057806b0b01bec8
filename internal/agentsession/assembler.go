package agentsession

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/harithebeast/multimodal-ai/internal/chat"
	"github.com/harithebeast/multimodal-ai/internal/video"
)

// assembleContext copies the rolling conversation and injects the selected
// frames as user messages, one per frame, in selector order. With no frames it
// instead appends a system message telling the model the screen is not shared.
func assembleContext(base *chat.Context, frames []video.PositionedFrame, log *slog.Logger) *chat.Context {
	assembled := base.Copy()

	if len(frames) == 0 {
		assembled.AppendText(chat.RoleSystem, noScreenShareNotice)
		return assembled
	}

	for _, pf := range frames {
		data, err := video.EncodeJPEG(pf.Frame)
		if err != nil {
			log.Warn("skip frame", "position", pf.Position, "error", err)
			continue
		}
		assembled.Append(chat.RoleUser,
			chat.Text(fmt.Sprintf("%s view of user during speech:", titleWords(string(pf.Position)))),
			chat.ImagePart{
				Data:     data,
				MIMEType: "image/jpeg",
				Width:    pf.Frame.Width,
				Height:   pf.Frame.Height,
			},
		)
	}
	return assembled
}

// titleWords capitalizes the first letter of each word: "most recent" becomes
// "Most Recent".
func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
