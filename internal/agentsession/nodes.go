package agentsession

import (
	"context"
	"time"

	"github.com/harithebeast/multimodal-ai/internal/chat"
	"github.com/harithebeast/multimodal-ai/internal/synthesis"
	"github.com/harithebeast/multimodal-ai/internal/trace"
	"github.com/harithebeast/multimodal-ai/internal/transcription"
	"github.com/harithebeast/multimodal-ai/internal/transport"
)

const transcriptPreviewRunes = 50

// sttSpan opens the transcription observation for the turn in flight. Finals
// are logged with a short preview; the span is ended exactly once whichever
// way the turn finishes.
type sttSpan struct {
	span  trace.Span
	ended bool
}

func (s *Session) openSTTSpan(tr trace.Trace) *sttSpan {
	return &sttSpan{span: tr.Span("stt_node", map[string]any{"model": "deepgram"})}
}

func (n *sttSpan) observe(s *Session, event transcription.TranscriptEvent) {
	if event.IsPartial {
		return
	}
	preview := []rune(event.Text)
	if len(preview) > transcriptPreviewRunes {
		preview = preview[:transcriptPreviewRunes]
	}
	s.log.Info("final transcript", "preview", string(preview), "confidence", event.Confidence)
}

func (n *sttSpan) fail(err error) {
	if n.ended {
		return
	}
	n.ended = true
	n.span.Update(trace.WithLevel(trace.LevelError), trace.WithMetadata("error", err.Error()))
	n.span.End()
}

func (n *sttSpan) end(transcript string) {
	if n.ended {
		return
	}
	n.ended = true
	n.span.End(transcript)
}

// llmNode streams a completion for the assembled context, forwarding deltas
// to the client as they arrive. It returns the accumulated reply.
func (s *Session) llmNode(ctx context.Context, tr trace.Trace, assembled *chat.Context) (string, error) {
	if s.generator == nil {
		span := tr.Generation("llm_generation", "unavailable", nil)
		span.End(degradedReply)
		s.sendResponse(ctx, degradedReply, false)
		return degradedReply, nil
	}

	messages := assembled.Messages()
	span := tr.Generation("llm_generation", s.generator.Model(), s.renderInput(messages))

	chunks, errs := s.generator.Stream(ctx, messages)

	var reply []byte
	first := true
	for chunks != nil || errs != nil {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			// Completion start marks the first visible token, so empty
			// keepalive deltas must not stamp it.
			if first && chunk.Delta != "" {
				first = false
				span.Update(trace.WithCompletionStartTime(time.Now()))
			}
			reply = append(reply, chunk.Delta...)
			s.sendResponse(ctx, chunk.Delta, true)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				span.Update(trace.WithLevel(trace.LevelError), trace.WithMetadata("error", err.Error()))
				span.End()
				return "", err
			}
		case <-ctx.Done():
			span.Update(trace.WithLevel(trace.LevelError), trace.WithMetadata("error", ctx.Err().Error()))
			span.End()
			return "", ctx.Err()
		}
	}

	text := string(reply)
	span.End(text)
	s.sendResponse(ctx, text, false)
	return text, nil
}

// renderInput records the provider-native request shape on the generation.
// Rendering failures degrade to the raw message list.
func (s *Session) renderInput(messages []chat.Message) any {
	if contents, err := chat.ToGeminiContents(messages); err == nil {
		return contents
	}
	if rendered, err := s.generator.RenderMessages(messages); err == nil {
		return rendered
	}
	return nil
}

// ttsNode synthesizes the reply and pushes audio to the client.
func (s *Session) ttsNode(ctx context.Context, tr trace.Trace, text string) error {
	if s.tts == nil {
		s.log.Warn("no synthesizer configured, reply not spoken")
		return nil
	}
	span := tr.Span("tts_node", map[string]any{"model": "deepgram"})

	var frames, bytes int
	sampleRate := 48000
	err := s.tts.Synthesize(ctx, synthesis.Request{Text: text}, synthesis.Callbacks{
		OnReady: func(rate int) {
			if rate > 0 {
				sampleRate = rate
			}
		},
		OnAudio: func(data []byte) {
			frames++
			bytes += len(data)
			s.log.Debug("synthesized audio frame", "bytes", len(data))
			if err := s.conn.SendAudio(ctx, transport.AudioChunk{Data: data, SampleRate: sampleRate}); err != nil {
				s.log.Warn("audio send failed", "error", err)
			}
		},
		OnError: func(err error) {
			s.log.Error("synthesis stream error", "error", err)
		},
	})
	if err != nil {
		span.Update(trace.WithLevel(trace.LevelError), trace.WithMetadata("error", err.Error()))
		span.End()
		return err
	}
	span.End(map[string]any{"frames": frames, "bytes": bytes})
	return nil
}

func (s *Session) sendResponse(ctx context.Context, text string, delta bool) {
	err := s.conn.Send(ctx, transport.ServerEvent{
		Type:    transport.ServerEventResponse,
		Payload: transport.ResponsePayload{Text: text, Delta: delta},
	})
	if err != nil {
		s.log.Debug("response send failed", "error", err)
	}
}
