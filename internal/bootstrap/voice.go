package bootstrap

import (
	"context"
	"log/slog"

	"github.com/harithebeast/multimodal-ai/internal/agentsession"
	"github.com/harithebeast/multimodal-ai/internal/generation"
	"github.com/harithebeast/multimodal-ai/internal/knowledge"
	"github.com/harithebeast/multimodal-ai/internal/realtime"
	"github.com/harithebeast/multimodal-ai/internal/synthesis"
	"github.com/harithebeast/multimodal-ai/internal/trace"
	"github.com/harithebeast/multimodal-ai/internal/transcription"
	"go.uber.org/fx"
)

// ConfigureRunners applies the env switches for end-of-turn detection.
func ConfigureRunners(cfg *Config, log *slog.Logger) {
	if cfg.EnableTurnDetector {
		agentsession.RegisterRunner("silence_gap", func() agentsession.TurnDetector {
			return agentsession.NewSilenceGapDetector(0)
		})
		log.Info("silence-gap turn detector enabled")
	}
	if cfg.DisableInference {
		agentsession.ClearRunners()
		log.Info("inference runners disabled, using transport speech-end events")
	}
}

func ProvideTranscriberFactory(cfg *Config, log *slog.Logger) agentsession.TranscriberFactory {
	return func(cb transcription.Callbacks) (transcription.Transcriber, error) {
		return transcription.New(transcription.Config{
			APIKey:     cfg.DeepgramAPIKey,
			SampleRate: 16000,
		}, cb, log)
	}
}

func ProvideSessionManager(
	factory agentsession.TranscriberFactory,
	generator generation.Generator,
	synthesizer synthesis.Synthesizer,
	tracer trace.Tracer,
	kb *knowledge.Base,
	log *slog.Logger,
) *agentsession.Manager {
	return agentsession.NewManager(agentsession.Deps{
		NewTranscriber: factory,
		Generator:      generator,
		Synthesizer:    synthesizer,
		Tracer:         tracer,
		Instructions:   agentsession.BuildInstructions(kb),
		Logger:         log,
	})
}

func ProvideRealtimeManager(cfg *Config, log *slog.Logger) (*realtime.Manager, error) {
	iceServers := make([]realtime.ICEServerConfig, len(cfg.RTCICEServers))
	for i, s := range cfg.RTCICEServers {
		iceServers[i] = realtime.ICEServerConfig{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		}
	}
	return realtime.NewManager(realtime.Config{
		ICEServers: iceServers,
		PortRange:  realtime.PortRange{Min: cfg.RTCPortMin, Max: cfg.RTCPortMax},
	}, log)
}

func ProvideRealtimeHandler(manager *realtime.Manager, sessions *agentsession.Manager, log *slog.Logger) *realtime.Handler {
	return realtime.NewHandler(manager, sessions, log)
}

func StopSessions(lc fx.Lifecycle, sessions *agentsession.Manager) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sessions.CloseAll()
			return nil
		},
	})
}

var VoiceModule = fx.Options(
	fx.Provide(
		ProvideTranscriberFactory,
		ProvideSessionManager,
		ProvideRealtimeManager,
		ProvideRealtimeHandler,
	),
	fx.Invoke(ConfigureRunners, StopSessions),
)
