package bootstrap

import (
	"context"
	"log/slog"

	"github.com/harithebeast/multimodal-ai/internal/detector"
	"github.com/harithebeast/multimodal-ai/internal/generation"
	"github.com/harithebeast/multimodal-ai/internal/knowledge"
	"github.com/harithebeast/multimodal-ai/internal/synthesis"
	"github.com/harithebeast/multimodal-ai/internal/trace"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// ProvideRedisClient returns nil when no address is configured; dependents
// degrade to in-process behavior.
func ProvideRedisClient(cfg *Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func ProvideTracer(cfg *Config, log *slog.Logger) trace.Tracer {
	return trace.New(trace.Config{
		Host:      cfg.LangfuseHost,
		PublicKey: cfg.LangfusePublicKey,
		SecretKey: cfg.LangfuseSecretKey,
	}, log)
}

func ProvideDetector(cfg *Config, log *slog.Logger) (*detector.Detector, error) {
	return detector.New(context.Background(), detector.Config{
		ProjectID: cfg.GoogleCloudProject,
		Location:  cfg.GoogleCloudLocation,
		Model:     cfg.GeminiModel,
		APIKey:    cfg.GoogleAPIKey,
	}, log)
}

// ProvideGenerator degrades to nil when no Gemini credentials are present;
// sessions then run with canned replies instead of failing to start.
func ProvideGenerator(cfg *Config, log *slog.Logger) generation.Generator {
	gen, err := generation.NewGemini(context.Background(), generation.Config{
		ProjectID: cfg.GoogleCloudProject,
		Location:  cfg.GoogleCloudLocation,
		Model:     cfg.GeminiModel,
		APIKey:    cfg.GoogleAPIKey,
	}, log)
	if err != nil {
		log.Warn("language model unavailable, sessions run degraded", "error", err)
		return nil
	}
	return gen
}

func ProvideSynthesizer(cfg *Config, log *slog.Logger) synthesis.Synthesizer {
	if cfg.DeepgramAPIKey == "" {
		log.Warn("no speech synthesis key, replies will be text only")
		return nil
	}
	client, err := synthesis.New(synthesis.Config{APIKey: cfg.DeepgramAPIKey}, log)
	if err != nil {
		log.Warn("speech synthesis unavailable", "error", err)
		return nil
	}
	return client
}

func ProvideKnowledge(cfg *Config, log *slog.Logger) *knowledge.Base {
	return knowledge.Load(cfg.KnowledgeDir, log)
}

var InfrastructureModule = fx.Options(
	fx.Provide(
		NewLogger,
		ProvideRedisClient,
		ProvideTracer,
		ProvideDetector,
		ProvideGenerator,
		ProvideSynthesizer,
		ProvideKnowledge,
	),
)
