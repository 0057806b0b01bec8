package bootstrap

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	ServerAddr string
	LogLevel   string
	Version    string

	LiveKitAPIKey    string
	LiveKitAPISecret string
	LiveKitURL       string

	GoogleAPIKey        string
	GoogleCloudProject  string
	GoogleCloudLocation string
	GeminiModel         string

	DeepgramAPIKey string

	LangfusePublicKey string
	LangfuseSecretKey string
	LangfuseHost      string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RTCICEServers []ICEServerConfig
	RTCPortMin    int
	RTCPortMax    int

	KnowledgeDir string

	DisableInference   bool
	EnableTurnDetector bool
}

type ICEServerConfig struct {
	URLs       []string
	Username   string
	Credential string
}

func LoadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		Version:    "1.0.0",

		LiveKitAPIKey:    getEnv("LIVEKIT_API_KEY", ""),
		LiveKitAPISecret: getEnv("LIVEKIT_API_SECRET", ""),
		LiveKitURL:       getEnv("LIVEKIT_URL", ""),

		GoogleAPIKey:        getEnv("GOOGLE_API_KEY", ""),
		GoogleCloudProject:  getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation: getEnv("GOOGLE_CLOUD_LOCATION", "us-central1"),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		DeepgramAPIKey: getEnv("DEEPGRAM_API_KEY", ""),

		LangfusePublicKey: getEnv("LANGFUSE_PUBLIC_KEY", ""),
		LangfuseSecretKey: getEnv("LANGFUSE_SECRET_KEY", ""),
		LangfuseHost:      getEnv("LANGFUSE_HOST", "https://cloud.langfuse.com"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       0,

		RTCICEServers: parseICEServers(getEnv("RTC_ICE_SERVERS", "stun:stun.l.google.com:19302")),
		RTCPortMin:    getEnvInt("RTC_PORT_MIN", 10000),
		RTCPortMax:    getEnvInt("RTC_PORT_MAX", 20000),

		KnowledgeDir: getEnv("KNOWLEDGE_DIR", "./knowledge"),

		DisableInference:   getEnv("DISABLE_INFERENCE", "") == "1",
		EnableTurnDetector: getEnv("ENABLE_TURN_DETECTOR", "") == "1",
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseICEServers(envValue string) []ICEServerConfig {
	var servers []ICEServerConfig
	for _, url := range strings.Split(envValue, ",") {
		url = strings.TrimSpace(url)
		if url != "" {
			servers = append(servers, ICEServerConfig{URLs: []string{url}})
		}
	}
	if len(servers) == 0 {
		return []ICEServerConfig{{URLs: []string{"stun:stun.l.google.com:19302"}}}
	}
	return servers
}
