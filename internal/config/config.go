package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

const (
	ProviderBedrock = "bedrock"
	ProviderOpenAI  = "openai"
)

// Environment variable names.
const (
	EnvStreaming            = "LLM_STREAMING_ENABLED"
	EnvIndexName            = "INDEX_NAME"
	EnvEventBusName         = "EVENT_BUS_NAME"
	EnvEventSource          = "EVENT_SOURCE"
	EnvEventsTable          = "EVENTS_TABLE_NAME"
	EnvWSAPIURL             = "WS_API_URL"
	EnvOpenSearchEndpoint   = "OPENSEARCH_EP"
	EnvRegion               = "AWS_REGION"
	EnvLLMProvider          = "LLM_PROVIDER"
	EnvEmbeddingModelID     = "EMBEDDING_MODEL_ID"
	EnvCompletionModelID    = "COMPLETION_MODEL_ID"
	EnvParamPrefix          = "PARAM_PREFIX"
	EnvOpenAIBaseURL        = "OPENAI_BASE_URL"
	EnvTopK                 = "TOP_K"
	EnvIndexDimension       = "INDEX_DIMENSION"
	EnvPersistStreamedTurns = "PERSIST_STREAMED_TURNS"
	EnvBillingInputRate     = "BILLING_INPUT_RATE"
	EnvBillingOutputRate    = "BILLING_OUTPUT_RATE"
	EnvLogLevel             = "LOG_LEVEL"
	EnvDevAddr              = "DEV_ADDR"
)

// Config is read once at cold start. Nothing else in the module reads the
// environment.
type Config struct {
	Streaming            bool
	IndexName            string
	EventBusName         string
	EventSource          string
	EventsTable          string
	WSAPIURL             string
	OpenSearchEndpoint   string
	Region               string
	LLMProvider          string
	EmbeddingModelID     string
	CompletionModelID    string
	ParamPrefix          string
	OpenAIBaseURL        string
	TopK                 int
	IndexDimension       int
	PersistStreamedTurns bool
	BillingInputRate     float64
	BillingOutputRate    float64
	LogLevel             string
	DevAddr              string
}

// Load reads the environment. Every key in required must be set to a
// non-empty value.
func Load(required ...string) (Config, error) {
	var missing []string
	for _, key := range required {
		if strings.TrimSpace(os.Getenv(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("config: required environment variables not set: %s", strings.Join(missing, ", "))
	}

	cfg := Config{
		Streaming:            envFlag(EnvStreaming),
		IndexName:            envStr(EnvIndexName, "docs-index"),
		EventBusName:         envStr(EnvEventBusName, ""),
		EventSource:          envStr(EnvEventSource, "streaming-bot.chat"),
		EventsTable:          envStr(EnvEventsTable, ""),
		WSAPIURL:             envStr(EnvWSAPIURL, ""),
		OpenSearchEndpoint:   envStr(EnvOpenSearchEndpoint, ""),
		Region:               envStr(EnvRegion, ""),
		LLMProvider:          strings.ToLower(envStr(EnvLLMProvider, ProviderBedrock)),
		EmbeddingModelID:     envStr(EnvEmbeddingModelID, ""),
		CompletionModelID:    envStr(EnvCompletionModelID, ""),
		ParamPrefix:          envStr(EnvParamPrefix, ""),
		OpenAIBaseURL:        envStr(EnvOpenAIBaseURL, ""),
		TopK:                 envInt(EnvTopK, 2),
		IndexDimension:       envInt(EnvIndexDimension, 1536),
		PersistStreamedTurns: envFlag(EnvPersistStreamedTurns),
		BillingInputRate:     envFloat(EnvBillingInputRate, 0.008),
		BillingOutputRate:    envFloat(EnvBillingOutputRate, 0.024),
		LogLevel:             envStr(EnvLogLevel, "info"),
		DevAddr:              envStr(EnvDevAddr, ":8080"),
	}

	switch cfg.LLMProvider {
	case ProviderBedrock:
	case ProviderOpenAI:
		if cfg.ParamPrefix == "" {
			return Config{}, fmt.Errorf("config: %s is required when %s=%s", EnvParamPrefix, EnvLLMProvider, ProviderOpenAI)
		}
	default:
		return Config{}, fmt.Errorf("config: unsupported %s %q", EnvLLMProvider, cfg.LLMProvider)
	}
	return cfg, nil
}

// SlogLevel maps LOG_LEVEL to a slog level; unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func envStr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f >= 0 {
			return f
		}
	}
	return fallback
}

// envFlag is true only for the literal YES, case-insensitively.
func envFlag(key string) bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv(key)), "YES")
}
