package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	EnvStreaming, EnvIndexName, EnvEventBusName, EnvEventSource, EnvEventsTable,
	EnvWSAPIURL, EnvOpenSearchEndpoint, EnvRegion, EnvLLMProvider, EnvEmbeddingModelID,
	EnvCompletionModelID, EnvParamPrefix, EnvOpenAIBaseURL, EnvTopK, EnvIndexDimension,
	EnvPersistStreamedTurns, EnvBillingInputRate, EnvBillingOutputRate, EnvLogLevel, EnvDevAddr,
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.False(t, cfg.Streaming)
	require.Equal(t, "docs-index", cfg.IndexName)
	require.Equal(t, "streaming-bot.chat", cfg.EventSource)
	require.Equal(t, ProviderBedrock, cfg.LLMProvider)
	require.Equal(t, 2, cfg.TopK)
	require.Equal(t, 1536, cfg.IndexDimension)
	require.False(t, cfg.PersistStreamedTurns)
	require.Equal(t, 0.008, cfg.BillingInputRate)
	require.Equal(t, 0.024, cfg.BillingOutputRate)
	require.Equal(t, ":8080", cfg.DevAddr)
	require.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvStreaming, "yes")
	t.Setenv(EnvIndexName, "kb")
	t.Setenv(EnvEventsTable, "events")
	t.Setenv(EnvWSAPIURL, "wss://abc.execute-api.eu-west-1.amazonaws.com/prod")
	t.Setenv(EnvLLMProvider, "OpenAI")
	t.Setenv(EnvParamPrefix, "/streaming-bot")
	t.Setenv(EnvTopK, "5")
	t.Setenv(EnvPersistStreamedTurns, "YES")
	t.Setenv(EnvBillingInputRate, "0.5")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load(EnvEventsTable, EnvWSAPIURL)
	require.NoError(t, err)
	require.True(t, cfg.Streaming)
	require.Equal(t, "kb", cfg.IndexName)
	require.Equal(t, "events", cfg.EventsTable)
	require.Equal(t, "wss://abc.execute-api.eu-west-1.amazonaws.com/prod", cfg.WSAPIURL)
	require.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	require.Equal(t, 5, cfg.TopK)
	require.True(t, cfg.PersistStreamedTurns)
	require.Equal(t, 0.5, cfg.BillingInputRate)
	require.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_StreamingOnlyForYes(t *testing.T) {
	for _, v := range []string{"true", "1", "NO", "Y"} {
		clearEnv(t)
		t.Setenv(EnvStreaming, v)
		cfg, err := Load()
		require.NoError(t, err)
		require.False(t, cfg.Streaming, v)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvEventsTable, "events")

	_, err := Load(EnvEventsTable, EnvEventBusName, EnvOpenSearchEndpoint)
	require.ErrorContains(t, err, EnvEventBusName)
	require.ErrorContains(t, err, EnvOpenSearchEndpoint)
	require.NotContains(t, err.Error(), EnvEventsTable+",")
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvTopK, "many")
	t.Setenv(EnvIndexDimension, "-3")
	t.Setenv(EnvBillingOutputRate, "free")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 2, cfg.TopK)
	require.Equal(t, 1536, cfg.IndexDimension)
	require.Equal(t, 0.024, cfg.BillingOutputRate)
}

func TestLoad_Provider(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvLLMProvider, "openai")
	_, err := Load()
	require.ErrorContains(t, err, EnvParamPrefix)

	clearEnv(t)
	t.Setenv(EnvLLMProvider, "cohere")
	_, err = Load()
	require.ErrorContains(t, err, "unsupported")
}
