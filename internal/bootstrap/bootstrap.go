// Package bootstrap holds the cold-start wiring shared by the Lambda
// entry points.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"streaming-bot/internal/config"
	"streaming-bot/internal/integrations/bedrock"
	"streaming-bot/internal/integrations/eventbridge"
	"streaming-bot/internal/integrations/openai"
	"streaming-bot/internal/integrations/opensearch"
	"streaming-bot/internal/integrations/paramstore"
	"streaming-bot/internal/repository"
	"streaming-bot/internal/usecase"
)

// Models is the embedding and completion backend chosen by LLM_PROVIDER.
type Models struct {
	Embedder  usecase.Embedder
	Completer usecase.Completer
}

// InitLogger installs a JSON slog handler at the configured level.
func InitLogger(cfg config.Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	return logger
}

// AWS loads the default SDK configuration, honouring AWS_REGION when set.
func AWS(ctx context.Context, cfg config.Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("bootstrap: load AWS config: %w", err)
	}
	return awsCfg, nil
}

func NewModels(awsCfg aws.Config, cfg config.Config) (Models, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			return Models{}, err
		}
		opts := []openai.Option{openai.WithModels(cfg.EmbeddingModelID, cfg.CompletionModelID)}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		client, err := openai.NewClient(params, cfg.ParamPrefix, opts...)
		if err != nil {
			return Models{}, err
		}
		return Models{Embedder: client, Completer: client}, nil
	case config.ProviderBedrock, "":
		client, err := bedrock.New(bedrockruntime.NewFromConfig(awsCfg),
			bedrock.WithModels(cfg.EmbeddingModelID, cfg.CompletionModelID))
		if err != nil {
			return Models{}, err
		}
		return Models{Embedder: client, Completer: client}, nil
	default:
		return Models{}, fmt.Errorf("bootstrap: unsupported LLM provider %q", cfg.LLMProvider)
	}
}

func NewIndex(awsCfg aws.Config, cfg config.Config) (*opensearch.Index, error) {
	return opensearch.NewServerlessIndex(awsCfg, cfg.OpenSearchEndpoint, cfg.IndexName, cfg.IndexDimension)
}

func NewEventLog(awsCfg aws.Config, cfg config.Config) (*repository.Client, error) {
	return repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.EventsTable)
}

// NewChatService wires the chat pipeline against the hosted backends. The
// push channel is supplied by the caller.
func NewChatService(awsCfg aws.Config, cfg config.Config, push usecase.Pusher) (*usecase.ChatService, error) {
	models, err := NewModels(awsCfg, cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: models: %w", err)
	}
	index, err := NewIndex(awsCfg, cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: vector index: %w", err)
	}
	eventLog, err := NewEventLog(awsCfg, cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: event log: %w", err)
	}
	bus, err := eventbridge.New(awseventbridge.NewFromConfig(awsCfg), cfg.EventBusName, cfg.EventSource)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: event bus: %w", err)
	}
	return usecase.NewChatService(models.Embedder, index, models.Completer, push, eventLog, bus, usecase.ChatConfig{
		Streaming:            cfg.Streaming,
		TopK:                 cfg.TopK,
		PersistStreamedTurns: cfg.PersistStreamedTurns,
	})
}
