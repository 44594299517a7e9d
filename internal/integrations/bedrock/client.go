package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const (
	DefaultEmbeddingModel  = "amazon.titan-embed-text-v1"
	DefaultCompletionModel = "anthropic.claude-v2"
	contentTypeJSON        = "application/json"
)

// runtimeAPI is the minimal Bedrock runtime interface required by Client.
type runtimeAPI interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
	InvokeModelWithResponseStream(ctx context.Context, in *bedrockruntime.InvokeModelWithResponseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelWithResponseStreamOutput, error)
}

// eventReader is the part of the response event stream consumed by Stream.
// *bedrockruntime.InvokeModelWithResponseStreamEventStream satisfies it.
type eventReader interface {
	Events() <-chan types.ResponseStream
	Close() error
	Err() error
}

type embeddingRequest struct {
	InputText string `json:"inputText"`
}

type embeddingResponse struct {
	Embedding           []float64 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

type completionRequest struct {
	Prompt            string   `json:"prompt"`
	MaxTokensToSample int      `json:"max_tokens_to_sample"`
	Temperature       float64  `json:"temperature"`
	TopP              float64  `json:"top_p"`
	StopSequences     []string `json:"stop_sequences,omitempty"`
}

type completionResponse struct {
	Completion string `json:"completion"`
	StopReason string `json:"stop_reason"`
}

// Sampling holds the generation parameters sent with every completion.
type Sampling struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Client calls hosted embedding and text-completion models on Bedrock.
type Client struct {
	api             runtimeAPI
	embeddingModel  string
	completionModel string
	sampling        Sampling
	streamSampling  Sampling

	// openStream is swapped in tests; the SDK event stream cannot be built
	// outside the SDK.
	openStream func(ctx context.Context, in *bedrockruntime.InvokeModelWithResponseStreamInput) (eventReader, error)
}

type Option func(*Client)

func WithModels(embeddingModel, completionModel string) Option {
	return func(c *Client) {
		if m := strings.TrimSpace(embeddingModel); m != "" {
			c.embeddingModel = m
		}
		if m := strings.TrimSpace(completionModel); m != "" {
			c.completionModel = m
		}
	}
}

func WithSampling(batch, stream Sampling) Option {
	return func(c *Client) {
		c.sampling = batch
		c.streamSampling = stream
	}
}

// New creates a Bedrock client.
func New(api runtimeAPI, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("bedrock: api must not be nil")
	}
	c := &Client{
		api:             api,
		embeddingModel:  DefaultEmbeddingModel,
		completionModel: DefaultCompletionModel,
		sampling:        Sampling{MaxTokens: 300, Temperature: 0.5, TopP: 0.6},
		streamSampling:  Sampling{MaxTokens: 300, Temperature: 0.1, TopP: 0.9},
	}
	c.openStream = c.invokeStream
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Embed returns the embedding vector of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(embeddingRequest{InputText: text})
	if err != nil {
		return nil, fmt.Errorf("bedrock: marshal embedding request: %w", err)
	}
	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.embeddingModel),
		Body:        body,
		ContentType: aws.String(contentTypeJSON),
		Accept:      aws.String(contentTypeJSON),
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock: invoke embedding model: %w", err)
	}

	var payload embeddingResponse
	if err := json.Unmarshal(out.Body, &payload); err != nil {
		return nil, fmt.Errorf("bedrock: decode embedding response: %w", err)
	}
	if len(payload.Embedding) == 0 {
		return nil, errors.New("bedrock: no embedding in response")
	}
	return payload.Embedding, nil
}

// Complete returns the full completion for prompt.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(completionBody(prompt, c.sampling))
	if err != nil {
		return "", fmt.Errorf("bedrock: marshal completion request: %w", err)
	}
	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.completionModel),
		Body:        body,
		ContentType: aws.String(contentTypeJSON),
		Accept:      aws.String(contentTypeJSON),
	})
	if err != nil {
		return "", fmt.Errorf("bedrock: invoke completion model: %w", err)
	}

	var payload completionResponse
	if err := json.Unmarshal(out.Body, &payload); err != nil {
		return "", fmt.Errorf("bedrock: decode completion response: %w", err)
	}
	return payload.Completion, nil
}

// Stream yields completion fragments as the model emits them. A failure is
// yielded once as the final element.
func (c *Client) Stream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		body, err := json.Marshal(completionBody(prompt, c.streamSampling))
		if err != nil {
			yield("", fmt.Errorf("bedrock: marshal completion request: %w", err))
			return
		}
		stream, err := c.openStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
			ModelId:     aws.String(c.completionModel),
			Body:        body,
			ContentType: aws.String(contentTypeJSON),
			Accept:      aws.String(contentTypeJSON),
		})
		if err != nil {
			yield("", fmt.Errorf("bedrock: invoke completion stream: %w", err))
			return
		}
		defer func() { _ = stream.Close() }()

		for event := range stream.Events() {
			chunk, ok := event.(*types.ResponseStreamMemberChunk)
			if !ok {
				continue
			}
			var payload completionResponse
			if err := json.Unmarshal(chunk.Value.Bytes, &payload); err != nil {
				yield("", fmt.Errorf("bedrock: decode stream chunk: %w", err))
				return
			}
			if !yield(payload.Completion, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield("", fmt.Errorf("bedrock: read stream: %w", err))
		}
	}
}

func (c *Client) invokeStream(ctx context.Context, in *bedrockruntime.InvokeModelWithResponseStreamInput) (eventReader, error) {
	out, err := c.api.InvokeModelWithResponseStream(ctx, in)
	if err != nil {
		return nil, err
	}
	return out.GetStream(), nil
}

// completionBody wraps prompt in the Human/Assistant turn markers expected by
// Anthropic text-completion models.
func completionBody(prompt string, s Sampling) completionRequest {
	return completionRequest{
		Prompt:            fmt.Sprintf("\n\nHuman: %s\n\nAssistant:", prompt),
		MaxTokensToSample: s.MaxTokens,
		Temperature:       s.Temperature,
		TopP:              s.TopP,
	}
}
