package apigw

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
)

// ErrConnectionGone is returned when the target connection has closed.
var ErrConnectionGone = errors.New("apigw: connection is gone")

// managementAPI is the minimal API Gateway Management API surface required by Pusher.
type managementAPI interface {
	PostToConnection(ctx context.Context, in *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
}

// Pusher delivers payloads to WebSocket API connections.
type Pusher struct {
	api managementAPI
}

// New creates a Pusher.
func New(api managementAPI) (*Pusher, error) {
	if api == nil {
		return nil, errors.New("apigw: api must not be nil")
	}
	return &Pusher{api: api}, nil
}

// NewFromConfig builds a management API client bound to the WebSocket stage
// URL. wss:// URLs are rewritten to https://.
func NewFromConfig(cfg aws.Config, endpoint string) (*Pusher, error) {
	endpoint = CallbackURL(endpoint)
	if endpoint == "" {
		return nil, errors.New("apigw: endpoint must not be empty")
	}
	client := apigatewaymanagementapi.NewFromConfig(cfg, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	return New(client)
}

// CallbackURL converts a WebSocket stage URL into its management endpoint.
func CallbackURL(stageURL string) string {
	u := strings.TrimRight(strings.TrimSpace(stageURL), "/")
	if rest, ok := strings.CutPrefix(u, "wss://"); ok {
		return "https://" + rest
	}
	return u
}

// Push posts data to the connection.
func (p *Pusher) Push(ctx context.Context, connectionID string, data []byte) error {
	if strings.TrimSpace(connectionID) == "" {
		return errors.New("apigw: connection id is required")
	}
	_, err := p.api.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         data,
	})
	if err != nil {
		var gone *types.GoneException
		if errors.As(err, &gone) {
			return fmt.Errorf("%w: %s", ErrConnectionGone, connectionID)
		}
		return fmt.Errorf("apigw: post to connection %s: %w", connectionID, err)
	}
	return nil
}
