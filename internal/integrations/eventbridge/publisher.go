package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"streaming-bot/internal/domain"
)

// eventsAPI is the minimal EventBridge interface required by Publisher.
type eventsAPI interface {
	PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher fans chat turns out to the event bus.
type Publisher struct {
	api     eventsAPI
	busName string
	source  string
}

// New creates a Publisher for the named bus.
func New(api eventsAPI, busName, source string) (*Publisher, error) {
	if api == nil {
		return nil, errors.New("eventbridge: api must not be nil")
	}
	busName = strings.TrimSpace(busName)
	if busName == "" {
		return nil, errors.New("eventbridge: bus name must not be empty")
	}
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, errors.New("eventbridge: source must not be empty")
	}
	return &Publisher{api: api, busName: busName, source: source}, nil
}

// Publish puts one chat event on the bus with the event type as detail type.
func (p *Publisher) Publish(ctx context.Context, evt domain.ChatEvent) error {
	detail, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("eventbridge: marshal detail: %w", err)
	}
	out, err := p.api.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{{
			EventBusName: aws.String(p.busName),
			Source:       aws.String(p.source),
			DetailType:   aws.String(evt.EventType),
			Detail:       aws.String(string(detail)),
		}},
	})
	if err != nil {
		return fmt.Errorf("eventbridge: put events: %w", err)
	}
	if out != nil && out.FailedEntryCount > 0 {
		code, msg := "unknown", ""
		if len(out.Entries) > 0 {
			code = aws.ToString(out.Entries[0].ErrorCode)
			msg = aws.ToString(out.Entries[0].ErrorMessage)
		}
		return fmt.Errorf("eventbridge: entry rejected: %s %s", code, msg)
	}
	return nil
}
