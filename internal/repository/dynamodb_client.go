package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"streaming-bot/internal/domain"
)

const ttlDuration = 90 * 24 * time.Hour // 90-day TTL

// ErrDuplicateEvent is returned when an entry with the same key already exists.
var ErrDuplicateEvent = domain.ErrDuplicateEvent

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client wraps a DynamoDB table used as an append-only event log keyed by
// (session id, turn id [#suffix]).
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// PutEvent appends payload under (pk, sk). The payload is stored as the JSON
// document it marshals to. Existing entries are never overwritten.
func (c *Client) PutEvent(ctx context.Context, pk, sk string, payload any) error {
	if strings.TrimSpace(pk) == "" || strings.TrimSpace(sk) == "" {
		return errors.New("repository: PutEvent: pk and sk are required")
	}

	body, err := payloadAttr(payload)
	if err != nil {
		return fmt.Errorf("repository: PutEvent encode body: %w", err)
	}

	now := c.now().UTC()
	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"pk":        &types.AttributeValueMemberS{Value: pk},
			"sk":        &types.AttributeValueMemberS{Value: sk},
			"body":      body,
			"createdAt": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
			"ttl":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Add(ttlDuration).Unix())},
		},
		ConditionExpression: aws.String("attribute_not_exists(pk) AND attribute_not_exists(sk)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("repository: PutEvent %s/%s: %w", pk, sk, ErrDuplicateEvent)
		}
		return fmt.Errorf("repository: PutEvent: %w", err)
	}
	return nil
}

// payloadAttr round-trips the payload through JSON so the stored attribute
// keeps the payload's JSON field names.
func payloadAttr(payload any) (types.AttributeValue, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return attributevalue.Marshal(doc)
}
