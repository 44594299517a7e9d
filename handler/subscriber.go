package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"streaming-bot/internal/domain"
	"streaming-bot/internal/usecase"
)

type EventProcessor interface {
	Process(ctx context.Context, evt domain.ChatEvent) (usecase.DerivedRecord, error)
}

// SubscriberHandler feeds chat_message events from the event bus to one
// processor.
type SubscriberHandler struct {
	name string
	proc EventProcessor
}

func NewSubscriberHandler(name string, proc EventProcessor) (*SubscriberHandler, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("handler: subscriber name must not be empty")
	}
	if proc == nil {
		return nil, errors.New("handler: event processor must not be nil")
	}
	return &SubscriberHandler{name: name, proc: proc}, nil
}

// Handle drops events it can never process and returns transient failures
// so the bus retries them. Retries are safe because derived records are
// written at most once.
func (h *SubscriberHandler) Handle(ctx context.Context, evt events.CloudWatchEvent) error {
	logger := slog.With("subscriber", h.name, "event_id", evt.ID, "detail_type", evt.DetailType)
	if evt.DetailType != domain.EventTypeChatMessage {
		logger.Warn("ignoring event")
		return nil
	}

	var chat domain.ChatEvent
	if err := json.Unmarshal(evt.Detail, &chat); err != nil {
		logger.Error("undecodable event detail", "err", err)
		return nil
	}
	logger = logger.With("session_id", chat.SessionID, "msg_id", chat.MsgID)

	rec, err := h.proc.Process(ctx, chat)
	if err != nil {
		var usecaseErr *usecase.Error
		if errors.As(err, &usecaseErr) && usecaseErr.Code == usecase.ErrorInvalidInput {
			logger.Error("dropping invalid event", "reason", usecaseErr.Reason)
			return nil
		}
		logger.Error("processing failed", "err", err)
		return err
	}
	if rec.Duplicate {
		logger.Info("record already written", "sk", rec.SK)
		return nil
	}
	logger.Info("record written", "sk", rec.SK)
	return nil
}
