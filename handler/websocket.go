package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"streaming-bot/internal/domain"
	"streaming-bot/internal/usecase"
)

const errInvalidEventType = "INVALID_EVENT_TYPE"

type ChatUseCase interface {
	HandleMessage(ctx context.Context, in usecase.TurnInput) (usecase.TurnOutput, error)
}

// WebSocketHandler serves the $connect, $disconnect and $default routes of
// the chat WebSocket API.
type WebSocketHandler struct {
	chat ChatUseCase
	push usecase.Pusher
}

type statusResponse struct {
	Message string `json:"message"`
}

type turnResponse struct {
	TurnID    string `json:"turnId"`
	Streamed  bool   `json:"streamed"`
	Fragments int    `json:"fragments"`
}

type errorResponse struct {
	Error  string `json:"error"`
	TurnID string `json:"turnId,omitempty"`
}

func NewWebSocketHandler(chat ChatUseCase, push usecase.Pusher) (*WebSocketHandler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	if push == nil {
		return nil, errors.New("handler: pusher must not be nil")
	}
	return &WebSocketHandler{chat: chat, push: push}, nil
}

// Handle is the Lambda entry point. It never returns a Go error; failures
// are reported through the status code.
func (h *WebSocketHandler) Handle(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	ev := domain.ChannelEvent{
		Kind:         domain.ParseEventKind(req.RequestContext.EventType),
		ConnectionID: req.RequestContext.ConnectionID,
		Body:         req.Body,
	}
	logger := slog.With("request_id", req.RequestContext.RequestID, "route", req.RequestContext.RouteKey)
	return h.dispatch(ctx, logger, ev), nil
}

// HandleEvent processes a channel event that did not come through API
// Gateway, such as one from the local dev server.
func (h *WebSocketHandler) HandleEvent(ctx context.Context, ev domain.ChannelEvent) events.APIGatewayProxyResponse {
	return h.dispatch(ctx, slog.Default(), ev)
}

func (h *WebSocketHandler) dispatch(ctx context.Context, logger *slog.Logger, ev domain.ChannelEvent) events.APIGatewayProxyResponse {
	logger = logger.With("connection_id", ev.ConnectionID, "event", ev.Kind.String())

	switch ev.Kind {
	case domain.EventConnect:
		logger.Info("connection opened")
		return jsonResponse(http.StatusOK, statusResponse{Message: "Connect successful"})
	case domain.EventDisconnect:
		logger.Info("connection closed")
		return jsonResponse(http.StatusOK, statusResponse{Message: "Disconnect successful"})
	case domain.EventMessage:
		return h.message(ctx, logger, ev)
	default:
		logger.Warn("unknown event type")
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: errInvalidEventType})
	}
}

func (h *WebSocketHandler) message(ctx context.Context, logger *slog.Logger, ev domain.ChannelEvent) events.APIGatewayProxyResponse {
	out, err := h.chat.HandleMessage(ctx, usecase.TurnInput{ConnectionID: ev.ConnectionID, Message: ev.Body})
	if err == nil {
		logger.Info("turn completed",
			"turn_id", out.Turn.TurnID,
			"streamed", out.Streamed,
			"fragments", out.Fragments,
			"recorded", out.Recorded,
		)
		return jsonResponse(http.StatusOK, turnResponse{
			TurnID:    out.Turn.TurnID,
			Streamed:  out.Streamed,
			Fragments: out.Fragments,
		})
	}

	status, code := mapError(err)
	logger.Error("turn failed", "turn_id", out.Turn.TurnID, "code", code, "status", status, "err", err)
	body := errorResponse{Error: code, TurnID: out.Turn.TurnID}
	if notifyClient(code) {
		h.pushErrorFrame(ctx, logger, ev.ConnectionID, body)
	}
	return jsonResponse(status, body)
}

// pushErrorFrame tells the client that its turn failed. Delivery is best
// effort.
func (h *WebSocketHandler) pushErrorFrame(ctx context.Context, logger *slog.Logger, connectionID string, body errorResponse) {
	frame, err := json.Marshal(body)
	if err != nil {
		logger.Error("failed to encode error frame", "err", err)
		return
	}
	if err := h.push.Push(ctx, connectionID, frame); err != nil {
		logger.Warn("failed to push error frame", "err", err)
	}
}

// notifyClient reports whether the client should get an error frame. Invalid
// input has no side effects and a failed delivery has nowhere to go.
func notifyClient(code string) bool {
	switch usecase.ErrorCode(code) {
	case usecase.ErrorRateLimited, usecase.ErrorUpstream, usecase.ErrorInternal:
		return true
	}
	return false
}

func mapError(err error) (int, string) {
	var usecaseErr *usecase.Error
	if !errors.As(err, &usecaseErr) {
		return http.StatusInternalServerError, string(usecase.ErrorInternal)
	}
	switch usecaseErr.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, string(usecaseErr.Code)
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests, string(usecaseErr.Code)
	case usecase.ErrorUpstream:
		return http.StatusBadGateway, string(usecaseErr.Code)
	case usecase.ErrorDeliveryFailed:
		return http.StatusGone, string(usecaseErr.Code)
	default:
		return http.StatusInternalServerError, string(usecase.ErrorInternal)
	}
}

func jsonResponse(status int, body any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		raw = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(raw),
	}
}
