// Package devserver runs the chat WebSocket flow on a local HTTP server so
// it can be exercised without API Gateway.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"streaming-bot/internal/domain"
)

// EventHandler is satisfied by handler.WebSocketHandler.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev domain.ChannelEvent) events.APIGatewayProxyResponse
}

type Server struct {
	hub      *Hub
	events   EventHandler
	upgrader websocket.Upgrader
	newID    func() string
}

func NewServer(hub *Hub, h EventHandler) (*Server, error) {
	if hub == nil {
		return nil, errors.New("devserver: hub must not be nil")
	}
	if h == nil {
		return nil, errors.New("devserver: event handler must not be nil")
	}
	return &Server{
		hub:    hub,
		events: h,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		newID: uuid.NewString,
	}, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "connections": s.hub.Len()})
	})
	r.Get("/ws", s.serveWS)
	return r
}

// serveWS maps the socket lifecycle onto CONNECT, MESSAGE and DISCONNECT
// channel events for a fresh connection id.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	id := s.newID()
	logger := slog.With("connection_id", id)

	s.hub.add(id, conn)
	s.dispatch(ctx, logger, domain.ChannelEvent{Kind: domain.EventConnect, ConnectionID: id})
	defer func() {
		s.hub.remove(id)
		s.dispatch(context.WithoutCancel(ctx), logger, domain.ChannelEvent{Kind: domain.EventDisconnect, ConnectionID: id})
	}()

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read failed", "err", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		s.dispatch(ctx, logger, domain.ChannelEvent{Kind: domain.EventMessage, ConnectionID: id, Body: string(payload)})
	}
}

func (s *Server) dispatch(ctx context.Context, logger *slog.Logger, ev domain.ChannelEvent) {
	resp := s.events.HandleEvent(ctx, ev)
	if resp.StatusCode >= http.StatusBadRequest {
		logger.Warn("event rejected", "event", ev.Kind.String(), "status", resp.StatusCode, "body", resp.Body)
	}
}
