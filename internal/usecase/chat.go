package usecase

import (
	"context"
	"errors"
	"iter"
	"strings"

	"github.com/google/uuid"

	"streaming-bot/internal/domain"
)

const defaultTopK = 2

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

type VectorSearcher interface {
	Search(ctx context.Context, vector []float64, k int) ([]domain.SearchHit, error)
}

type TextCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Completer interface {
	TextCompleter
	Stream(ctx context.Context, prompt string) iter.Seq2[string, error]
}

type Pusher interface {
	Push(ctx context.Context, connectionID string, data []byte) error
}

type EventLogger interface {
	PutEvent(ctx context.Context, pk, sk string, payload any) error
}

type EventPublisher interface {
	Publish(ctx context.Context, evt domain.ChatEvent) error
}

// ChatConfig holds the settings resolved once at start-up.
type ChatConfig struct {
	Streaming            bool
	TopK                 int
	PersistStreamedTurns bool
}

// ChatService runs the retrieval-augmented generation pipeline for one
// inbound message. It holds no per-conversation state.
type ChatService struct {
	embedder Embedder
	index    VectorSearcher
	llm      Completer
	push     Pusher
	log      EventLogger
	bus      EventPublisher
	cfg      ChatConfig
}

type TurnInput struct {
	ConnectionID string
	Message      string
}

type TurnOutput struct {
	Turn      domain.ChatTurn
	Streamed  bool
	Fragments int
	Recorded  bool
}

func NewChatService(e Embedder, idx VectorSearcher, llm Completer, p Pusher, log EventLogger, bus EventPublisher, cfg ChatConfig) (*ChatService, error) {
	if e == nil {
		return nil, errors.New("usecase: embedder must not be nil")
	}
	if idx == nil {
		return nil, errors.New("usecase: vector searcher must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: completer must not be nil")
	}
	if p == nil {
		return nil, errors.New("usecase: pusher must not be nil")
	}
	if log == nil {
		return nil, errors.New("usecase: event logger must not be nil")
	}
	if bus == nil {
		return nil, errors.New("usecase: event publisher must not be nil")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	return &ChatService{
		embedder: e,
		index:    idx,
		llm:      llm,
		push:     p,
		log:      log,
		bus:      bus,
		cfg:      cfg,
	}, nil
}

// HandleMessage answers one user message on a connection. Steps run in
// order: embed, search, prompt, generate, push, then record. On failure the
// returned output still carries the turn id and whatever was built so far.
func (s *ChatService) HandleMessage(ctx context.Context, in TurnInput) (TurnOutput, error) {
	connID := strings.TrimSpace(in.ConnectionID)
	if connID == "" {
		return TurnOutput{}, newError(ErrorInvalidInput, "missing_connection_id", nil)
	}
	if strings.TrimSpace(in.Message) == "" {
		return TurnOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}

	turn := domain.ChatTurn{
		TurnID:      newUUID(),
		SessionID:   connID,
		UserMessage: in.Message,
	}
	out := TurnOutput{Turn: turn, Streamed: s.cfg.Streaming}

	vector, err := s.embedder.Embed(ctx, in.Message)
	if err != nil {
		return out, upstreamError("embedding", err)
	}

	hits, err := s.index.Search(ctx, vector, s.cfg.TopK)
	if err != nil {
		return out, upstreamError("search", err)
	}
	turn.Context = make([]string, 0, len(hits))
	for _, h := range hits {
		turn.Context = append(turn.Context, h.Text)
	}
	turn.Prompt = buildAugmentedPrompt(in.Message, turn.Context)
	out.Turn = turn

	if s.cfg.Streaming {
		return s.streamReply(ctx, turn, out)
	}
	return s.batchReply(ctx, turn, out)
}

func (s *ChatService) streamReply(ctx context.Context, turn domain.ChatTurn, out TurnOutput) (TurnOutput, error) {
	var full strings.Builder
	for frag, err := range s.llm.Stream(ctx, turn.Prompt) {
		if err != nil {
			return out, upstreamError("completion", err)
		}
		if frag == "" {
			continue
		}
		if err := s.push.Push(ctx, turn.SessionID, []byte(frag)); err != nil {
			return out, newError(ErrorDeliveryFailed, "push_error", err)
		}
		out.Fragments++
		full.WriteString(frag)
	}

	turn.Response = strings.TrimSpace(full.String())
	out.Turn = turn
	if out.Fragments == 0 {
		return out, newError(ErrorUpstream, "completion_empty", nil)
	}
	if !s.cfg.PersistStreamedTurns || turn.Response == "" {
		return out, nil
	}
	if err := s.record(ctx, turn); err != nil {
		return out, err
	}
	out.Recorded = true
	return out, nil
}

func (s *ChatService) batchReply(ctx context.Context, turn domain.ChatTurn, out TurnOutput) (TurnOutput, error) {
	response, err := s.llm.Complete(ctx, turn.Prompt)
	if err != nil {
		return out, upstreamError("completion", err)
	}
	turn.Response = strings.TrimSpace(response)
	out.Turn = turn
	if turn.Response == "" {
		return out, newError(ErrorUpstream, "completion_empty", nil)
	}

	// The turn was generated, so it is recorded even if the client has gone.
	pushErr := s.push.Push(ctx, turn.SessionID, []byte(turn.Response))
	if pushErr == nil {
		out.Fragments = 1
	}

	if err := s.record(ctx, turn); err != nil {
		return out, err
	}
	out.Recorded = true
	if pushErr != nil {
		return out, newError(ErrorDeliveryFailed, "push_error", pushErr)
	}
	return out, nil
}

// record persists the turn and publishes it. Both receive the same event
// value; a failure of one does not skip the other.
func (s *ChatService) record(ctx context.Context, turn domain.ChatTurn) error {
	evt := domain.NewChatEvent(turn)
	logErr := s.log.PutEvent(ctx, turn.SessionID, domain.TurnKey(turn.TurnID, ""), evt)
	pubErr := s.bus.Publish(ctx, evt)

	switch {
	case logErr != nil && pubErr != nil:
		return newError(ErrorInternal, "turn_record_error", errors.Join(logErr, pubErr))
	case logErr != nil:
		return newError(ErrorInternal, "event_log_error", logErr)
	case pubErr != nil:
		return newError(ErrorInternal, "event_bus_error", pubErr)
	}
	return nil
}

var newUUID = func() string {
	return uuid.NewString()
}
