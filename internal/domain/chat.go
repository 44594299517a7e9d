package domain

import "errors"

// EventTypeChatMessage tags every published chat turn.
const EventTypeChatMessage = "chat_message"

// Sort key suffixes of records derived from a turn by subscribers.
const (
	SuffixSentiment = "sentiment_analysis"
	SuffixBilling   = "billing"
)

// ErrDuplicateEvent reports that the event log already holds an entry under
// the same key.
var ErrDuplicateEvent = errors.New("event already recorded")

// TurnKey returns the event log sort key of a turn, optionally qualified by a
// subscriber suffix.
func TurnKey(turnID, suffix string) string {
	if suffix == "" {
		return turnID
	}
	return turnID + "#" + suffix
}

// ChatTurn is one user message and its generated reply.
type ChatTurn struct {
	TurnID      string
	SessionID   string
	UserMessage string
	Context     []string
	Response    string
	Prompt      string
}

// ChatEvent is the payload both persisted to the event log and published on
// the event bus for a turn.
type ChatEvent struct {
	EventType       string   `json:"event_type"`
	MsgID           string   `json:"msg_id"`
	SessionID       string   `json:"session_id"`
	UserMsg         string   `json:"user_msg"`
	AIMsg           string   `json:"ai_msg"`
	Context         []string `json:"context"`
	QueryWithPrompt string   `json:"query_with_prompt"`
}

// NewChatEvent derives the domain event for a turn. The context slice is
// copied so the event does not alias the turn.
func NewChatEvent(t ChatTurn) ChatEvent {
	ctx := make([]string, len(t.Context))
	copy(ctx, t.Context)
	return ChatEvent{
		EventType:       EventTypeChatMessage,
		MsgID:           t.TurnID,
		SessionID:       t.SessionID,
		UserMsg:         t.UserMessage,
		AIMsg:           t.Response,
		Context:         ctx,
		QueryWithPrompt: t.Prompt,
	}
}

// SentimentRecord is the classification written by the sentiment subscriber.
type SentimentRecord struct {
	Sentiment string `json:"sentiment"`
	Language  string `json:"language"`
	Emotion   string `json:"emotion"`
}

// BillingRecord is the usage entry written by the billing subscriber.
type BillingRecord struct {
	MsgID        string  `json:"msg_id"`
	SessionID    string  `json:"session_id"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}
