package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"streaming-bot/internal/domain"
	"streaming-bot/internal/integrations/openai"
)

func sampleEvent() domain.ChatEvent {
	return domain.NewChatEvent(domain.ChatTurn{
		TurnID:      "turn-1",
		SessionID:   "C1",
		UserMessage: "What is the refund policy?",
		Context:     []string{"Refunds are processed within 5 days."},
		Response:    "Refunds take 5 days.",
		Prompt:      "0123456789abcdef0123456789",
	})
}

func TestSentiment_WritesClassification(t *testing.T) {
	llm := &mockCompleter{trace: &calls{}, completion: `{"sentiment":"positive","language":"en","emotion":"happy"}`}
	log := &mockLog{trace: &calls{}}
	svc, err := NewSentimentService(llm, log)
	require.NoError(t, err)

	rec, err := svc.Process(context.Background(), sampleEvent())
	require.NoError(t, err)
	require.Equal(t, DerivedRecord{PK: "C1", SK: "turn-1#sentiment_analysis"}, rec)

	require.Len(t, llm.prompts, 1)
	require.Contains(t, llm.prompts[0], "<msg>What is the refund policy?</msg>")
	require.Len(t, log.entries, 1)
	require.Equal(t, domain.SentimentRecord{Sentiment: "positive", Language: "en", Emotion: "happy"}, log.entries[0].payload)
}

func TestSentiment_DuplicateIsNoop(t *testing.T) {
	llm := &mockCompleter{trace: &calls{}, completion: `{"sentiment":"negative","language":"en","emotion":"sad"}`}
	log := &mockLog{trace: &calls{}, err: fmt.Errorf("repository: PutEvent: %w", domain.ErrDuplicateEvent)}
	svc, err := NewSentimentService(llm, log)
	require.NoError(t, err)

	rec, err := svc.Process(context.Background(), sampleEvent())
	require.NoError(t, err)
	require.True(t, rec.Duplicate)
}

func TestSentiment_Errors(t *testing.T) {
	t.Run("invalid event", func(t *testing.T) {
		svc, err := NewSentimentService(&mockCompleter{trace: &calls{}}, &mockLog{trace: &calls{}})
		require.NoError(t, err)
		evt := sampleEvent()
		evt.MsgID = ""
		_, err = svc.Process(context.Background(), evt)
		expectChatError(t, err, ErrorInvalidInput, "missing_msg_id")

		evt = sampleEvent()
		evt.EventType = "other"
		_, err = svc.Process(context.Background(), evt)
		expectChatError(t, err, ErrorInvalidInput, "unexpected_event_type")

		evt = sampleEvent()
		evt.UserMsg = " "
		_, err = svc.Process(context.Background(), evt)
		expectChatError(t, err, ErrorInvalidInput, "empty_user_msg")
	})

	t.Run("throttled", func(t *testing.T) {
		llm := &mockCompleter{trace: &calls{}, err: &openai.HTTPStatusError{StatusCode: http.StatusTooManyRequests}}
		svc, err := NewSentimentService(llm, &mockLog{trace: &calls{}})
		require.NoError(t, err)
		_, err = svc.Process(context.Background(), sampleEvent())
		expectChatError(t, err, ErrorRateLimited, "sentiment_completion_rate_limited")
	})

	t.Run("undecodable", func(t *testing.T) {
		log := &mockLog{trace: &calls{}}
		svc, err := NewSentimentService(&mockCompleter{trace: &calls{}, completion: "I think it is positive"}, log)
		require.NoError(t, err)
		_, err = svc.Process(context.Background(), sampleEvent())
		expectChatError(t, err, ErrorUpstream, "sentiment_decode_error")
		require.Empty(t, log.entries)
	})

	t.Run("log failure", func(t *testing.T) {
		llm := &mockCompleter{trace: &calls{}, completion: `{"sentiment":"positive","language":"en","emotion":"happy"}`}
		svc, err := NewSentimentService(llm, &mockLog{trace: &calls{}, err: errors.New("throttled")})
		require.NoError(t, err)
		_, err = svc.Process(context.Background(), sampleEvent())
		expectChatError(t, err, ErrorInternal, "event_log_error")
	})
}

func TestBilling_WritesUsage(t *testing.T) {
	log := &mockLog{trace: &calls{}}
	svc, err := NewBillingService(log, BillingRates{InputPer1K: 0.008, OutputPer1K: 0.024})
	require.NoError(t, err)

	rec, err := svc.Process(context.Background(), sampleEvent())
	require.NoError(t, err)
	require.Equal(t, DerivedRecord{PK: "C1", SK: "turn-1#billing"}, rec)

	require.Len(t, log.entries, 1)
	got, ok := log.entries[0].payload.(domain.BillingRecord)
	require.True(t, ok)
	// 26 prompt characters and 20 response characters.
	require.Equal(t, 7, got.InputTokens)
	require.Equal(t, 5, got.OutputTokens)
	require.InDelta(t, 0.000176, got.Cost, 1e-9)
	require.Equal(t, "turn-1", got.MsgID)
	require.Equal(t, "C1", got.SessionID)
}

func TestBilling_DuplicateIsNoop(t *testing.T) {
	log := &mockLog{trace: &calls{}, err: domain.ErrDuplicateEvent}
	svc, err := NewBillingService(log, BillingRates{})
	require.NoError(t, err)
	rec, err := svc.Process(context.Background(), sampleEvent())
	require.NoError(t, err)
	require.True(t, rec.Duplicate)
}

func TestNewBillingService_Validates(t *testing.T) {
	_, err := NewBillingService(nil, BillingRates{})
	require.Error(t, err)
	_, err = NewBillingService(&mockLog{trace: &calls{}}, BillingRates{InputPer1K: -1})
	require.Error(t, err)
}

func TestApproxTokens(t *testing.T) {
	require.Equal(t, 0, approxTokens(""))
	require.Equal(t, 1, approxTokens("abc"))
	require.Equal(t, 1, approxTokens("abcd"))
	require.Equal(t, 2, approxTokens("abcde"))
	require.Equal(t, 1, approxTokens("héé"))
}
