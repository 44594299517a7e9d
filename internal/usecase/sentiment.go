package usecase

import (
	"context"
	"errors"
	"strings"

	"streaming-bot/internal/domain"
)

// SentimentService classifies the user message of a published turn and
// stores the result next to the turn.
type SentimentService struct {
	llm TextCompleter
	log EventLogger
}

func NewSentimentService(llm TextCompleter, log EventLogger) (*SentimentService, error) {
	if llm == nil {
		return nil, errors.New("usecase: completer must not be nil")
	}
	if log == nil {
		return nil, errors.New("usecase: event logger must not be nil")
	}
	return &SentimentService{llm: llm, log: log}, nil
}

func (s *SentimentService) Process(ctx context.Context, evt domain.ChatEvent) (DerivedRecord, error) {
	if err := validateChatEvent(evt); err != nil {
		return DerivedRecord{}, err
	}
	if strings.TrimSpace(evt.UserMsg) == "" {
		return DerivedRecord{}, newError(ErrorInvalidInput, "empty_user_msg", nil)
	}

	raw, err := s.llm.Complete(ctx, buildSentimentPrompt(evt.UserMsg))
	if err != nil {
		return DerivedRecord{}, upstreamError("sentiment_completion", err)
	}
	result, err := parseSentiment(raw)
	if err != nil {
		return DerivedRecord{}, newError(ErrorUpstream, "sentiment_decode_error", err)
	}
	return writeDerived(ctx, s.log, evt, domain.SuffixSentiment, result)
}
