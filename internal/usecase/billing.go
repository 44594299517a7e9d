package usecase

import (
	"context"
	"errors"
	"math"
	"unicode/utf8"

	"streaming-bot/internal/domain"
)

// charsPerToken approximates tokenizer output for English text.
const charsPerToken = 4

// BillingRates are prices per 1000 tokens.
type BillingRates struct {
	InputPer1K  float64
	OutputPer1K float64
}

// BillingService records approximate token usage and cost for every turn.
type BillingService struct {
	log   EventLogger
	rates BillingRates
}

func NewBillingService(log EventLogger, rates BillingRates) (*BillingService, error) {
	if log == nil {
		return nil, errors.New("usecase: event logger must not be nil")
	}
	if rates.InputPer1K < 0 || rates.OutputPer1K < 0 {
		return nil, errors.New("usecase: billing rates must not be negative")
	}
	return &BillingService{log: log, rates: rates}, nil
}

func (s *BillingService) Process(ctx context.Context, evt domain.ChatEvent) (DerivedRecord, error) {
	if err := validateChatEvent(evt); err != nil {
		return DerivedRecord{}, err
	}

	in := approxTokens(evt.QueryWithPrompt)
	out := approxTokens(evt.AIMsg)
	record := domain.BillingRecord{
		MsgID:        evt.MsgID,
		SessionID:    evt.SessionID,
		InputTokens:  in,
		OutputTokens: out,
		Cost:         s.cost(in, out),
	}
	return writeDerived(ctx, s.log, evt, domain.SuffixBilling, record)
}

func (s *BillingService) cost(in, out int) float64 {
	c := float64(in)/1000*s.rates.InputPer1K + float64(out)/1000*s.rates.OutputPer1K
	return math.Round(c*1e6) / 1e6
}

func approxTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken
}
