package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"streaming-bot/internal/domain"
)

// buildAugmentedPrompt embeds the question and the retrieved snippets
// verbatim. The output depends only on its arguments.
func buildAugmentedPrompt(question string, snippets []string) string {
	return strings.Join([]string{
		"I'm a virtual agent. Answer the question in <question> using the provided context in <context>.",
		"If the context does not contain the answer, say that you don't know.",
		"<question>" + question + "</question>",
		"<context>" + strings.Join(snippets, " ") + "</context>",
	}, "\n")
}

func buildSentimentPrompt(message string) string {
	return strings.Join([]string{
		"You are a chat admin policing chat messages. Analyse the message in <msg>.",
		"Return JSON only with keys sentiment, language and emotion, and nothing else.",
		"sentiment: positive or negative",
		"language: two letter ISO 639-1 code of the message language",
		"emotion: happy or sad",
		"<msg>" + message + "</msg>",
	}, "\n")
}

var validSentiments = map[string]bool{"positive": true, "negative": true}

// parseSentiment strictly decodes the classifier output. Text outside the
// outermost braces is ignored.
func parseSentiment(raw string) (domain.SentimentRecord, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, "{"); i > 0 {
		raw = raw[i:]
	}
	if j := strings.LastIndex(raw, "}"); j >= 0 && j < len(raw)-1 {
		raw = raw[:j+1]
	}

	var out domain.SentimentRecord
	dec := json.NewDecoder(bytes.NewBufferString(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return domain.SentimentRecord{}, fmt.Errorf("usecase: decode sentiment: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return domain.SentimentRecord{}, errors.New("usecase: decode sentiment: multiple JSON values")
		}
		return domain.SentimentRecord{}, fmt.Errorf("usecase: decode sentiment trailing data: %w", err)
	}

	out.Sentiment = strings.ToLower(strings.TrimSpace(out.Sentiment))
	out.Emotion = strings.ToLower(strings.TrimSpace(out.Emotion))
	out.Language = strings.ToLower(strings.TrimSpace(out.Language))
	if !validSentiments[out.Sentiment] {
		return domain.SentimentRecord{}, fmt.Errorf("usecase: unexpected sentiment %q", out.Sentiment)
	}
	if out.Emotion == "" {
		return domain.SentimentRecord{}, errors.New("usecase: sentiment missing emotion")
	}
	if len(out.Language) != 2 {
		return domain.SentimentRecord{}, fmt.Errorf("usecase: unexpected language %q", out.Language)
	}
	return out, nil
}
