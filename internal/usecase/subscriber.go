package usecase

import (
	"context"
	"errors"
	"strings"

	"streaming-bot/internal/domain"
)

// DerivedRecord identifies the event log entry a subscriber wrote for a
// turn. Duplicate is set when the entry already existed.
type DerivedRecord struct {
	PK        string
	SK        string
	Duplicate bool
}

func validateChatEvent(evt domain.ChatEvent) error {
	if evt.EventType != domain.EventTypeChatMessage {
		return newError(ErrorInvalidInput, "unexpected_event_type", nil)
	}
	if strings.TrimSpace(evt.MsgID) == "" {
		return newError(ErrorInvalidInput, "missing_msg_id", nil)
	}
	if strings.TrimSpace(evt.SessionID) == "" {
		return newError(ErrorInvalidInput, "missing_session_id", nil)
	}
	return nil
}

// writeDerived appends a subscriber record under the turn's key. A record
// that already exists is reported, not treated as a failure.
func writeDerived(ctx context.Context, log EventLogger, evt domain.ChatEvent, suffix string, payload any) (DerivedRecord, error) {
	rec := DerivedRecord{PK: evt.SessionID, SK: domain.TurnKey(evt.MsgID, suffix)}
	if err := log.PutEvent(ctx, rec.PK, rec.SK, payload); err != nil {
		if errors.Is(err, domain.ErrDuplicateEvent) {
			rec.Duplicate = true
			return rec, nil
		}
		return rec, newError(ErrorInternal, "event_log_error", err)
	}
	return rec, nil
}
