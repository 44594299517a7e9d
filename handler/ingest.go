package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/aws/aws-lambda-go/events"

	"streaming-bot/internal/usecase"
)

type IngestUseCase interface {
	Ingest(ctx context.Context, refs []usecase.ObjectRef) (usecase.IngestReport, error)
}

// IngestHandler consumes S3 object-created notifications.
type IngestHandler struct {
	ingest IngestUseCase
}

func NewIngestHandler(uc IngestUseCase) (*IngestHandler, error) {
	if uc == nil {
		return nil, errors.New("handler: ingest use case must not be nil")
	}
	return &IngestHandler{ingest: uc}, nil
}

// Handle returns the joined per-object errors so the invocation is retried
// by the asynchronous event source.
func (h *IngestHandler) Handle(ctx context.Context, evt events.S3Event) error {
	refs := make([]usecase.ObjectRef, 0, len(evt.Records))
	for _, rec := range evt.Records {
		refs = append(refs, usecase.ObjectRef{
			Bucket: rec.S3.Bucket.Name,
			Key:    objectKey(rec.S3.Object),
		})
	}

	report, err := h.ingest.Ingest(ctx, refs)
	slog.Info("ingestion finished",
		"records", len(refs),
		"objects", report.Objects,
		"chunks", report.Chunks,
		"failed", len(report.Failed),
	)
	return err
}

// objectKey returns the decoded object key. Notification keys are
// form-encoded, so a space arrives as '+'.
func objectKey(obj events.S3Object) string {
	if obj.URLDecodedKey != "" {
		return obj.URLDecodedKey
	}
	key, err := url.QueryUnescape(obj.Key)
	if err != nil {
		return obj.Key
	}
	return key
}
