package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"streaming-bot/internal/domain"
)

const (
	defaultChunkSize    = 500
	defaultChunkOverlap = 100
)

type ObjectReader interface {
	ReadText(ctx context.Context, bucket, key string) (string, error)
}

type DocumentIndex interface {
	EnsureIndex(ctx context.Context) error
	Add(ctx context.Context, doc domain.IndexedDocument) error
}

// ObjectRef names one uploaded source document.
type ObjectRef struct {
	Bucket string
	Key    string
}

func (r ObjectRef) String() string { return r.Bucket + "/" + r.Key }

// IngestReport counts what one invocation added to the index.
type IngestReport struct {
	Objects int
	Chunks  int
	Failed  []ObjectRef
}

// IngestService turns uploaded documents into indexed chunks.
type IngestService struct {
	reader   ObjectReader
	embedder Embedder
	index    DocumentIndex
	splitter textsplitter.TextSplitter
}

// NewIngestService uses a recursive character splitter with 500 character
// chunks and 100 characters of overlap when splitter is nil.
func NewIngestService(r ObjectReader, e Embedder, idx DocumentIndex, splitter textsplitter.TextSplitter) (*IngestService, error) {
	if r == nil {
		return nil, errors.New("usecase: object reader must not be nil")
	}
	if e == nil {
		return nil, errors.New("usecase: embedder must not be nil")
	}
	if idx == nil {
		return nil, errors.New("usecase: document index must not be nil")
	}
	if splitter == nil {
		splitter = textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(defaultChunkSize),
			textsplitter.WithChunkOverlap(defaultChunkOverlap),
		)
	}
	return &IngestService{reader: r, embedder: e, index: idx, splitter: splitter}, nil
}

// Ingest makes sure the index exists and then processes every object. A
// failing object does not stop the others; all failures are joined into the
// returned error.
func (s *IngestService) Ingest(ctx context.Context, refs []ObjectRef) (IngestReport, error) {
	var report IngestReport
	if len(refs) == 0 {
		return report, nil
	}
	if err := s.index.EnsureIndex(ctx); err != nil {
		return report, upstreamError("ensure_index", err)
	}

	var errs []error
	for _, ref := range refs {
		n, err := s.ingestObject(ctx, ref)
		report.Chunks += n
		if err != nil {
			slog.Error("ingest object failed", "object", ref.String(), "chunks_added", n, "err", err)
			report.Failed = append(report.Failed, ref)
			errs = append(errs, fmt.Errorf("%s: %w", ref, err))
			continue
		}
		report.Objects++
		slog.Info("ingested object", "object", ref.String(), "chunks", n)
	}
	return report, errors.Join(errs...)
}

func (s *IngestService) ingestObject(ctx context.Context, ref ObjectRef) (int, error) {
	if strings.TrimSpace(ref.Bucket) == "" || strings.TrimSpace(ref.Key) == "" {
		return 0, newError(ErrorInvalidInput, "missing_object_ref", nil)
	}
	text, err := s.reader.ReadText(ctx, ref.Bucket, ref.Key)
	if err != nil {
		return 0, upstreamError("object_read", err)
	}
	chunks, err := s.splitter.SplitText(text)
	if err != nil {
		return 0, newError(ErrorInternal, "split_error", err)
	}

	added := 0
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		vector, err := s.embedder.Embed(ctx, chunk)
		if err != nil {
			return added, upstreamError("embedding", err)
		}
		if err := s.index.Add(ctx, domain.IndexedDocument{Text: chunk, Vector: vector}); err != nil {
			return added, upstreamError("index_add", err)
		}
		added++
	}
	return added, nil
}
