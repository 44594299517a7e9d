package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	opensearchgo "github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
	requestsigner "github.com/opensearch-project/opensearch-go/v4/signer/awsv2"

	"streaming-bot/internal/domain"
)

const (
	textField        = "doc_text"
	vectorField      = "doc_vector"
	DefaultDimension = 1536
	serverlessSvc    = "aoss"
)

// searchAPI is the minimal OpenSearch surface required by Index.
type searchAPI interface {
	Search(ctx context.Context, req *opensearchapi.SearchReq) (*opensearchapi.SearchResp, error)
	Index(ctx context.Context, req opensearchapi.IndexReq) (*opensearchapi.IndexResp, error)
	IndexExists(ctx context.Context, index string) (bool, error)
	CreateIndex(ctx context.Context, index string, body io.Reader) error
}

// Index is a k-NN vector index of text chunks.
type Index struct {
	api       searchAPI
	name      string
	dimension int
}

// NewIndex creates an Index over the named OpenSearch index.
func NewIndex(api searchAPI, name string, dimension int) (*Index, error) {
	if api == nil {
		return nil, errors.New("opensearch: api must not be nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("opensearch: index name must not be empty")
	}
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Index{api: api, name: name, dimension: dimension}, nil
}

// NewServerlessAPI returns a SigV4-signed client for an OpenSearch
// Serverless collection endpoint.
func NewServerlessAPI(cfg aws.Config, endpoint string) (*ServerlessAPI, error) {
	signer, err := requestsigner.NewSignerWithService(cfg, serverlessSvc)
	if err != nil {
		return nil, fmt.Errorf("opensearch: create signer: %w", err)
	}
	client, err := opensearchapi.NewClient(opensearchapi.Config{
		Client: opensearchgo.Config{
			Addresses: []string{endpoint},
			Signer:    signer,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opensearch: create client: %w", err)
	}
	return &ServerlessAPI{client: client}, nil
}

// NewServerlessIndex creates an Index backed by a Serverless collection.
func NewServerlessIndex(cfg aws.Config, endpoint, name string, dimension int) (*Index, error) {
	api, err := NewServerlessAPI(cfg, endpoint)
	if err != nil {
		return nil, err
	}
	return NewIndex(api, name, dimension)
}

type knnQuery struct {
	Size   int            `json:"size"`
	Source map[string]any `json:"_source"`
	Query  map[string]any `json:"query"`
}

type document struct {
	Text   string    `json:"doc_text"`
	Vector []float64 `json:"doc_vector,omitempty"`
}

// Search returns the k nearest chunks to vector, best first.
func (x *Index) Search(ctx context.Context, vector []float64, k int) ([]domain.SearchHit, error) {
	if len(vector) == 0 {
		return nil, errors.New("opensearch: search vector is empty")
	}
	if k <= 0 {
		return nil, errors.New("opensearch: k must be positive")
	}
	body, err := json.Marshal(knnQuery{
		Size:   k,
		Source: map[string]any{"excludes": []string{vectorField}},
		Query: map[string]any{
			"knn": map[string]any{
				vectorField: map[string]any{
					"vector": vector,
					"k":      k,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opensearch: marshal search: %w", err)
	}

	resp, err := x.api.Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{x.name},
		Body:    bytes.NewReader(body),
	})
	if err != nil {
		return nil, fmt.Errorf("opensearch: search: %w", err)
	}

	hits := make([]domain.SearchHit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		var doc document
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			return nil, fmt.Errorf("opensearch: decode hit %s: %w", h.ID, err)
		}
		hits = append(hits, domain.SearchHit{Text: doc.Text, Score: float64(h.Score)})
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Add indexes one chunk with its embedding.
func (x *Index) Add(ctx context.Context, doc domain.IndexedDocument) error {
	if len(doc.Vector) != x.dimension {
		return fmt.Errorf("opensearch: vector has dimension %d, index expects %d", len(doc.Vector), x.dimension)
	}
	body, err := json.Marshal(document{Text: doc.Text, Vector: doc.Vector})
	if err != nil {
		return fmt.Errorf("opensearch: marshal document: %w", err)
	}
	if _, err := x.api.Index(ctx, opensearchapi.IndexReq{
		Index: x.name,
		Body:  bytes.NewReader(body),
	}); err != nil {
		return fmt.Errorf("opensearch: index document: %w", err)
	}
	return nil
}

// EnsureIndex creates the index with the k-NN mapping if it does not exist.
func (x *Index) EnsureIndex(ctx context.Context) error {
	exists, err := x.api.IndexExists(ctx, x.name)
	if err != nil {
		return fmt.Errorf("opensearch: check index: %w", err)
	}
	if exists {
		return nil
	}
	body, err := json.Marshal(indexSchema(x.dimension))
	if err != nil {
		return fmt.Errorf("opensearch: marshal schema: %w", err)
	}
	if err := x.api.CreateIndex(ctx, x.name, bytes.NewReader(body)); err != nil {
		return fmt.Errorf("opensearch: create index: %w", err)
	}
	return nil
}

func indexSchema(dimension int) map[string]any {
	return map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				textField: map[string]any{"type": "text"},
				vectorField: map[string]any{
					"type":      "knn_vector",
					"dimension": dimension,
					"method": map[string]any{
						"engine":     "nmslib",
						"space_type": "cosinesimil",
						"name":       "hnsw",
						"parameters": map[string]any{"ef_construction": 512, "m": 16},
					},
				},
			},
		},
		"settings": map[string]any{
			"index": map[string]any{
				"number_of_shards": 2,
				"knn.algo_param":   map[string]any{"ef_search": 512},
				"knn":              true,
			},
		},
	}
}

// StatusError is a non-2xx reply from the cluster.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("opensearch: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("opensearch: unexpected status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

func (e *StatusError) HTTPStatusCode() int { return e.StatusCode }

// withStatus attaches the reply status to err. Transport failures carry no
// response and pass through unchanged.
func withStatus(resp *opensearchgo.Response, err error) error {
	if err == nil && (resp == nil || !resp.IsError()) {
		return nil
	}
	if resp == nil || resp.StatusCode < http.StatusMultipleChoices {
		return err
	}
	return &StatusError{StatusCode: resp.StatusCode, Err: err}
}

// ServerlessAPI narrows *opensearchapi.Client to the calls Index makes.
type ServerlessAPI struct {
	client *opensearchapi.Client
}

func (a *ServerlessAPI) Search(ctx context.Context, req *opensearchapi.SearchReq) (*opensearchapi.SearchResp, error) {
	resp, err := a.client.Search(ctx, req)
	if err := withStatus(resp.Inspect().Response, err); err != nil {
		return nil, err
	}
	return resp, nil
}

func (a *ServerlessAPI) Index(ctx context.Context, req opensearchapi.IndexReq) (*opensearchapi.IndexResp, error) {
	resp, err := a.client.Index(ctx, req)
	if err := withStatus(resp.Inspect().Response, err); err != nil {
		return nil, err
	}
	return resp, nil
}

func (a *ServerlessAPI) IndexExists(ctx context.Context, index string) (bool, error) {
	resp, err := a.client.Indices.Exists(ctx, opensearchapi.IndicesExistsReq{Indices: []string{index}})
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if err := withStatus(resp, err); err != nil {
		return false, err
	}
	return true, nil
}

func (a *ServerlessAPI) CreateIndex(ctx context.Context, index string, body io.Reader) error {
	resp, err := a.client.Indices.Create(ctx, opensearchapi.IndicesCreateReq{Index: index, Body: body})
	return withStatus(resp.Inspect().Response, err)
}
