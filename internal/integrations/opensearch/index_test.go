package opensearch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	opensearchgo "github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
	"github.com/stretchr/testify/require"

	"streaming-bot/internal/domain"
)

type fakeAPI struct {
	searchResp *opensearchapi.SearchResp
	searchErr  error
	searchBody []byte
	searchIdx  []string

	indexErr    error
	indexedIdx  string
	indexedBody []byte

	exists     bool
	existsErr  error
	createErr  error
	created    bool
	createBody []byte
}

func (f *fakeAPI) Search(_ context.Context, req *opensearchapi.SearchReq) (*opensearchapi.SearchResp, error) {
	f.searchIdx = req.Indices
	f.searchBody, _ = io.ReadAll(req.Body)
	return f.searchResp, f.searchErr
}

func (f *fakeAPI) Index(_ context.Context, req opensearchapi.IndexReq) (*opensearchapi.IndexResp, error) {
	f.indexedIdx = req.Index
	f.indexedBody, _ = io.ReadAll(req.Body)
	return &opensearchapi.IndexResp{}, f.indexErr
}

func (f *fakeAPI) IndexExists(_ context.Context, _ string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeAPI) CreateIndex(_ context.Context, _ string, body io.Reader) error {
	f.created = true
	f.createBody, _ = io.ReadAll(body)
	return f.createErr
}

func hitsResp(hits ...opensearchapi.SearchHit) *opensearchapi.SearchResp {
	resp := &opensearchapi.SearchResp{}
	resp.Hits.Hits = hits
	return resp
}

func mustNewIndex(t *testing.T, api *fakeAPI, dim int) *Index {
	t.Helper()
	x, err := NewIndex(api, "docs-index", dim)
	require.NoError(t, err)
	return x
}

func TestNewIndex_Validates(t *testing.T) {
	_, err := NewIndex(nil, "docs-index", 3)
	require.ErrorContains(t, err, "must not be nil")

	_, err = NewIndex(&fakeAPI{}, " ", 3)
	require.ErrorContains(t, err, "must not be empty")

	x, err := NewIndex(&fakeAPI{}, "docs-index", 0)
	require.NoError(t, err)
	require.Equal(t, DefaultDimension, x.dimension)
}

func TestSearch_BuildsKNNQueryAndKeepsOrder(t *testing.T) {
	api := &fakeAPI{searchResp: hitsResp(
		opensearchapi.SearchHit{ID: "1", Score: 0.9, Source: json.RawMessage(`{"doc_text":"Refunds are processed within 5 days."}`)},
		opensearchapi.SearchHit{ID: "2", Score: 0.7, Source: json.RawMessage(`{"doc_text":"Policy applies to physical goods only."}`)},
	)}
	x := mustNewIndex(t, api, 3)

	hits, err := x.Search(context.Background(), []float64{0.1, 0.2, 0.3}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "Refunds are processed within 5 days.", hits[0].Text)
	require.Equal(t, "Policy applies to physical goods only.", hits[1].Text)
	require.InDelta(t, 0.9, hits[0].Score, 1e-6)
	require.Equal(t, []string{"docs-index"}, api.searchIdx)

	var q map[string]any
	require.NoError(t, json.Unmarshal(api.searchBody, &q))
	require.Equal(t, float64(2), q["size"])
	require.Equal(t, map[string]any{"excludes": []any{"doc_vector"}}, q["_source"])
	knn := q["query"].(map[string]any)["knn"].(map[string]any)["doc_vector"].(map[string]any)
	require.Equal(t, float64(2), knn["k"])
	require.Equal(t, []any{0.1, 0.2, 0.3}, knn["vector"])
}

func TestSearch_TruncatesToK(t *testing.T) {
	api := &fakeAPI{searchResp: hitsResp(
		opensearchapi.SearchHit{Source: json.RawMessage(`{"doc_text":"a"}`)},
		opensearchapi.SearchHit{Source: json.RawMessage(`{"doc_text":"b"}`)},
		opensearchapi.SearchHit{Source: json.RawMessage(`{"doc_text":"c"}`)},
	)}
	hits, err := mustNewIndex(t, api, 3).Search(context.Background(), []float64{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
}

func TestSearch_Errors(t *testing.T) {
	x := mustNewIndex(t, &fakeAPI{}, 3)
	_, err := x.Search(context.Background(), nil, 2)
	require.ErrorContains(t, err, "empty")
	_, err = x.Search(context.Background(), []float64{1}, 0)
	require.ErrorContains(t, err, "positive")

	x = mustNewIndex(t, &fakeAPI{searchErr: errors.New("403 forbidden")}, 3)
	_, err = x.Search(context.Background(), []float64{1, 2, 3}, 2)
	require.ErrorContains(t, err, "opensearch: search")

	x = mustNewIndex(t, &fakeAPI{searchResp: hitsResp(opensearchapi.SearchHit{ID: "x", Source: json.RawMessage(`[`)})}, 3)
	_, err = x.Search(context.Background(), []float64{1, 2, 3}, 2)
	require.ErrorContains(t, err, "decode hit")
}

func TestAdd_HappyPath(t *testing.T) {
	api := &fakeAPI{}
	x := mustNewIndex(t, api, 2)
	require.NoError(t, x.Add(context.Background(), domain.IndexedDocument{Text: "chunk", Vector: []float64{0.5, 0.5}}))
	require.Equal(t, "docs-index", api.indexedIdx)
	require.JSONEq(t, `{"doc_text":"chunk","doc_vector":[0.5,0.5]}`, string(api.indexedBody))
}

func TestAdd_DimensionMismatch(t *testing.T) {
	api := &fakeAPI{}
	err := mustNewIndex(t, api, 3).Add(context.Background(), domain.IndexedDocument{Text: "chunk", Vector: []float64{1}})
	require.ErrorContains(t, err, "dimension")
	require.Nil(t, api.indexedBody)
}

func TestAdd_IndexError(t *testing.T) {
	api := &fakeAPI{indexErr: errors.New("429")}
	err := mustNewIndex(t, api, 1).Add(context.Background(), domain.IndexedDocument{Text: "chunk", Vector: []float64{1}})
	require.ErrorContains(t, err, "index document")
}

func TestEnsureIndex_CreatesWhenMissing(t *testing.T) {
	api := &fakeAPI{}
	require.NoError(t, mustNewIndex(t, api, 8).EnsureIndex(context.Background()))
	require.True(t, api.created)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(api.createBody, &schema))
	vec := schema["mappings"].(map[string]any)["properties"].(map[string]any)["doc_vector"].(map[string]any)
	require.Equal(t, "knn_vector", vec["type"])
	require.Equal(t, float64(8), vec["dimension"])
	require.Equal(t, "cosinesimil", vec["method"].(map[string]any)["space_type"])
}

func TestEnsureIndex_SkipsWhenPresent(t *testing.T) {
	api := &fakeAPI{exists: true}
	require.NoError(t, mustNewIndex(t, api, 8).EnsureIndex(context.Background()))
	require.False(t, api.created)
}

func TestEnsureIndex_Errors(t *testing.T) {
	err := mustNewIndex(t, &fakeAPI{existsErr: errors.New("timeout")}, 8).EnsureIndex(context.Background())
	require.ErrorContains(t, err, "check index")

	err = mustNewIndex(t, &fakeAPI{createErr: errors.New("bad mapping")}, 8).EnsureIndex(context.Background())
	require.ErrorContains(t, err, "create index")
}

func newTestServerlessAPI(t *testing.T, status int, body string) *ServerlessAPI {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	client, err := opensearchapi.NewClient(opensearchapi.Config{
		Client: opensearchgo.Config{Addresses: []string{srv.URL}},
	})
	require.NoError(t, err)
	return &ServerlessAPI{client: client}
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	var statusErr interface{ HTTPStatusCode() int }
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, status, statusErr.HTTPStatusCode())
}

func TestServerlessAPI_ThrottledRepliesCarryStatus(t *testing.T) {
	throttled := `{"status":429,"error":"too many requests"}`
	ctx := context.Background()

	api := newTestServerlessAPI(t, http.StatusTooManyRequests, throttled)
	_, err := api.Search(ctx, &opensearchapi.SearchReq{Indices: []string{"docs-index"}})
	requireStatus(t, err, http.StatusTooManyRequests)

	_, err = api.Index(ctx, opensearchapi.IndexReq{Index: "docs-index", Body: strings.NewReader(`{}`)})
	requireStatus(t, err, http.StatusTooManyRequests)

	_, err = api.IndexExists(ctx, "docs-index")
	requireStatus(t, err, http.StatusTooManyRequests)

	err = api.CreateIndex(ctx, "docs-index", strings.NewReader(`{}`))
	requireStatus(t, err, http.StatusTooManyRequests)
}

func TestServerlessAPI_StatusSurvivesIndexWrapping(t *testing.T) {
	api := newTestServerlessAPI(t, http.StatusTooManyRequests, `{"status":429,"error":"too many requests"}`)
	x, err := NewIndex(api, "docs-index", 3)
	require.NoError(t, err)

	_, err = x.Search(context.Background(), []float64{1, 0, 0}, 2)
	require.ErrorContains(t, err, "opensearch: search")
	requireStatus(t, err, http.StatusTooManyRequests)
}

func TestServerlessAPI_IndexExistsNotFound(t *testing.T) {
	api := newTestServerlessAPI(t, http.StatusNotFound, "")
	exists, err := api.IndexExists(context.Background(), "docs-index")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestServerlessAPI_SearchHappyPath(t *testing.T) {
	api := newTestServerlessAPI(t, http.StatusOK,
		`{"took":1,"timed_out":false,"_shards":{"total":1,"successful":1,"skipped":0,"failed":0},"hits":{"total":{"value":1,"relation":"eq"},"max_score":0.9,"hits":[{"_index":"docs-index","_id":"a","_score":0.9,"_source":{"doc_text":"alpha"}}]}}`)
	x, err := NewIndex(api, "docs-index", 3)
	require.NoError(t, err)

	hits, err := x.Search(context.Background(), []float64{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "alpha", hits[0].Text)
	require.InDelta(t, 0.9, hits[0].Score, 1e-6)
}

func TestWithStatus(t *testing.T) {
	require.NoError(t, withStatus(&opensearchgo.Response{StatusCode: http.StatusOK}, nil))

	transport := errors.New("dial tcp: connection refused")
	require.Same(t, transport, withStatus(nil, transport))

	err := withStatus(&opensearchgo.Response{StatusCode: http.StatusServiceUnavailable}, errors.New("status: 503"))
	requireStatus(t, err, http.StatusServiceUnavailable)
	require.ErrorContains(t, err, "status: 503")
}
