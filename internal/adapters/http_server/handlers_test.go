package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpserver "stayhub/internal/adapters/http_server"
	"stayhub/internal/app"
	"stayhub/internal/domain"
	"stayhub/internal/storage/memory"
)

type stubRunner struct {
	calls  int
	ctxErr error
}

func (s *stubRunner) Run(ctx context.Context) domain.RunReport {
	s.calls++
	s.ctxErr = ctx.Err()
	return domain.RunReport{RunID: "run-123", Status: domain.RunCompleted}
}

func (s *stubRunner) LastRun() domain.RunReport {
	if s.calls == 0 {
		return domain.RunReport{Status: domain.RunIdle}
	}
	return domain.RunReport{RunID: "run-123", Status: domain.RunCompleted}
}

type brokenRepo struct{ domain.ListingRepository }

func (brokenRepo) Query(context.Context, domain.Filter) ([]domain.Listing, error) {
	return nil, &domain.StoreError{Op: "query", Err: errors.New("connection refused")}
}

func seed(t *testing.T) *memory.Repo {
	t.Helper()
	repo := memory.New()
	ing := app.NewIngestionService(nil, repo, nil)
	ctx := context.Background()
	for _, it := range []struct{ src, raw string }{
		{"source1", `{"id":1,"name":"Hotel Paris","address":{"city":"Paris","country":"France"},"isAvailable":true,"priceForNight":150}`},
		{"source2", `{"id":2,"city":"Lisbon","availability":"true","priceSegment":"low","pricePerNight":90}`},
		{"source2", `{"id":3,"city":"Porto","availability":"false","priceSegment":"high","pricePerNight":300}`},
	} {
		_, err := ing.Upsert(ctx, "", it.src, json.RawMessage(it.raw))
		require.NoError(t, err)
	}
	return repo
}

func newServer(repo domain.ListingRepository, runner httpserver.Ingestor) http.Handler {
	s := httpserver.New(zerolog.Nop(), time.Second)
	s.MountHandlers(&httpserver.Handlers{
		Q:   app.NewQueryService(repo, nil, 0),
		Ing: runner,
	})
	return s.Mux()
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

type listBody struct {
	Count int              `json:"count"`
	Data  []domain.Listing `json:"data"`
}

func decodeList(t *testing.T, rr *httptest.ResponseRecorder) listBody {
	t.Helper()
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var b listBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &b))
	return b
}

func TestListData_Filters(t *testing.T) {
	h := newServer(seed(t), &stubRunner{})

	all := decodeList(t, get(t, h, "/api/data"))
	assert.Equal(t, 3, all.Count)
	assert.Len(t, all.Data, 3)

	paris := decodeList(t, get(t, h, "/api/data?city=paris"))
	require.Equal(t, 1, paris.Count)
	assert.Equal(t, "source1", paris.Data[0].Source)
	assert.JSONEq(t, `{"id":1,"name":"Hotel Paris","address":{"city":"Paris","country":"France"},"isAvailable":true,"priceForNight":150}`,
		string(paris.Data[0].RawData))

	avail := decodeList(t, get(t, h, "/api/data?availability=true"))
	assert.Equal(t, 2, avail.Count)

	priced := decodeList(t, get(t, h, "/api/data?minPrice=100&maxPrice=200"))
	require.Equal(t, 1, priced.Count)
	assert.Equal(t, "1", priced.Data[0].OriginalID)

	both := decodeList(t, get(t, h, "/api/data?source=source2&priceSegment=high"))
	require.Equal(t, 1, both.Count)
	assert.Equal(t, "3", both.Data[0].OriginalID)
}

func TestListData_EmptyParamsAreAbsent(t *testing.T) {
	h := newServer(seed(t), &stubRunner{})
	b := decodeList(t, get(t, h, "/api/data?city=&minPrice="))
	assert.Equal(t, 3, b.Count)
}

func TestListData_NoMatchesIsEmptyArray(t *testing.T) {
	h := newServer(seed(t), &stubRunner{})
	rr := get(t, h, "/api/data?city=Atlantis")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"count":0,"data":[]}`, rr.Body.String())
}

func TestListData_InvalidPriceIs400(t *testing.T) {
	h := newServer(seed(t), &stubRunner{})
	rr := get(t, h, "/api/data?minPrice=cheap")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "minPrice")
}

func TestListData_StoreFailureIs500(t *testing.T) {
	h := newServer(brokenRepo{memory.New()}, &stubRunner{})
	rr := get(t, h, "/api/data")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "connection refused")
}

func TestSourcesAndStats(t *testing.T) {
	h := newServer(seed(t), &stubRunner{})

	rr := get(t, h, "/api/data/sources")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `["source1","source2"]`, rr.Body.String())

	rr = get(t, h, "/api/data/stats")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"totalCount":3,"sourceCounts":[{"_id":"source1","count":1},{"_id":"source2","count":2}]}`, rr.Body.String())
}

func TestETagNotModified(t *testing.T) {
	h := newServer(seed(t), &stubRunner{})
	first := get(t, h, "/api/data/sources")
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/api/data/sources", nil)
	req.Header.Set("If-None-Match", etag)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotModified, rr.Code)
}

func TestIngest_RunsAndReturnsRunID(t *testing.T) {
	runner := &stubRunner{}
	h := newServer(memory.New(), runner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Ingestion completed"}`, rr.Body.String())
	assert.Equal(t, "run-123", rr.Header().Get("X-Run-ID"))
	assert.Equal(t, 1, runner.calls)
	assert.NoError(t, runner.ctxErr, "ingestion must not inherit request cancellation")
}

func TestHealthz(t *testing.T) {
	h := newServer(memory.New(), &stubRunner{})
	rr := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestIngestStatus(t *testing.T) {
	runner := &stubRunner{}
	h := newServer(memory.New(), runner)

	rr := get(t, h, "/api/ingest/status")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"idle"`)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/ingest", nil))
	rr = get(t, h, "/api/ingest/status")
	assert.Contains(t, rr.Body.String(), `"runId":"run-123"`)
	assert.Contains(t, rr.Body.String(), `"status":"completed"`)
}
