package feed_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"stayhub/internal/adapters/feed"
	"stayhub/internal/domain"
)

func src(url string) domain.Source { return domain.Source{Name: "source1", URL: url, Type: "json"} }

func TestClient_Fetch_ArrayPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(` [{"id":1},{"id":2,"name":"B"}, 3] `))
	}))
	defer ts.Close()

	items, err := feed.New(time.Second, 100).Fetch(context.Background(), src(ts.URL))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if string(items[1]) != `{"id":2,"name":"B"}` {
		t.Fatalf("items must stay verbatim, got %s", items[1])
	}
}

func TestClient_Fetch_ObjectPayloadIsOneItem(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"solo"}`))
	}))
	defer ts.Close()

	items, err := feed.New(time.Second, 100).Fetch(context.Background(), src(ts.URL))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(items) != 1 || string(items[0]) != `{"id":"solo"}` {
		t.Fatalf("unexpected items: %q", items)
	}
}

func TestClient_Fetch_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1, 2:
			// two transient failures
			w.WriteHeader(503)
		default:
			_, _ = w.Write([]byte(`[{"id":1}]`))
		}
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	items, err := feed.New(time.Second, 100).Fetch(ctx, src(ts.URL))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("unexpected items: %q", items)
	}
	if atomic.LoadInt32(&hits) < 3 {
		t.Fatalf("expected at least 3 calls due to retries, got %d", hits)
	}
}

func TestClient_Fetch_NonSuccessIsFetchError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	_, err := feed.New(time.Second, 100).Fetch(context.Background(), src(ts.URL))
	if !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	var fe *domain.FetchError
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusNotFound || fe.Source != "source1" {
		t.Fatalf("unexpected fetch error: %#v", err)
	}
}

func TestClient_Fetch_MalformedPayload(t *testing.T) {
	for _, body := range []string{`not json`, `"just a string"`, `[{"id":1},`, ``} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		_, err := feed.New(time.Second, 100).Fetch(context.Background(), src(ts.URL))
		ts.Close()
		if !errors.Is(err, domain.ErrFetch) {
			t.Fatalf("%q: expected fetch error, got %v", body, err)
		}
	}
}

func TestClient_Fetch_TimeoutAbortsWithoutRetry(t *testing.T) {
	var hits int32
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	_, err := feed.New(50*time.Millisecond, 100).Fetch(context.Background(), src(ts.URL))
	if !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("timeout must not be retried, got %d calls", n)
	}
}

func TestClient_Fetch_UnsupportedType(t *testing.T) {
	_, err := feed.New(time.Second, 100).Fetch(context.Background(), domain.Source{Name: "x", URL: "http://127.0.0.1:1", Type: "csv"})
	if !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}
