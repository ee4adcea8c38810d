package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/stalecache/internal/cache"
	"github.com/any-hub/stalecache/internal/config"
	"github.com/any-hub/stalecache/internal/fingerprint"
)

func TestFetchKeepsAllowListedHeaders(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		w.Header().Set("Set-Cookie", "session=1")
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("hello"))
	}))
	defer upstream.Close()

	fetcher := newTestFetcher(t, "")
	entry, err := fetcher.Fetch(context.Background(), fingerprint.New("GET", upstream.URL+"/y", nil, nil))
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if entry.StatusCode != http.StatusAccepted || string(entry.Body) != "hello" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.Headers["Content-Type"] != "text/plain" || entry.Headers["Last-Modified"] == "" {
		t.Fatalf("allow-listed headers missing: %v", entry.Headers)
	}
	if _, ok := entry.Headers["Set-Cookie"]; ok {
		t.Fatalf("set-cookie must not be cached")
	}
	if _, ok := entry.Headers["X-Upstream"]; ok {
		t.Fatalf("unknown headers must not be cached")
	}
}

func TestFetchDoesNotFollowRedirects(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/final" {
			_, _ = w.Write([]byte("final"))
			return
		}
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer upstream.Close()

	fetcher := newTestFetcher(t, "")
	entry, err := fetcher.Fetch(context.Background(), fingerprint.New("GET", upstream.URL+"/start", nil, nil))
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if entry.StatusCode != http.StatusFound {
		t.Fatalf("expected raw 302, got %d", entry.StatusCode)
	}
}

func TestFetchForwardsFingerprintHeadersAndBody(t *testing.T) {
	type seen struct {
		method      string
		accept      string
		contentType string
		body        string
	}
	got := make(chan seen, 1)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- seen{r.Method, r.Header.Get("Accept"), r.Header.Get("Content-Type"), string(body)}
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	fetcher := newTestFetcher(t, upstream.URL)
	fp := fingerprint.New("POST", "/rpc?x=1", []fingerprint.Header{{Name: "Accept", Value: "application/json"}}, []byte("payload"))
	if _, err := fetcher.Fetch(context.Background(), fp); err != nil {
		t.Fatalf("fetch error: %v", err)
	}

	s := <-got
	if s.method != "POST" || s.accept != "application/json" || s.body != "payload" {
		t.Fatalf("unexpected upstream request: %+v", s)
	}
	if s.contentType != defaultBodyContentType {
		t.Fatalf("expected default content type, got %q", s.contentType)
	}
}

func TestFetchWrapsTransportErrors(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	target := upstream.URL
	upstream.Close()

	fetcher := newTestFetcher(t, "")
	_, err := fetcher.Fetch(context.Background(), fingerprint.New("GET", target+"/gone", nil, nil))
	var fetchErr *cache.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

func TestFetchRejectsRelativeURLWithoutBase(t *testing.T) {
	fetcher := newTestFetcher(t, "")
	_, err := fetcher.Fetch(context.Background(), fingerprint.New("GET", "/relative", nil, nil))
	var fetchErr *cache.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

func TestNewClientUsesConfigTimeout(t *testing.T) {
	cfg := &config.Config{
		Upstream: config.UpstreamConfig{
			UpstreamTimeout: config.Duration(45 * time.Second),
		},
	}

	client := NewClient(cfg)
	if client.Timeout != 45*time.Second {
		t.Fatalf("expected timeout 45s, got %s", client.Timeout)
	}
	if NewClient(nil).Timeout != DefaultTimeout {
		t.Fatalf("expected default timeout")
	}
}

func newTestFetcher(t *testing.T, base string) *HTTPFetcher {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	fetcher, err := NewHTTPFetcher(NewClient(nil), FetcherOptions{Base: base, Logger: logger})
	if err != nil {
		t.Fatalf("fetcher error: %v", err)
	}
	return fetcher
}
