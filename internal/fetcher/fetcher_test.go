package fetcher_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ikanisa/dar-ingest/internal/fetcher"
	"github.com/ikanisa/dar-ingest/internal/logger"
)

const testUserAgent = "TestBot/1.0"

func newTestFetcher(t *testing.T, maxRetries int) *fetcher.Fetcher {
	t.Helper()

	return fetcher.New(fetcher.Options{
		Timeout:    2 * time.Second,
		MaxRetries: maxRetries,
		RetryDelay: time.Millisecond,
		UserAgent:  testUserAgent,
	}, logger.NewNoOp())
}

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><title>Flat in Sliema</title></html>"))
	}))
	defer server.Close()

	f := newTestFetcher(t, 2)

	result, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotUA != testUserAgent {
		t.Errorf("user agent = %q, want %q", gotUA, testUserAgent)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", result.StatusCode)
	}
	if !strings.Contains(result.HTML, "Flat in Sliema") {
		t.Errorf("body not returned: %q", result.HTML)
	}
	if result.FinalURL != server.URL {
		t.Errorf("final url = %q, want %q", result.FinalURL, server.URL)
	}
}

func TestFetchFollowsRedirects(t *testing.T) {
	t.Parallel()

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer target.Close()

	redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL+"/listing/42", http.StatusMovedPermanently)
	}))
	defer redirector.Close()

	f := newTestFetcher(t, 0)

	result, err := f.Fetch(context.Background(), redirector.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FinalURL != target.URL+"/listing/42" {
		t.Errorf("final url = %q, want %q", result.FinalURL, target.URL+"/listing/42")
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	f := newTestFetcher(t, 2)

	_, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestFetchExhaustsRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	f := newTestFetcher(t, 2)

	_, err := f.Fetch(context.Background(), server.URL)

	var fetchErr *fetcher.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error type = %T, want *fetcher.FetchError", err)
	}
	if fetchErr.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", fetchErr.Attempts)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if !strings.Contains(fetchErr.Last.Error(), "502") {
		t.Errorf("last error %q should carry the status", fetchErr.Last)
	}
}

func TestFetchNonHTMLIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	f := newTestFetcher(t, 3)

	_, err := f.Fetch(context.Background(), server.URL)
	if !errors.Is(err, fetcher.ErrNotHTML) {
		t.Fatalf("error = %v, want ErrNotHTML", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (hard error must not retry)", calls.Load())
	}
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	f := fetcher.New(fetcher.Options{
		Timeout:    20 * time.Millisecond,
		MaxRetries: 0,
		RetryDelay: time.Millisecond,
		UserAgent:  testUserAgent,
	}, logger.NewNoOp())

	start := time.Now()
	_, err := f.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Errorf("request was not aborted at the timeout boundary (took %v)", elapsed)
	}
}
