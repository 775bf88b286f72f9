// Package fetcher retrieves remote listing pages over HTTP with bounded
// timeout and retry.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ikanisa/dar-ingest/internal/logger"
)

// maxResponseBodyBytes limits the size of fetched page responses.
const maxResponseBodyBytes = 10 * 1024 * 1024 // 10 MB

// ErrNotHTML is returned when a 2xx response carries a non-HTML content
// type. This is a hard error and is never retried.
var ErrNotHTML = errors.New("response is not HTML")

// FetchError is the terminal error raised after all retries are exhausted.
// It carries the last underlying error.
type FetchError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Last)
}

func (e *FetchError) Unwrap() error { return e.Last }

// Result holds a successfully fetched HTML page.
type Result struct {
	HTML        string
	FinalURL    string
	StatusCode  int
	ContentType string
}

// Options configures fetch behaviour.
type Options struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	UserAgent  string
}

// Fetcher fetches listing pages.
type Fetcher struct {
	client *http.Client
	opts   Options
	log    logger.Interface
}

// New creates a fetcher with the given options.
func New(opts Options, log logger.Interface) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		log:    log,
	}
}

// Fetch retrieves the page at rawURL. Network errors and non-2xx responses
// are retried up to MaxRetries times with the delay scaled by attempt
// number. A 2xx response with a non-HTML content type fails immediately.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	var lastErr error

	attempts := f.opts.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			return result, nil
		}

		if errors.Is(err, ErrNotHTML) {
			return nil, &FetchError{URL: rawURL, Attempts: attempt, Last: err}
		}

		lastErr = err
		f.log.Warn("fetch attempt failed",
			"url", rawURL,
			"attempt", attempt,
			"error", err.Error(),
		)

		if attempt < attempts {
			if sleepErr := sleepCtx(ctx, f.opts.RetryDelay*time.Duration(attempt)); sleepErr != nil {
				return nil, &FetchError{URL: rawURL, Attempts: attempt, Last: sleepErr}
			}
		}
	}

	return nil, &FetchError{URL: rawURL, Attempts: attempts, Last: lastErr}
}

// fetchOnce performs a single HTTP GET request.
func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (*Result, error) {
	reqCtx := ctx
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	req, reqErr := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, http.NoBody)
	if reqErr != nil {
		return nil, fmt.Errorf("create request: %w", reqErr)
	}

	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, doErr := f.client.Do(req)
	if doErr != nil {
		return nil, fmt.Errorf("http fetch: %w", doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTML(contentType) {
		return nil, fmt.Errorf("%w: %s", ErrNotHTML, contentType)
	}

	limited := io.LimitReader(resp.Body, maxResponseBodyBytes)

	body, readErr := io.ReadAll(limited)
	if readErr != nil {
		return nil, fmt.Errorf("read response body: %w", readErr)
	}

	return &Result{
		HTML:        string(body),
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
	}, nil
}

// isHTML reports whether a Content-Type header denotes an HTML document.
// An empty header is accepted since some listing hosts omit it.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

// sleepCtx sleeps for d or returns the context error if cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
