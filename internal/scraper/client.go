package scraper

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Client is an HTTP client for scraping. It is safe for concurrent use by
// multiple workers; headers are configured once at construction.
type Client struct {
	httpClient     *http.Client
	userAgent      string
	acceptLanguage string
	retries        int
	retryDelay     time.Duration
}

// ClientOptions configures a scraper client
type ClientOptions struct {
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration // bounds a single attempt, not the retry sequence
	Retries        int           // total attempts for transient failures
	RetryDelay     time.Duration // fixed delay between attempts
}

// NewClient creates a new scraper client
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Retries < 1 {
		opts.Retries = 1
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent:      opts.UserAgent,
		acceptLanguage: opts.AcceptLanguage,
		retries:        opts.Retries,
		retryDelay:     opts.RetryDelay,
	}
}

// Get fetches a URL and returns the response body, retrying transient
// failures (network errors, 5xx) up to the configured attempt count with a
// fixed delay between attempts. A 404/410 response is terminal and is
// reported as ErrNotFound without a retry.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retries; attempt++ {
		if attempt > 1 {
			log.Printf("[Scraper] Attempt %d/%d for %s after error: %v", attempt, c.retries, url, lastErr)
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, err := c.doGet(ctx, url)
		if err == nil {
			return body, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("all %d attempts failed for %s: %w", c.retries, url, lastErr)
}

// doGet performs a single GET attempt
func (c *Client) doGet(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &terminalError{fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if c.acceptLanguage != "" {
		req.Header.Set("Accept-Language", c.acceptLanguage)
	}
	req.Header.Set("Connection", "keep-alive")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to body read
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, &terminalError{ErrNotFound}
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("server error: status %d", resp.StatusCode)
	default:
		return nil, &terminalError{fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}

	var reader io.Reader = resp.Body

	// Handle gzip decompression
	if strings.Contains(resp.Header.Get("Content-Encoding"), "gzip") {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return content, nil
}

// terminalError marks failures that must not be retried
type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var te *terminalError
	return !errors.As(err, &te)
}
