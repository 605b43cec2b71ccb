// Package fetch performs JSON GETs bounded by a per-attempt timeout and
// retried with linear backoff.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const maxBodyBytes = 8 << 20

// Options bounds a single GetJSON call.
type Options struct {
	// Retries is the number of additional attempts after the first one.
	Retries int
	// Timeout bounds each attempt. Zero means no per-attempt bound.
	Timeout time.Duration
	// RetryDelay is multiplied by the attempt number to get the wait before a retry.
	RetryDelay time.Duration
}

// DefaultOptions returns the options used when a caller has no preference.
func DefaultOptions() Options {
	return Options{
		Retries:    2,
		Timeout:    7 * time.Second,
		RetryDelay: 250 * time.Millisecond,
	}
}

// Client fetches JSON documents. It never caches responses.
type Client struct {
	http   *http.Client
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Client. A nil httpClient uses a client built on NewTransport(nil).
func NewClient(httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Transport: NewTransport(nil)}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:   httpClient,
		logger: logger,
		sleep:  sleepContext,
	}
}

// NewTransport clones the default transport and, when fsys is non-nil,
// serves file:// URLs from it.
func NewTransport(fsys fs.FS) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	if fsys != nil {
		t.RegisterProtocol("file", http.NewFileTransportFS(fsys))
	}
	return t
}

// GetJSON fetches url and decodes the JSON body into dst.
//
// Network errors, non-2xx statuses, timeouts and malformed bodies are retried
// up to opts.Retries times, waiting opts.RetryDelay*n before attempt n. When
// every attempt fails the result is an *ExhaustedError wrapping the last
// failure. A body that is valid JSON but does not fit dst is reported as a
// ParseFailure without retrying.
func (c *Client) GetJSON(ctx context.Context, url string, opts Options, dst any) error {
	if url == "" {
		return &Error{Kind: ConfigurationFailure, Err: errors.New("empty url")}
	}

	retries := max(opts.Retries, 0)
	var last error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, opts.RetryDelay*time.Duration(attempt)); err != nil {
				return &ExhaustedError{
					URL:      url,
					Attempts: attempt,
					Last:     &Error{Kind: NetworkFailure, URL: url, Err: err},
				}
			}
		}

		body, err := c.attempt(ctx, url, opts.Timeout)
		if err == nil {
			if err := json.Unmarshal(body, dst); err != nil {
				return &Error{Kind: ParseFailure, URL: url, Err: fmt.Errorf("decoding response: %w", err)}
			}
			return nil
		}

		last = err
		c.logger.Debug("fetch attempt failed",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", retries+1),
			zap.Stringer("kind", KindOf(err)),
			zap.Error(err))

		if KindOf(err) == ConfigurationFailure {
			return err
		}
		if ctx.Err() != nil {
			return &ExhaustedError{URL: url, Attempts: attempt + 1, Last: last}
		}
	}

	return &ExhaustedError{URL: url, Attempts: retries + 1, Last: last}
}

func (c *Client) attempt(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: ConfigurationFailure, URL: url, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/feed+json, application/json")
	req.Header.Set("Cache-Control", "no-cache, no-store")
	req.Header.Set("Pragma", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Kind: NetworkFailure, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &Error{Kind: HTTPFailure, URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &Error{Kind: NetworkFailure, URL: url, Err: fmt.Errorf("reading body: %w", err)}
	}
	if len(body) > maxBodyBytes {
		return nil, &Error{Kind: ParseFailure, URL: url, Err: fmt.Errorf("body exceeds %d bytes", maxBodyBytes)}
	}
	if !json.Valid(body) {
		return nil, &Error{Kind: ParseFailure, URL: url, Err: errors.New("body is not valid JSON")}
	}

	return body, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
