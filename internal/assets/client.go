// Package assets downloads the binary assets embedded in reports (system
// photos, inspection photos, logos).
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"facility-reports/internal/report"
)

const defaultMaxBytes = 10 << 20

// Asset is a downloaded binary.
type Asset struct {
	URL         string
	Data        []byte
	ContentType string
}

// FetchError describes why one asset could not be downloaded.
type FetchError struct {
	URL       string
	Status    int
	Retryable bool
	Err       error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Result pairs an asset with the error that prevented it, exactly one is set.
type Result struct {
	Asset Asset
	Err   *FetchError
}

// Fetcher resolves a URL to its bytes.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Asset, error)
}

type Client struct {
	http           *retryablehttp.Client
	timeout        time.Duration
	maxConcurrency int
	maxBytes       int64
	logger         zerolog.Logger
}

type ClientConfig struct {
	Timeout        time.Duration
	Retries        int
	RetryWait      time.Duration
	MaxConcurrency int
	MaxBytes       int64
	Logger         zerolog.Logger
}

var _ Fetcher = (*Client)(nil)

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 200 * time.Millisecond
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.Retries
	rc.RetryWaitMin = cfg.RetryWait
	rc.RetryWaitMax = 8 * cfg.RetryWait
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		http:           rc,
		timeout:        cfg.Timeout,
		maxConcurrency: cfg.MaxConcurrency,
		maxBytes:       cfg.MaxBytes,
		logger:         cfg.Logger,
	}
}

// Fetch downloads one asset, retrying transient failures. The returned error
// is always a *FetchError.
func (c *Client) Fetch(ctx context.Context, rawURL string) (Asset, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Asset{}, &FetchError{URL: rawURL, Err: errors.New("unsupported asset url")}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Asset{}, &FetchError{URL: rawURL, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Asset{}, &FetchError{URL: rawURL, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Asset{}, &FetchError{
			URL:       rawURL,
			Status:    resp.StatusCode,
			Retryable: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return Asset{}, &FetchError{URL: rawURL, Retryable: true, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(data)) > c.maxBytes {
		return Asset{}, &FetchError{URL: rawURL, Err: fmt.Errorf("asset larger than %d bytes", c.maxBytes)}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return Asset{URL: rawURL, Data: data, ContentType: contentType}, nil
}

// FetchAll downloads the distinct URLs concurrently, each under its own
// timeout. Failed downloads are logged and returned as warnings.
func (c *Client) FetchAll(ctx context.Context, urls []string) (map[string]Asset, []report.Warning) {
	return FetchAll(ctx, c, Unique(urls), c.maxConcurrency, c.timeout, c.logger)
}

// FetchAll runs f over urls with at most limit downloads in flight.
func FetchAll(ctx context.Context, f Fetcher, urls []string, limit int, timeout time.Duration, logger zerolog.Logger) (map[string]Asset, []report.Warning) {
	if limit <= 0 {
		limit = 1
	}
	p := pool.NewWithResults[Result]().WithMaxGoroutines(limit)
	for _, u := range urls {
		p.Go(func() Result {
			taskCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			asset, err := f.Fetch(taskCtx, u)
			if err != nil {
				var fe *FetchError
				if !errors.As(err, &fe) {
					fe = &FetchError{URL: u, Err: err}
				}
				return Result{Err: fe}
			}
			asset.URL = u
			return Result{Asset: asset}
		})
	}

	found := make(map[string]Asset, len(urls))
	var failed []*FetchError
	for _, res := range p.Wait() {
		if res.Err != nil {
			failed = append(failed, res.Err)
			continue
		}
		found[res.Asset.URL] = res.Asset
	}

	sort.Slice(failed, func(i, j int) bool { return failed[i].URL < failed[j].URL })
	warnings := make([]report.Warning, 0, len(failed))
	for _, fe := range failed {
		logger.Warn().Err(fe).Str("url", fe.URL).Bool("retryable", fe.Retryable).Msg("asset omitted")
		warnings = append(warnings, report.Warning{Kind: report.AssetFetchFailure, Subject: fe.URL, Message: fe.Error()})
	}
	return found, warnings
}

// Unique drops empty and repeated URLs, keeping first occurrences in order.
func Unique(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
