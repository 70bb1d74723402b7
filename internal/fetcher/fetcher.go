// Package fetcher is the polite HTTP layer: rotating user-agents, robots
// compliance, per-host politeness delays, bounded retries with backoff, and
// redirect chain capture.
package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/ratcrawler/ratcrawler/internal/config"
	"github.com/ratcrawler/ratcrawler/internal/types"
)

// Result is a completed fetch.
type Result struct {
	URL            string   // final URL after redirects, normalized
	OriginalURL    string   // the URL that was requested
	RedirectChain  []string // every hop including the final URL; empty if none
	StatusCode     int
	Headers        http.Header
	Body           []byte // raw (decompressed) response bytes
	Text           string // body decoded to UTF-8
	Charset        string
	ResponseTime   time.Duration
	Attempts       int
	ContentType    string // Content-Type header value
}

// ContentHash is the MD5 of the raw body, hex encoded.
func (r *Result) ContentHash() string {
	sum := md5.Sum(r.Body)
	return hex.EncodeToString(sum[:])
}

// Fetcher issues polite HTTP GETs. Safe for concurrent use; the caller bounds
// parallelism with its worker pool.
type Fetcher struct {
	cfg       *config.FetcherConfig
	transport *http.Transport
	robots    *RobotsCache
	agents    *AgentPool
	throttle  *hostThrottle
	logger    *slog.Logger
}

// New creates a Fetcher.
func New(cfg *config.FetcherConfig, logger *slog.Logger) *Fetcher {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true, // decompression handled here, including brotli
	}

	agents := NewAgentPool(cfg.UserAgents)
	return &Fetcher{
		cfg:       cfg,
		transport: transport,
		robots:    NewRobotsCache(agents.Default(), cfg.RobotsCacheTTL, logger),
		agents:    agents,
		throttle:  newHostThrottle(cfg.PolitenessDelay),
		logger:    logger.With("component", "fetcher"),
	}
}

// Close releases idle connections.
func (f *Fetcher) Close() {
	f.transport.CloseIdleConnections()
}

// Fetch retrieves one URL, applying robots rules, politeness delays, and the
// retry policy. All failures come back as *types.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	norm, err := types.NormalizeURL(rawURL)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}
	host := types.Host(norm)

	if f.cfg.RespectRobotsTxt {
		allowed, crawlDelay := f.robots.Check(ctx, norm)
		if !allowed {
			return nil, &types.FetchError{URL: norm, Err: types.ErrBlocked}
		}
		// robots crawl-delay raises the per-host politeness floor
		if crawlDelay > f.cfg.PolitenessDelay {
			f.throttle.setDelay(host, crawlDelay)
		}
	}

	timeout := f.cfg.RequestTimeout
	social := f.isSocialHost(host)
	if social {
		timeout = f.cfg.SocialTimeout
	}

	var lastErr *types.FetchError
	for attempt := 1; attempt <= f.cfg.MaxRetries+1; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &types.FetchError{URL: norm, Err: types.ErrCrawlStopped}
		}
		if err := f.throttle.wait(ctx, host); err != nil {
			return nil, &types.FetchError{URL: norm, Err: err}
		}

		// Social hosts rotate to a fresh agent on 401/403 retries.
		altHeaders := social && attempt > 1
		res, ferr := f.doRequest(ctx, norm, timeout, altHeaders)
		if ferr == nil {
			res.Attempts = attempt
			return res, nil
		}

		lastErr = ferr
		retryable := ferr.Retryable
		if ferr.StatusCode == 401 || ferr.StatusCode == 403 {
			retryable = social
		}
		if !retryable || attempt > f.cfg.MaxRetries {
			break
		}

		delay := f.retryDelay(ferr, attempt)
		f.logger.Warn("retrying fetch",
			"url", norm,
			"attempt", attempt,
			"status", ferr.StatusCode,
			"delay", delay,
			"error", ferr.Err,
		)
		select {
		case <-ctx.Done():
			return nil, &types.FetchError{URL: norm, Err: types.ErrCrawlStopped}
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

// retryDelay is base×attempt×U(1,2); a 429 instead waits 10+U(0,10) seconds.
func (f *Fetcher) retryDelay(ferr *types.FetchError, attempt int) time.Duration {
	if ferr.StatusCode == http.StatusTooManyRequests {
		d := 10*time.Second + time.Duration(rand.Float64()*10*float64(time.Second))
		if ferr.RetryAfter > d {
			d = ferr.RetryAfter
		}
		return d
	}
	factor := 1.0 + rand.Float64() // U(1,2)
	return time.Duration(float64(f.cfg.BaseDelay) * float64(attempt) * factor)
}

// doRequest performs a single GET with redirect capture and body decoding.
func (f *Fetcher) doRequest(ctx context.Context, rawURL string, timeout time.Duration, altHeaders bool) (*Result, *types.FetchError) {
	var chain []string
	client := &http.Client{
		Transport: f.transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= f.cfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", f.cfg.MaxRedirects)
			}
			if len(chain) == 0 {
				chain = append(chain, types.MustNormalizeURL(via[0].URL.String()))
			}
			chain = append(chain, types.MustNormalizeURL(req.URL.String()))
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}

	ua := f.agents.Random()
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Connection", "keep-alive")
	if altHeaders {
		req.Header.Set("Referer", "https://www.google.com/")
		req.Header.Set("Sec-Fetch-Mode", "navigate")
	}

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err, Retryable: isRetryableNetErr(err)}
	}
	defer resp.Body.Close()

	finalURL := types.MustNormalizeURL(resp.Request.URL.String())
	if len(chain) > 0 && chain[len(chain)-1] != finalURL {
		chain = append(chain, finalURL)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &types.FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        errors.New("rate limited"),
			Retryable:  true,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode >= 500:
		return nil, &types.FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
			Retryable:  true,
		}
	case resp.StatusCode >= 400:
		return nil, &types.FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
			Retryable:  false,
		}
	}

	var reader io.Reader = resp.Body
	if f.cfg.MaxBodySize > 0 {
		reader = io.LimitReader(reader, f.cfg.MaxBodySize)
	}
	reader, err = decompressReader(resp.Header.Get("Content-Encoding"), reader)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err, Retryable: true}
	}

	text, cs := DecodeBody(body, resp.Header.Get("Content-Type"))

	return &Result{
		URL:           finalURL,
		OriginalURL:   rawURL,
		RedirectChain: chain,
		StatusCode:    resp.StatusCode,
		Headers:       resp.Header,
		Body:          body,
		Text:          text,
		Charset:       cs,
		ResponseTime:  elapsed,
		ContentType:   resp.Header.Get("Content-Type"),
	}, nil
}

func (f *Fetcher) isSocialHost(host string) bool {
	for _, s := range f.cfg.SocialHosts {
		if host == s || strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}

// decompressReader wraps the body with the decoder matching its encoding.
func decompressReader(encoding string, reader io.Reader) (io.Reader, error) {
	switch encoding {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// isRetryableNetErr reports whether a transport-level error warrants a retry.
func isRetryableNetErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// parseRetryAfter reads a Retry-After header in either seconds or HTTP-date
// form, capped at two minutes.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := time.ParseDuration(strings.TrimSpace(header) + "s"); err == nil {
		if secs > 2*time.Minute {
			return 2 * time.Minute
		}
		return secs
	}
	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		if d < 0 {
			return time.Second
		}
		if d > 2*time.Minute {
			return 2 * time.Minute
		}
		return d
	}
	return 0
}
