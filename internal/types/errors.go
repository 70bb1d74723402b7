package types

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Sentinel errors for common control-flow outcomes.
var (
	ErrBlocked          = errors.New("blocked by robots.txt")
	ErrDuplicateURL     = errors.New("duplicate URL")
	ErrDuplicateContent = errors.New("duplicate content")
	ErrRecentlyCrawled  = errors.New("crawled within recrawl window")
	ErrDropPage         = errors.New("page dropped by meta directives")
	ErrMaxDepth         = errors.New("max depth exceeded")
	ErrInvalidURL       = errors.New("invalid URL")
	ErrCrawlStopped     = errors.New("crawl has been stopped")
)

// FetchError wraps errors that occur while fetching a URL.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ErrorType maps the failure to its crawl_errors classification. Status-less
// request failures (DNS, refused connections, broken transport) count as HTTP
// errors; TIMEOUT is reserved for deadline expiry.
func (e *FetchError) ErrorType() ErrorType {
	switch {
	case e.StatusCode >= 500:
		return ErrorHTTP
	case e.StatusCode >= 400:
		return ErrorClient
	case e.StatusCode > 0:
		return ErrorHTTP
	case IsTimeout(e.Err):
		return ErrorTimeout
	default:
		return ErrorHTTP
	}
}

// IsTimeout reports whether an error is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// ParseError wraps errors that occur while parsing a fetched page.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StoreError wraps errors from a backend database write.
type StoreError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error on %s (%s): %v", e.Backend, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
