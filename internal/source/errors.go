package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/mmcdole/gofeed"
)

// ErrorKind classifies why a feed could not be fetched.
type ErrorKind string

const (
	KindTimeout    ErrorKind = "timeout"
	KindNetwork    ErrorKind = "network"
	KindHTTPStatus ErrorKind = "http_status"
	KindParse      ErrorKind = "parse"
)

// FetchError is returned by RSSSource.Fetch for every failure.
type FetchError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Cause      error
}

func (e *FetchError) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}

	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

func classifyError(feedURL string, err error) *FetchError {
	fe := &FetchError{URL: feedURL, Cause: err}

	var (
		httpErr gofeed.HTTPError
		urlErr  *url.Error
		netErr  net.Error
	)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		fe.Kind = KindTimeout
	case errors.As(err, &httpErr):
		fe.Kind = KindHTTPStatus
		fe.StatusCode = httpErr.StatusCode
	case errors.As(err, &urlErr), errors.As(err, &netErr), errors.Is(err, context.Canceled):
		fe.Kind = KindNetwork
	default:
		fe.Kind = KindParse
	}

	return fe
}
