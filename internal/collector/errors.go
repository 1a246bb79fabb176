package collector

import (
	"errors"
	"fmt"
)

// Fetch failure kinds. Match them with errors.Is against any error returned by a Fetcher.
var (
	ErrTimeout   = errors.New("server response timeout")
	ErrNetwork   = errors.New("network error")
	ErrServer    = errors.New("server error")
	ErrEmptyFeed = errors.New("no data received from RSS feed")
	ErrFeedParse = errors.New("invalid RSS feed")
)

// FetchError carries the failure kind, the HTTP status for ErrServer and the underlying cause.
type FetchError struct {
	Kind       error
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.Kind == ErrServer:
		return fmt.Sprintf("RSS feed error: server error: %d", e.StatusCode)
	case e.Err != nil && e.Kind != ErrTimeout:
		return fmt.Sprintf("RSS feed error: %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("RSS feed error: %s", e.Kind)
	}
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newFetchError(kind, cause error) *FetchError {
	return &FetchError{Kind: kind, Err: cause}
}
