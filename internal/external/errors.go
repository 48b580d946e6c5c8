package external

import (
	"errors"
	"fmt"
)

// ErrFetchFailed is the root of every price source failure.
var ErrFetchFailed = errors.New("failed to fetch prices")

var (
	// ErrNetwork means no response was received.
	ErrNetwork = fmt.Errorf("%w: network error", ErrFetchFailed)
	// ErrHTTPStatus means the provider answered with a non-2xx status.
	ErrHTTPStatus = fmt.Errorf("%w: unexpected status", ErrFetchFailed)
	// ErrMalformedResponse means the body was missing expected fields or had the wrong shape.
	ErrMalformedResponse = fmt.Errorf("%w: malformed response", ErrFetchFailed)
)
