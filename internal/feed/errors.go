package feed

import "github.com/pkg/errors"

var (
	// ErrSourceUnavailable a fetch failed outright (network or backend error).
	ErrSourceUnavailable = errors.New("feed source unavailable")
	// ErrMalformedSource a response could not be parsed into the expected shape.
	ErrMalformedSource = errors.New("feed source malformed")
)

// FetchFailedPrefix marks an entry of the live-state errors list reporting a failed backend fetch.
const FetchFailedPrefix = "FETCH_FAILED"
