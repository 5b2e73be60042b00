package crawlwork

import (
	"net/http"
	"time"
)

// FetcherResponse is the result of one fetch, successful or not (spec §3).
// On a failure with no body bytes, StatusCode, ResponseHeader and Body
// are the zero value and LastError is non-nil; on success LastError is
// nil. A time- or disconnect-truncated body is the one case carrying
// both a response and a LastError (see OK).
type FetcherResponse struct {
	StatusCode     int
	ResponseHeader http.Header
	Body           []byte
	PeerIP         string
	RequestHeaders http.Header

	TFirstByte time.Duration
	TLastByte  time.Duration

	TruncationReason TruncationReason
	LastError        *FetchError
}

// OK reports whether the fetch produced a response at all. A
// length-truncated body is still OK — exceeding maxPageSize is a flag
// on a success, not a failure (spec §4.2 guarantee 2). A time- or
// disconnect-truncated body carries both a non-empty Body and a
// non-nil LastError (spec §4.2 guarantees 3-4): the caller still has
// the partial prefix to work with even though OK reports false.
func (r *FetcherResponse) OK() bool {
	return r.LastError == nil
}

// FormatMillis renders a duration to millisecond precision the way
// spec §3 calls for ("wall-clock deltas ... formatted to millisecond
// precision"), e.g. 1.2344s -> "1.234s".
func FormatMillis(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
