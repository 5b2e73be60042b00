package crawlwork

import (
	"errors"
	"fmt"
)

// Sentinel errors for scheduler-level conditions (spec §7 tier 3 and
// the getWork/close contracts of §4.1).
var (
	// ErrBudgetExhausted is returned by a scheduler when the remaining
	// URL budget has reached zero; callers must treat it as
	// cancellation, never as a classified fetch failure (spec §4.1 step 2).
	ErrBudgetExhausted = errors.New("politecrawl: url budget exhausted")

	// ErrRidealongMismatch is the fatal tier-3 error raised when a
	// quiescence check finds the frontier and ridealong table out of
	// sync (spec §7 tier 3, Invariant R1/R2).
	ErrRidealongMismatch = errors.New("politecrawl: frontier/ridealong size mismatch")
)

// FetchErrorKind tags a classified fetch failure (spec §7's table).
type FetchErrorKind int

const (
	// KindNone means the fetch succeeded; never attached to a non-nil FetchError.
	KindNone FetchErrorKind = iota
	KindTimeout
	KindClient
	KindCertificate
	KindValue
	KindAttribute
	KindRuntime
	KindException
)

func (k FetchErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "TimeoutError"
	case KindClient:
		return "ClientError"
	case KindCertificate:
		return "CertificateError"
	case KindValue:
		return "ValueError"
	case KindAttribute:
		return "AttributeError"
	case KindRuntime:
		return "RuntimeError"
	case KindException:
		return "Exception"
	default:
		return "none"
	}
}

// FetchError is the classified failure returned in FetcherResponse.LastError.
// Its Error() string matches the classified-string vocabulary of spec §7
// exactly, so existing log-scraping and stats-key conventions keep working.
type FetchError struct {
	Kind   FetchErrorKind
	Detail string // the underlying type name + message, e.g. "dnsError: no such host"
	Err    error  // the wrapped transport/library error, if any
}

func (e *FetchError) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *FetchError) Unwrap() error { return e.Err }

// TruncationReason categorizes why a body was returned short of the
// server's full response (spec §3, §4.2 guarantee 2-4).
type TruncationReason int

const (
	TruncationNone TruncationReason = iota
	TruncationLength
	TruncationTime
	TruncationDisconnect
)

func (t TruncationReason) String() string {
	switch t {
	case TruncationLength:
		return "length"
	case TruncationTime:
		return "time"
	case TruncationDisconnect:
		return "disconnect"
	default:
		return "none"
	}
}
