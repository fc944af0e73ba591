package shared

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Registry errors
	ErrUnknownProvider   = fmt.Errorf("unknown provider")
	ErrDuplicateProvider = fmt.Errorf("provider already registered")
	ErrNoProviders       = fmt.Errorf("no enabled providers")
	ErrSourceMismatch    = fmt.Errorf("track belongs to another provider")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidTrack    = fmt.Errorf("invalid track")

	// Upstream error taxonomy. [ProviderError] matches these with [errors.Is].
	ErrNetwork        = fmt.Errorf("network error")
	ErrTimeout        = fmt.Errorf("operation timed out")
	ErrUpstreamServer = fmt.Errorf("upstream server error")
	ErrRateLimited    = fmt.Errorf("rate limited")
	ErrNotPlayable    = fmt.Errorf("not playable")
	ErrNoMatch        = fmt.Errorf("no matching track")
	ErrParse          = fmt.Errorf("malformed upstream payload")
	ErrRejected       = fmt.Errorf("request rejected by upstream")
	ErrEmptyResult    = fmt.Errorf("empty upstream result")
	ErrCancelled      = fmt.Errorf("request cancelled")
)

// ErrorKind classifies an upstream failure.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNetwork
	KindTimeout
	KindUpstreamServer
	KindRateLimited
	KindNotPlayable
	KindNoMatch
	KindParse
	KindRejected
	KindEmpty
	KindCancelled
)

var kindSentinels = map[ErrorKind]error{
	KindNetwork:        ErrNetwork,
	KindTimeout:        ErrTimeout,
	KindUpstreamServer: ErrUpstreamServer,
	KindRateLimited:    ErrRateLimited,
	KindNotPlayable:    ErrNotPlayable,
	KindNoMatch:        ErrNoMatch,
	KindParse:          ErrParse,
	KindRejected:       ErrRejected,
	KindEmpty:          ErrEmptyResult,
	KindCancelled:      ErrCancelled,
}

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindUpstreamServer:
		return "upstream_server"
	case KindRateLimited:
		return "rate_limited"
	case KindNotPlayable:
		return "not_playable"
	case KindNoMatch:
		return "no_match"
	case KindParse:
		return "parse"
	case KindRejected:
		return "rejected"
	case KindEmpty:
		return "empty"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Transient reports whether failures of this kind are worth retrying.
func (k ErrorKind) Transient() bool {
	switch k {
	case KindNetwork, KindTimeout, KindUpstreamServer, KindRateLimited:
		return true
	default:
		return false
	}
}

// ProviderError is a classified failure from a single provider operation.
//
// Raw transport errors are wrapped into a ProviderError at the provider boundary so callers only ever see a [ErrorKind].
type ProviderError struct {
	Provider string
	Op       string
	Kind     ErrorKind
	Status   int // HTTP status when the failure came from a response
	Err      error
}

// NewProviderError builds a [ProviderError] of the given kind.
func NewProviderError(provider, op string, kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, Kind: kind, Err: err}
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *ProviderError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// FromStatus classifies a non-2xx HTTP status.
func FromStatus(provider, op string, status int) *ProviderError {
	kind := KindRejected
	switch {
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout:
		kind = KindRateLimited
	case status >= 500:
		kind = KindUpstreamServer
	}
	return &ProviderError{Provider: provider, Op: op, Kind: kind, Status: status}
}

// FromTransport classifies an error returned by the HTTP client.
func FromTransport(provider, op string, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	kind := KindNetwork
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		kind = KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}
	return NewProviderError(provider, op, kind, err)
}

// Classify returns the [ErrorKind] of err, looking through wrapping.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}

	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}

	switch {
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	return KindUnknown
}

// IsRetryable reports whether err is transient: transport failures, timeouts, 5xx, 429 and 408.
func IsRetryable(err error) bool {
	return Classify(err).Transient()
}
