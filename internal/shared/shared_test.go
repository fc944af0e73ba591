package shared

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tc := []struct {
		name string
		ms   int64
		want string
	}{
		{name: "unknown", ms: 0, want: "--:--"},
		{name: "negative", ms: -5, want: "--:--"},
		{name: "under a minute", ms: 45_000, want: "0:45"},
		{name: "typical song", ms: 269_000, want: "4:29"},
		{name: "truncates millis", ms: 61_999, want: "1:01"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.ms); got != tt.want {
				t.Errorf("FormatDuration(%d) = %v, want %v", tt.ms, got, tt.want)
			}
		})
	}
}

func TestFormatLatency(t *testing.T) {
	if got := FormatLatency(0); got != "-" {
		t.Errorf("expected - for zero latency, got %s", got)
	}
	if got := FormatLatency(1234567 * time.Microsecond); got != "1.235s" {
		t.Errorf("expected 1.235s, got %s", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	if got := ParseLogLevel(" DEBUG "); got.String() != "debug" {
		t.Errorf("expected debug, got %s", got)
	}
	if got := ParseLogLevel("chatty"); got.String() != "info" {
		t.Errorf("expected info fallback, got %s", got)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tc := []struct {
		name      string
		err       error
		want      ErrorKind
		retryable bool
	}{
		{name: "nil", err: nil, want: KindUnknown},
		{name: "server error", err: FromStatus("qq", "search", http.StatusBadGateway), want: KindUpstreamServer, retryable: true},
		{name: "too many requests", err: FromStatus("qq", "search", http.StatusTooManyRequests), want: KindRateLimited, retryable: true},
		{name: "request timeout", err: FromStatus("qq", "search", http.StatusRequestTimeout), want: KindRateLimited, retryable: true},
		{name: "forbidden", err: FromStatus("qq", "search", http.StatusForbidden), want: KindRejected},
		{name: "not found", err: FromStatus("qq", "search", http.StatusNotFound), want: KindRejected},
		{name: "deadline", err: context.DeadlineExceeded, want: KindTimeout, retryable: true},
		{name: "cancelled", err: context.Canceled, want: KindCancelled},
		{name: "net timeout", err: timeoutErr{}, want: KindTimeout, retryable: true},
		{name: "wrapped sentinel", err: fmt.Errorf("lookup: %w", ErrNotPlayable), want: KindNotPlayable},
		{name: "parse", err: NewProviderError("kugou", "url", KindParse, errors.New("bad json")), want: KindParse},
		{name: "plain error", err: errors.New("boom"), want: KindUnknown},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestProviderError(t *testing.T) {
	t.Run("matches kind sentinel", func(t *testing.T) {
		err := fmt.Errorf("resolve: %w", FromStatus("netease", "url", http.StatusServiceUnavailable))
		if !errors.Is(err, ErrUpstreamServer) {
			t.Error("expected error to match ErrUpstreamServer")
		}
		if errors.Is(err, ErrRateLimited) {
			t.Error("did not expect error to match ErrRateLimited")
		}
	})

	t.Run("message includes status", func(t *testing.T) {
		err := FromStatus("netease", "url", http.StatusServiceUnavailable)
		want := "netease url: upstream_server (status 503)"
		if err.Error() != want {
			t.Errorf("expected %q, got %q", want, err.Error())
		}
	})

	t.Run("transport keeps existing classification", func(t *testing.T) {
		inner := NewProviderError("kuwo", "search", KindParse, errors.New("unexpected EOF"))
		got := FromTransport("kuwo", "search", fmt.Errorf("decode: %w", inner))
		if got != inner {
			t.Errorf("expected the wrapped ProviderError to pass through, got %v", got)
		}
	})

	t.Run("transport cancellation", func(t *testing.T) {
		got := FromTransport("migu", "lyric", context.Canceled)
		if got.Kind != KindCancelled {
			t.Errorf("expected cancelled, got %v", got.Kind)
		}
		if !errors.Is(got, context.Canceled) {
			t.Error("expected cause to be preserved")
		}
	})
}
