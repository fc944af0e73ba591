package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/desertthunder/songbridge/internal/shared"
)

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func testPolicy(rec *sleepRecorder) Policy {
	p := DefaultPolicy()
	p.Sleep = rec.Sleep
	return p
}

func TestPolicy_schedule(t *testing.T) {
	b := DefaultPolicy().schedule()
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second, 3 * time.Second}

	for i, w := range want {
		if got := b.NextBackOff(); got != w {
			t.Errorf("delay %d = %v, want %v", i, got, w)
		}
	}
}

func TestDo(t *testing.T) {
	t.Run("succeeds after two server errors", func(t *testing.T) {
		rec := &sleepRecorder{}
		calls := 0

		got, err := Do(context.Background(), testPolicy(rec), func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", shared.FromStatus("netease", "url", http.StatusInternalServerError)
			}
			return "ok", nil
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if got != "ok" {
			t.Errorf("expected ok, got %q", got)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
		if len(rec.waits) != 2 {
			t.Fatalf("expected exactly 2 backoff sleeps, got %d", len(rec.waits))
		}
		if rec.waits[0] != time.Second || rec.waits[1] != 2*time.Second {
			t.Errorf("expected 1s then 2s, got %v", rec.waits)
		}
		for i, w := range rec.waits {
			if w > 3*time.Second {
				t.Errorf("sleep %d too long: %v", i, w)
			}
		}
	})

	t.Run("terminal error is not retried", func(t *testing.T) {
		rec := &sleepRecorder{}
		calls := 0

		_, err := Do(context.Background(), testPolicy(rec), func(context.Context) (int, error) {
			calls++
			return 0, shared.NewProviderError("qq", "url", shared.KindNotPlayable, nil)
		})
		if !errors.Is(err, shared.ErrNotPlayable) {
			t.Fatalf("expected ErrNotPlayable, got %v", err)
		}
		if calls != 1 || len(rec.waits) != 0 {
			t.Errorf("expected one call and no sleeps, got %d calls %d sleeps", calls, len(rec.waits))
		}
	})

	t.Run("exhaustion returns last error", func(t *testing.T) {
		rec := &sleepRecorder{}
		calls := 0

		_, err := Do(context.Background(), testPolicy(rec), func(context.Context) (int, error) {
			calls++
			if calls == 3 {
				return 0, shared.FromStatus("kugou", "search", http.StatusTooManyRequests)
			}
			return 0, shared.FromStatus("kugou", "search", http.StatusBadGateway)
		})
		if !errors.Is(err, shared.ErrRateLimited) {
			t.Errorf("expected the last error, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("attempt timeout is transient", func(t *testing.T) {
		rec := &sleepRecorder{}
		p := testPolicy(rec)
		p.MaxAttempts = 2
		p.AttemptTimeout = 20 * time.Millisecond

		var attempts []Attempt
		p = p.WithObserver(func(a Attempt) { attempts = append(attempts, a) })

		_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, errors.New("read aborted")
		})
		if !errors.Is(err, shared.ErrTimeout) {
			t.Fatalf("expected timeout, got %v", err)
		}
		if len(attempts) != 2 {
			t.Fatalf("expected 2 observed attempts, got %d", len(attempts))
		}
		if attempts[0].Kind != shared.KindTimeout {
			t.Errorf("expected timeout kind, got %v", attempts[0].Kind)
		}
	})

	t.Run("caller cancellation is not observed", func(t *testing.T) {
		p := DefaultPolicy()
		observed := 0
		p = p.WithObserver(func(Attempt) { observed++ })

		ctx, cancel := context.WithCancel(context.Background())
		_, err := Do(ctx, p, func(ctx context.Context) (int, error) {
			cancel()
			<-ctx.Done()
			return 0, ctx.Err()
		})
		if !errors.Is(err, shared.ErrCancelled) {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}
		if shared.IsRetryable(err) {
			t.Error("cancellation must not be retryable")
		}
		if observed != 0 {
			t.Errorf("cancelled attempt should not be observed, got %d", observed)
		}
	})

	t.Run("cancellation during backoff", func(t *testing.T) {
		p := DefaultPolicy()
		p.BaseDelay, p.MaxDelay = time.Hour, time.Hour

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := Do(ctx, p, func(context.Context) (int, error) {
			return 0, shared.FromStatus("migu", "search", http.StatusServiceUnavailable)
		})
		if !errors.Is(err, shared.ErrCancelled) {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}
		if time.Since(start) > time.Second {
			t.Error("backoff should stop when the context ends")
		}
	})

	t.Run("observer sees successes", func(t *testing.T) {
		var attempts []Attempt
		p := DefaultPolicy().WithObserver(func(a Attempt) { attempts = append(attempts, a) })

		if _, err := Do(context.Background(), p, func(context.Context) (int, error) { return 1, nil }); err != nil {
			t.Fatal(err)
		}
		if len(attempts) != 1 || attempts[0].Err != nil || attempts[0].Number != 1 {
			t.Errorf("unexpected attempts %+v", attempts)
		}
	})
}

func TestFromConfig(t *testing.T) {
	cfg := shared.DefaultConfig().Retry
	cfg.MaxAttempts = 5
	cfg.BaseDelay = shared.Duration{Duration: 100 * time.Millisecond}

	p := FromConfig(cfg)
	if p.MaxAttempts != 5 {
		t.Errorf("expected 5 attempts, got %d", p.MaxAttempts)
	}
	b := p.schedule()
	b.NextBackOff()
	if got := b.NextBackOff(); got != 200*time.Millisecond {
		t.Errorf("expected 200ms, got %v", got)
	}
	if p.AttemptTimeout != 8*time.Second {
		t.Errorf("expected 8s timeout, got %v", p.AttemptTimeout)
	}
}
