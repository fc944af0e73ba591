package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/retry"
	"github.com/desertthunder/songbridge/internal/shared"
	tu "github.com/desertthunder/songbridge/internal/testing"
)

func testCaches() *Caches {
	return NewCaches(shared.CacheConfig{
		MaxSize:   10,
		SearchTTL: shared.Duration{Duration: time.Minute},
		URLTTL:    shared.Duration{Duration: time.Minute},
		LyricTTL:  shared.Duration{Duration: time.Minute},
	})
}

func fastPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func TestCachedProvider(t *testing.T) {
	ctx := context.Background()
	track := tu.NewTrack("mock", "1", "晴天", []string{"周杰伦"}, 269000)

	t.Run("caches successful searches", func(t *testing.T) {
		mock := tu.NewMockProvider("mock")
		mock.SearchFunc = func(context.Context, string, int) (*models.SearchResult, error) {
			return &models.SearchResult{Tracks: []models.Track{track}, Total: 1}, nil
		}
		p := NewCachedProvider(mock, testCaches(), fastPolicy(), nil)

		for range 3 {
			res, err := p.Search(ctx, "晴天", 5)
			if err != nil || len(res.Tracks) != 1 {
				t.Fatalf("unexpected result %+v (err %v)", res, err)
			}
		}
		if n := mock.Calls("search"); n != 1 {
			t.Errorf("expected 1 upstream call, got %d", n)
		}

		if _, err := p.Search(ctx, "晴天", 6); err != nil {
			t.Fatal(err)
		}
		if n := mock.Calls("search"); n != 2 {
			t.Errorf("expected a different limit to miss the cache, got %d calls", n)
		}
	})

	t.Run("retries transient failures and reports attempts", func(t *testing.T) {
		mock := tu.NewMockProvider("mock")
		var calls atomic.Int32
		mock.ResolveFunc = func(ctx context.Context, tr models.Track, q models.Quality) (*models.StreamResult, error) {
			if calls.Add(1) < 3 {
				return nil, tu.Failure("mock", "url", shared.KindUpstreamServer)
			}
			return &models.StreamResult{URL: "http://x/1.mp3", ResolvedFrom: "mock"}, nil
		}

		var mu sync.Mutex
		var seen []retry.Attempt
		hook := func(provider, op string, a retry.Attempt) {
			if provider != "mock" || op != "url" {
				t.Errorf("unexpected hook labels %s/%s", provider, op)
			}
			mu.Lock()
			seen = append(seen, a)
			mu.Unlock()
		}

		p := NewCachedProvider(mock, testCaches(), fastPolicy(), hook)
		res, err := p.ResolveURL(ctx, track, models.QualityStandard)
		if err != nil || res.URL != "http://x/1.mp3" {
			t.Fatalf("unexpected result %+v (err %v)", res, err)
		}
		if len(seen) != 3 || seen[0].Kind != shared.KindUpstreamServer || seen[2].Err != nil {
			t.Errorf("expected 2 failures then a success, got %+v", seen)
		}
	})

	t.Run("does not cache failures", func(t *testing.T) {
		mock := tu.NewMockProvider("mock")
		fail := true
		mock.LyricFunc = func(ctx context.Context, tr models.Track) (*models.Lyric, error) {
			if fail {
				return nil, tu.Failure("mock", "lyric", shared.KindRejected)
			}
			return &models.Lyric{Lyric: "la"}, nil
		}
		p := NewCachedProvider(mock, testCaches(), fastPolicy(), nil)

		if _, err := p.GetLyric(ctx, track); !errors.Is(err, shared.ErrRejected) {
			t.Fatalf("expected rejected error, got %v", err)
		}
		if n := mock.Calls("lyric"); n != 1 {
			t.Errorf("expected terminal error not to be retried, got %d calls", n)
		}

		fail = false
		if l, err := p.GetLyric(ctx, track); err != nil || l.Lyric != "la" {
			t.Errorf("expected fresh call after failure, got %+v (err %v)", l, err)
		}
	})

	t.Run("empty stream url is an empty result", func(t *testing.T) {
		mock := tu.NewMockProvider("mock")
		mock.ResolveFunc = func(context.Context, models.Track, models.Quality) (*models.StreamResult, error) {
			return &models.StreamResult{}, nil
		}
		p := NewCachedProvider(mock, testCaches(), fastPolicy(), nil)
		if _, err := p.ResolveURL(ctx, track, models.QualityStandard); !errors.Is(err, shared.ErrEmptyResult) {
			t.Errorf("expected ErrEmptyResult, got %v", err)
		}
	})

	t.Run("deduplicates concurrent callers", func(t *testing.T) {
		mock := tu.NewMockProvider("mock")
		release := make(chan struct{})
		mock.SearchFunc = func(context.Context, string, int) (*models.SearchResult, error) {
			<-release
			return &models.SearchResult{Tracks: []models.Track{track}}, nil
		}
		p := NewCachedProvider(mock, testCaches(), fastPolicy(), nil)

		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := p.Search(ctx, "晴天", 5); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		if n := mock.Calls("search"); n != 1 {
			t.Errorf("expected 1 upstream call, got %d", n)
		}
	})

	t.Run("shares caches across providers by key", func(t *testing.T) {
		if SearchKey("netease", 10, "晴天") == SearchKey("qq", 10, "晴天") {
			t.Error("expected provider-scoped search keys")
		}
		if URLKey("a:1", models.QualityStandard) == URLKey("a:1", models.QualityHigher) {
			t.Error("expected quality-scoped url keys")
		}
	})

	t.Run("Unwrap", func(t *testing.T) {
		mock := tu.NewMockProvider("mock")
		if NewCachedProvider(mock, testCaches(), fastPolicy(), nil).Unwrap() != mock {
			t.Error("expected Unwrap to return the decorated provider")
		}
	})
}
