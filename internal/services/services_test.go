package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/songbridge/internal/shared"
)

// newUpstream serves the given handlers by exact path and fails the test on anything else.
func newUpstream(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := routes[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request to %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(server.Close)
	return server
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestNew(t *testing.T) {
	t.Run("builds every known provider", func(t *testing.T) {
		for _, id := range Known() {
			opts := Options{ClientID: "id", ClientSecret: "secret"}
			p, err := New(id, opts)
			if err != nil {
				t.Fatalf("New(%s) failed: %v", id, err)
			}
			if p.ID() != id {
				t.Errorf("expected ID %s, got %s", id, p.ID())
			}
		}
	})

	t.Run("rejects unknown provider", func(t *testing.T) {
		_, err := New("napster", Options{})
		if !errors.Is(err, shared.ErrUnknownProvider) {
			t.Errorf("expected ErrUnknownProvider, got %v", err)
		}
	})

	t.Run("spotify requires credentials", func(t *testing.T) {
		_, err := New(SpotifyID, Options{})
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestFromConfig(t *testing.T) {
	t.Run("registers providers in declaration order", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		registry, err := FromConfig(cfg, nil, nil)
		if err != nil {
			t.Fatalf("FromConfig failed: %v", err)
		}

		// spotify is disabled without credentials in the default config and is skipped
		want := []string{NeteaseID, KugouID, QQID, KuwoID, MiguID, YouTubeID}
		got := registry.IDs()
		if len(got) != len(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
			}
		}

		if registry.IsEnabled(YouTubeID) {
			t.Error("expected youtube to be registered but disabled")
		}
		if w := registry.QualityWeight(NeteaseID); w != 0.9 {
			t.Errorf("expected netease quality weight 0.9, got %v", w)
		}
	})

	t.Run("fails for enabled provider without credentials", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		pc := cfg.Providers[SpotifyID]
		pc.Enabled = true
		cfg.Providers[SpotifyID] = pc

		if _, err := FromConfig(cfg, nil, nil); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("youtube uses proxy_url", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		registry, err := FromConfig(cfg, nil, nil)
		if err != nil {
			t.Fatalf("FromConfig failed: %v", err)
		}
		p, err := registry.Get(YouTubeID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if yt := p.(*YouTubeProvider); yt.baseURL != "http://127.0.0.1:8080" {
			t.Errorf("expected proxy base URL, got %s", yt.baseURL)
		}
	})
}
