package shared

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./songbridge.db" {
			t.Errorf("expected database path ./songbridge.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Cache.MaxSize != 500 {
			t.Errorf("expected cache max size 500, got %d", config.Cache.MaxSize)
		}

		if config.Cache.SearchTTL.Duration != 10*time.Minute {
			t.Errorf("expected search ttl 10m, got %v", config.Cache.SearchTTL.Duration)
		}

		if config.Retry.MaxAttempts != 3 {
			t.Errorf("expected 3 retry attempts, got %d", config.Retry.MaxAttempts)
		}

		if config.Retry.AttemptTimeout.Duration != 8*time.Second {
			t.Errorf("expected attempt timeout 8s, got %v", config.Retry.AttemptTimeout.Duration)
		}

		if config.Matcher.MinScore != 0.5 {
			t.Errorf("expected min score 0.5, got %v", config.Matcher.MinScore)
		}

		if config.Fallback.Strategy != "auto" {
			t.Errorf("expected auto strategy, got %s", config.Fallback.Strategy)
		}

		if config.Providers["youtube"].ProxyURL != "http://127.0.0.1:8080" {
			t.Errorf("expected youtube proxy URL http://127.0.0.1:8080, got %s", config.Providers["youtube"].ProxyURL)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		content := `
order = ["kugou", "netease"]

[providers.netease]
enabled = false
quality_weight = 0.5

[retry]
max_attempts = 5
base_delay = "250ms"

[fallback]
strategy = "speed"
`
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Providers["netease"].Enabled {
			t.Error("expected netease to be disabled")
		}

		if config.Retry.MaxAttempts != 5 {
			t.Errorf("expected 5 attempts, got %d", config.Retry.MaxAttempts)
		}

		if config.Retry.BaseDelay.Duration != 250*time.Millisecond {
			t.Errorf("expected base delay 250ms, got %v", config.Retry.BaseDelay.Duration)
		}

		if config.Retry.AttemptTimeout.Duration != 8*time.Second {
			t.Errorf("unset attempt timeout should keep default, got %v", config.Retry.AttemptTimeout.Duration)
		}

		if config.Fallback.Strategy != "speed" {
			t.Errorf("expected speed strategy, got %s", config.Fallback.Strategy)
		}

		order := config.ProviderOrder()
		if order[0] != "kugou" || order[1] != "netease" {
			t.Errorf("expected declared order first, got %v", order)
		}
	})

	t.Run("LoadConfig with missing file", func(t *testing.T) {
		if _, err := LoadConfig("/nonexistent/config.toml"); err == nil {
			t.Error("loading nonexistent config should fail")
		}
	})

	t.Run("LoadConfig with bad duration", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[cache]\nurl_ttl = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected error for malformed duration")
		}
	})
}

func TestProviderOrder(t *testing.T) {
	config := &Config{
		Providers: map[string]ProviderConfig{"qq": {}, "migu": {}, "kuwo": {}, "netease": {}},
		Order:     []string{"netease", "unknown", "qq", "netease"},
	}

	got := config.ProviderOrder()
	want := []string{"netease", "qq", "kuwo", "migu"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestValidate(t *testing.T) {
	tc := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "cache size", mutate: func(c *Config) { c.Cache.MaxSize = 0 }, want: "cache.max_size"},
		{name: "url ttl", mutate: func(c *Config) { c.Cache.URLTTL.Duration = 0 }, want: "cache.url_ttl"},
		{name: "attempts", mutate: func(c *Config) { c.Retry.MaxAttempts = 0 }, want: "retry.max_attempts"},
		{name: "min score", mutate: func(c *Config) { c.Matcher.MinScore = 1.5 }, want: "matcher.min_score"},
		{name: "strategy", mutate: func(c *Config) { c.Fallback.Strategy = "random" }, want: "fallback.strategy"},
		{name: "search limit", mutate: func(c *Config) { c.Fallback.SearchLimit = 25 }, want: "fallback.search_limit"},
		{
			name: "quality weight",
			mutate: func(c *Config) {
				p := c.Providers["qq"]
				p.QualityWeight = 2
				c.Providers["qq"] = p
			},
			want: "providers.qq.quality_weight",
		},
		{
			name: "base url",
			mutate: func(c *Config) {
				p := c.Providers["kugou"]
				p.BaseURL = "not a url"
				c.Providers["kugou"] = p
			},
			want: "providers.kugou.base_url",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)

			err := config.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error to mention %q, got %v", tt.want, err)
			}
		})
	}
}
