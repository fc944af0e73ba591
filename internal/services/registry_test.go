package services

import (
	"errors"
	"testing"

	"github.com/desertthunder/songbridge/internal/shared"
	tu "github.com/desertthunder/songbridge/internal/testing"
)

func TestRegistry(t *testing.T) {
	newRegistry := func(t *testing.T) *Registry {
		t.Helper()
		r := NewRegistry()
		for _, p := range []struct {
			id      string
			enabled bool
			weight  float64
		}{
			{"a", true, 0.9},
			{"b", false, 0.5},
			{"c", true, 0.7},
		} {
			if err := r.Register(tu.NewMockProvider(p.id), p.enabled, p.weight); err != nil {
				t.Fatalf("Register(%s) failed: %v", p.id, err)
			}
		}
		return r
	}

	t.Run("preserves declaration order", func(t *testing.T) {
		r := newRegistry(t)
		ids := r.IDs()
		if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
			t.Errorf("expected [a b c], got %v", ids)
		}
		enabled := r.Enabled()
		if len(enabled) != 2 || enabled[0] != "a" || enabled[1] != "c" {
			t.Errorf("expected [a c], got %v", enabled)
		}
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		r := newRegistry(t)
		err := r.Register(tu.NewMockProvider("a"), true, 0.5)
		if !errors.Is(err, shared.ErrDuplicateProvider) {
			t.Errorf("expected ErrDuplicateProvider, got %v", err)
		}
	})

	t.Run("rejects out of range weight", func(t *testing.T) {
		r := NewRegistry()
		if err := r.Register(tu.NewMockProvider("x"), true, 1.5); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("toggles providers", func(t *testing.T) {
		r := newRegistry(t)
		if err := r.SetEnabled("b", true); err != nil {
			t.Fatalf("SetEnabled failed: %v", err)
		}
		if !r.IsEnabled("b") {
			t.Error("expected b to be enabled")
		}
		if err := r.SetEnabled("zzz", true); !errors.Is(err, shared.ErrUnknownProvider) {
			t.Errorf("expected ErrUnknownProvider, got %v", err)
		}
	})

	t.Run("lookups", func(t *testing.T) {
		r := newRegistry(t)
		if _, err := r.Get("missing"); !errors.Is(err, shared.ErrUnknownProvider) {
			t.Errorf("expected ErrUnknownProvider, got %v", err)
		}
		if w := r.QualityWeight("c"); w != 0.7 {
			t.Errorf("expected 0.7, got %v", w)
		}
		if w := r.QualityWeight("missing"); w != 0 {
			t.Errorf("expected 0 for unknown provider, got %v", w)
		}
		info, err := r.Info("b")
		if err != nil || info.Enabled || info.QualityWeight != 0.5 {
			t.Errorf("unexpected info %+v (err %v)", info, err)
		}
		if list := r.List(); len(list) != 3 || list[2].ID != "c" {
			t.Errorf("unexpected list %+v", list)
		}
	})
}
