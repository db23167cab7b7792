package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigManager(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	mgr := NewConfigManager(cfg, path)

	t.Run("get returns string forms", func(t *testing.T) {
		got, err := mgr.Get("retention.window")
		if err != nil || got != "10m0s" {
			t.Errorf("Get() = %q, %v", got, err)
		}
		got, err = mgr.Get("classifier.default_original")
		if err != nil || got != "true" {
			t.Errorf("Get() = %q, %v", got, err)
		}
	})

	t.Run("set persists to disk", func(t *testing.T) {
		if err := mgr.Set("retention.window", "20m"); err != nil {
			t.Fatalf("Set() error: %v", err)
		}
		if cfg.Retention.Window != 20*time.Minute {
			t.Errorf("in-memory value not updated")
		}
		loaded, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if loaded.Retention.Window != 20*time.Minute {
			t.Errorf("saved value = %s", loaded.Retention.Window)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		if _, err := mgr.Get("google.folder"); !errors.Is(err, ErrUnknownKey) {
			t.Errorf("expected ErrUnknownKey, got %v", err)
		}
		if err := mgr.Set("google.folder", "x"); !errors.Is(err, ErrUnknownKey) {
			t.Errorf("expected ErrUnknownKey, got %v", err)
		}
	})

	t.Run("unparsable value leaves config unchanged", func(t *testing.T) {
		before := cfg.Download.MaxHeight
		if err := mgr.Set("download.max_height", "tall"); !errors.Is(err, ErrInvalidValue) {
			t.Errorf("expected ErrInvalidValue, got %v", err)
		}
		if cfg.Download.MaxHeight != before {
			t.Error("config mutated on failure")
		}
	})

	t.Run("value failing validation is rejected", func(t *testing.T) {
		if err := mgr.Set("environment", "staging"); !errors.Is(err, ErrInvalidValue) {
			t.Errorf("expected ErrInvalidValue, got %v", err)
		}
		if cfg.Environment != EnvProduction {
			t.Errorf("environment changed to %q", cfg.Environment)
		}
	})

	t.Run("keys are sorted and complete", func(t *testing.T) {
		keys := mgr.Keys()
		if len(keys) != len(fields) {
			t.Fatalf("expected %d keys, got %d", len(fields), len(keys))
		}
		for i := 1; i < len(keys); i++ {
			if keys[i-1] > keys[i] {
				t.Fatalf("keys not sorted at %d: %s > %s", i, keys[i-1], keys[i])
			}
		}
	})
}
