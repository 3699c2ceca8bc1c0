package configutil

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Transport.DefaultBaseURL == "" {
		t.Fatalf("expected a default transport base url")
	}
	if cfg.Adapter.PreferredFrameMillis != 128 {
		t.Fatalf("expected default preferred frame millis 128, got %d", cfg.Adapter.PreferredFrameMillis)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	settings := map[string]any{
		"transport": map[string]any{
			"default_base_url": "wss://example.test/v1",
		},
		"adapter": map[string]any{
			"preferred_frame_millis": 64,
			"single_shot":            true,
		},
	}
	cfg, err := Load(settings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Transport.DefaultBaseURL != "wss://example.test/v1" {
		t.Fatalf("expected overridden base url, got %q", cfg.Transport.DefaultBaseURL)
	}
	if cfg.Adapter.PreferredFrameMillis != 64 {
		t.Fatalf("expected overridden preferred frame millis, got %d", cfg.Adapter.PreferredFrameMillis)
	}
	if !cfg.Adapter.SingleShot {
		t.Fatalf("expected single_shot true")
	}
}

func TestLoadRejectsEmptyBaseURL(t *testing.T) {
	settings := map[string]any{
		"transport": map[string]any{
			"default_base_url": "",
		},
	}
	if _, err := Load(settings); err == nil {
		t.Fatalf("expected an error for an empty transport dial target")
	}
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	settings := map[string]any{
		"transport": map[string]any{
			"bogus_key": "x",
		},
	}
	if _, err := Load(settings); err == nil {
		t.Fatalf("expected an error for an unknown nested schema key")
	}
}
