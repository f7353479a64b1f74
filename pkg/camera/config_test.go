package camera

import (
	"errors"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if errs := cfg.Validate(); len(errs) > 0 {
		t.Errorf("default config invalid: %v", errs)
	}
	if len(cfg.Backends) == 0 || cfg.Backends[len(cfg.Backends)-1] != BackendAny {
		t.Errorf("backends should end with the generic API: %v", cfg.Backends)
	}
}

func TestPresetsValid(t *testing.T) {
	names := PresetNames()
	if len(names) != 4 || names[0] != Preset720p {
		t.Errorf("names = %v", names)
	}
	for _, name := range names {
		cfg, ok := Preset(name)
		if !ok {
			t.Fatalf("preset %s missing", name)
		}
		if errs := cfg.Validate(); len(errs) > 0 {
			t.Errorf("preset %s invalid: %v", name, errs)
		}
	}
	if _, ok := Preset("nope"); ok {
		t.Error("unknown preset accepted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"negative device", func(c *Config) { c.Device = -1 }},
		{"no backends", func(c *Config) { c.Backends = nil }},
		{"unknown backend", func(c *Config) { c.Backends = []string{"gstreamer-ish"} }},
		{"tiny width", func(c *Config) { c.Width = 10 }},
		{"zero fps", func(c *Config) { c.Framerate = 0 }},
		{"quality", func(c *Config) { c.Quality = 101 }},
		{"attempts", func(c *Config) { c.OpenAttempts = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if errs := cfg.Validate(); len(errs) == 0 {
				t.Error("expected validation errors")
			}
		})
	}
}

func TestManager(t *testing.T) {
	m := NewManager(DefaultConfig())
	var applied []Config
	m.OnConfigChange = func(cfg Config) error {
		applied = append(applied, cfg)
		return nil
	}

	bad := DefaultConfig()
	bad.Quality = 0
	if err := m.SetConfig(bad); err == nil {
		t.Error("invalid config accepted")
	}
	if len(applied) != 0 {
		t.Error("callback ran for invalid config")
	}

	cur := m.Config()
	cur.Device = 2
	if err := m.SetConfig(cur); err != nil {
		t.Fatal(err)
	}
	if err := m.ApplyPreset(Preset720p); err != nil {
		t.Fatal(err)
	}
	got := m.Config()
	if got.Width != 1280 || got.Device != 2 {
		t.Errorf("preset should keep device: %+v", got)
	}
	if len(applied) != 2 {
		t.Errorf("callback ran %d times, want 2", len(applied))
	}
	if err := m.ApplyPreset("nope"); !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("ApplyPreset(nope) = %v, want ErrUnknownPreset", err)
	}
}
