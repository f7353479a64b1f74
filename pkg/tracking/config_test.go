package tracking

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.FrameInterval != 33*time.Millisecond {
		t.Errorf("FrameInterval = %v, want 33ms", cfg.FrameInterval)
	}
	if cfg.SmoothingWindow != 8 {
		t.Errorf("SmoothingWindow = %d, want 8", cfg.SmoothingWindow)
	}
	if cfg.TitlebarHeight != 30 || cfg.StabilityThreshold != 10 {
		t.Errorf("drag guard = %v/%v, want 30/10", cfg.TitlebarHeight, cfg.StabilityThreshold)
	}
	if cfg.ResumeDwell != 500*time.Millisecond {
		t.Errorf("ResumeDwell = %v, want 500ms", cfg.ResumeDwell)
	}
	if cfg.Demo || cfg.DemoBlend {
		t.Error("demo data must be opt-in")
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		t.Errorf("default config invalid: %v", errs)
	}
}

func TestPresets(t *testing.T) {
	for _, name := range []string{"", "default", "smooth", "responsive"} {
		cfg, err := Preset(name)
		if err != nil {
			t.Errorf("Preset(%q): %v", name, err)
			continue
		}
		if errs := cfg.Validate(); len(errs) > 0 {
			t.Errorf("Preset(%q) invalid: %v", name, errs)
		}
	}
	if _, err := Preset("turbo"); err == nil {
		t.Error("expected error for unknown preset")
	}

	smooth, _ := Preset("smooth")
	responsive, _ := Preset("responsive")
	if smooth.SmoothingWindow <= responsive.SmoothingWindow {
		t.Error("smooth preset should keep more history than responsive")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero interval", func(c *Config) { c.FrameInterval = 0 }},
		{"short history", func(c *Config) { c.SmoothingWindow = MinHistory - 1 }},
		{"long history", func(c *Config) { c.SmoothingWindow = MaxHistory + 1 }},
		{"no failures allowed", func(c *Config) { c.MaxCaptureFailures = 0 }},
		{"blend threshold", func(c *Config) { c.DemoBlendThreshold = 1.5 }},
		{"negative titlebar", func(c *Config) { c.TitlebarHeight = -1 }},
		{"zero dwell", func(c *Config) { c.ResumeDwell = 0 }},
		{"negative redetect", func(c *Config) { c.RedetectInterval = -time.Second }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if errs := cfg.Validate(); len(errs) == 0 {
				t.Error("expected validation error")
			}
		})
	}
}
