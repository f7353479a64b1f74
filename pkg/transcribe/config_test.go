package transcribe

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig invalid: %v", err)
	}
	if cfg.BufferSamples() != 64000 || cfg.OverlapSamples() != 16000 || cfg.MinSamples() != 24000 {
		t.Errorf("samples: buffer=%d overlap=%d min=%d", cfg.BufferSamples(), cfg.OverlapSamples(), cfg.MinSamples())
	}
	if err := AccurateConfig().Validate(); err != nil {
		t.Errorf("AccurateConfig invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero rate", func(c *Config) { c.SampleRate = 0 }},
		{"zero buffer", func(c *Config) { c.BufferDuration = 0 }},
		{"overlap too long", func(c *Config) { c.OverlapDuration = c.BufferDuration }},
		{"negative overlap", func(c *Config) { c.OverlapDuration = -time.Second }},
		{"min too long", func(c *Config) { c.MinDuration = c.BufferDuration + time.Second }},
		{"negative interval", func(c *Config) { c.Interval = -time.Second }},
		{"no queue", func(c *Config) { c.QueueSize = 0 }},
		{"confidence range", func(c *Config) { c.MinConfidence = 1.5 }},
		{"unique range", func(c *Config) { c.MinUniqueRate = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
