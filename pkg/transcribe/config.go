// Package transcribe turns a stream of PCM16 audio into text through a
// speech model, a few seconds at a time.
//
// Audio chunks go through a bounded queue that drops the oldest chunk when
// full, so a slow model never stalls capture. A worker converts them to
// 16kHz mono, keeps a rolling buffer and starts at most one inference at a
// time. Results that pass the quality filter are written to the sinks.
package transcribe

import (
	"fmt"
	"time"
)

// Config holds the buffering and filtering parameters.
type Config struct {
	// Audio
	SampleRate int // Model input rate

	// Buffering
	BufferDuration  time.Duration // Audio handed to the model per cycle
	OverlapDuration time.Duration // Kept after a cycle so words are not cut
	MinDuration     time.Duration // Shortest buffer worth transcribing
	Interval        time.Duration // Minimum time between cycles
	QueueSize       int           // Chunks held between capture and worker

	// Filtering
	SilenceRMS    float64 // Buffers below this RMS (int16 units) are skipped
	MinConfidence float64 // Results below this confidence are dropped
	MinWords      int     // Repetition check applies above this many words
	MinUniqueRate float64 // Lowest unique/total word ratio accepted

	// Logging
	LevelInterval time.Duration // How often to log the input level
}

// DefaultConfig returns settings tuned for a small model on CPU.
func DefaultConfig() Config {
	return Config{
		SampleRate: 16000,

		BufferDuration:  4 * time.Second,
		OverlapDuration: 1 * time.Second,
		MinDuration:     1500 * time.Millisecond,
		Interval:        800 * time.Millisecond,
		QueueSize:       100,

		SilenceRMS:    100,
		MinConfidence: 0.35,
		MinWords:      4,
		MinUniqueRate: 0.3,

		LevelInterval: 5 * time.Second,
	}
}

// AccurateConfig trades latency for context: longer buffers and overlap.
func AccurateConfig() Config {
	cfg := DefaultConfig()
	cfg.BufferDuration = 8 * time.Second
	cfg.OverlapDuration = 2 * time.Second
	cfg.MinDuration = 3 * time.Second
	cfg.Interval = 2 * time.Second
	cfg.MinConfidence = 0.45
	return cfg
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("SampleRate must be positive, got %d", c.SampleRate)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("BufferDuration must be positive, got %v", c.BufferDuration)
	}
	if c.OverlapDuration < 0 || c.OverlapDuration >= c.BufferDuration {
		return fmt.Errorf("OverlapDuration must be in [0, BufferDuration), got %v", c.OverlapDuration)
	}
	if c.MinDuration <= 0 || c.MinDuration > c.BufferDuration {
		return fmt.Errorf("MinDuration must be in (0, BufferDuration], got %v", c.MinDuration)
	}
	if c.Interval < 0 {
		return fmt.Errorf("Interval must be non-negative, got %v", c.Interval)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("QueueSize must be positive, got %d", c.QueueSize)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("MinConfidence must be in [0, 1], got %v", c.MinConfidence)
	}
	if c.MinUniqueRate < 0 || c.MinUniqueRate > 1 {
		return fmt.Errorf("MinUniqueRate must be in [0, 1], got %v", c.MinUniqueRate)
	}
	return nil
}

func (c Config) samples(d time.Duration) int {
	return int(d.Seconds() * float64(c.SampleRate))
}

// BufferSamples is the number of samples handed to the model per cycle.
func (c Config) BufferSamples() int { return c.samples(c.BufferDuration) }

// OverlapSamples is the number of samples kept after a cycle.
func (c Config) OverlapSamples() int { return c.samples(c.OverlapDuration) }

// MinSamples is the shortest buffer worth transcribing.
func (c Config) MinSamples() int { return c.samples(c.MinDuration) }
