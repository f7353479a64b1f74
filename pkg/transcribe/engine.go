package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Segment is one piece of text returned by a speech model.
type Segment struct {
	Text string

	// AvgLogProb is the mean token log-probability. Only meaningful when
	// HasLogProb is set.
	AvgLogProb float64
	HasLogProb bool
}

// Engine transcribes mono float32 audio in [-1, 1] at the configured
// sample rate.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, samples []float32) ([]Segment, error)
	Close() error
}

// EngineConfig selects and configures an engine.
type EngineConfig struct {
	Name       string // "whisper", "google" or "mock"
	ModelPath  string // whisper model file (ggml)
	Language   string // BCP-47 code, "" or "auto" to detect
	Threads    int    // whisper decoder threads, 0 = library default
	APIKey     string // Google API key; Application Default Credentials otherwise
	SampleRate int
}

// NewEngine builds the engine named in cfg. Missing models and credentials
// are reported as ErrModelMissing.
func NewEngine(ctx context.Context, cfg EngineConfig, logger *slog.Logger) (Engine, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultConfig().SampleRate
	}
	switch cfg.Name {
	case "whisper", "":
		return NewWhisperEngine(cfg, logger)
	case "google":
		return NewGoogleEngine(ctx, GoogleConfig{
			APIKey:     cfg.APIKey,
			Language:   cfg.Language,
			SampleRate: cfg.SampleRate,
		})
	case "mock":
		return &MockEngine{Text: "mock transcription", LogProb: -0.2}, nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: whisper, google, mock)", ErrUnknownEngine, cfg.Name)
	}
}

// MockEngine returns canned results. Set Func for per-call control.
type MockEngine struct {
	Text    string
	LogProb float64
	Delay   time.Duration
	Func    func(samples []float32) ([]Segment, error)

	mu    sync.Mutex
	calls int
	lens  []int
}

// Name returns "mock".
func (m *MockEngine) Name() string { return "mock" }

// Transcribe implements Engine.
func (m *MockEngine) Transcribe(ctx context.Context, samples []float32) ([]Segment, error) {
	m.mu.Lock()
	m.calls++
	m.lens = append(m.lens, len(samples))
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	if m.Func != nil {
		return m.Func(samples)
	}
	return []Segment{{Text: m.Text, AvgLogProb: m.LogProb, HasLogProb: true}}, nil
}

// Calls returns the number of Transcribe calls and the sample count of
// each.
func (m *MockEngine) Calls() (int, []int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls, append([]int(nil), m.lens...)
}

// Close implements Engine.
func (m *MockEngine) Close() error { return nil }

// toFloat32 scales PCM16 to [-1, 1).
func toFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768
	}
	return out
}

// toPCM16 is the inverse of toFloat32, clamping out-of-range values.
func toPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := s * 32768
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}
