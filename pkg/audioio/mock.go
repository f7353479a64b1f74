package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"
)

// MockSource is a mock audio source for testing.
// It generates synthetic audio (silence or sine wave) or replays fixed
// samples.
type MockSource struct {
	*streamSource
	gen *mockGenerator
}

type mockGenerator struct {
	cfg Config

	phase     float64
	frequency float64 // Hz, 0 = silence
	amplitude float64 // 0.0 to 1.0

	replay []int16
	limit  int // chunks, 0 = unlimited
	paced  bool

	produced  int
	ticker    *time.Ticker
	stop      chan struct{}
	closeOnce sync.Once
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*mockGenerator)

// WithSineWave configures the mock to generate a sine wave.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(g *mockGenerator) {
		g.frequency = frequency
		g.amplitude = amplitude
	}
}

// WithChunks ends the stream with io.EOF after n chunks.
func WithChunks(n int) MockSourceOption {
	return func(g *mockGenerator) { g.limit = n }
}

// WithSamples replays interleaved samples instead of generating them and
// ends the stream when they run out.
func WithSamples(samples []int16) MockSourceOption {
	return func(g *mockGenerator) { g.replay = samples }
}

// WithoutPacing emits chunks as fast as they are read instead of one per
// BufferDuration. Nothing is dropped.
func WithoutPacing() MockSourceOption {
	return func(g *mockGenerator) { g.paced = false }
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	g := &mockGenerator{
		cfg:       cfg,
		amplitude: 0.5,
		paced:     true,
	}
	for _, opt := range opts {
		opt(g)
	}

	m := &MockSource{gen: g}
	m.streamSource = newStreamSource(cfg, "mock", g.paced, logger, func(context.Context) (frameReader, error) {
		g.stop = make(chan struct{})
		g.closeOnce = sync.Once{}
		if g.paced {
			g.ticker = time.NewTicker(cfg.BufferDuration)
		}
		return g, nil
	})
	return m
}

func (g *mockGenerator) next() ([]int16, error) {
	if g.limit > 0 && g.produced >= g.limit {
		return nil, io.EOF
	}
	if g.ticker != nil {
		select {
		case <-g.stop:
			return nil, io.EOF
		case <-g.ticker.C:
		}
	} else {
		select {
		case <-g.stop:
			return nil, io.EOF
		default:
		}
	}

	n := g.cfg.BufferSize() * g.cfg.Channels
	if g.replay != nil {
		if len(g.replay) == 0 {
			return nil, io.EOF
		}
		n = min(n, len(g.replay))
		out := make([]int16, n)
		copy(out, g.replay[:n])
		g.replay = g.replay[n:]
		g.produced++
		return out, nil
	}

	g.produced++
	return g.generate(), nil
}

func (g *mockGenerator) generate() []int16 {
	bufferSize := g.cfg.BufferSize()
	samples := make([]int16, bufferSize*g.cfg.Channels)
	if g.frequency <= 0 {
		return samples
	}

	for i := 0; i < bufferSize; i++ {
		sample := g.amplitude * math.Sin(2*math.Pi*g.frequency*g.phase/float64(g.cfg.SampleRate))
		v := int16(sample * 32767)
		for ch := 0; ch < g.cfg.Channels; ch++ {
			samples[i*g.cfg.Channels+ch] = v
		}
		g.phase++
		if g.phase >= float64(g.cfg.SampleRate) {
			g.phase = 0
		}
	}
	return samples
}

func (g *mockGenerator) close() error {
	g.closeOnce.Do(func() {
		close(g.stop)
		if g.ticker != nil {
			g.ticker.Stop()
		}
	})
	return nil
}
