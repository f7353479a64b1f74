package audioio

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

// startMock starts a mock source with 10ms chunks at 16kHz mono.
func startMock(t *testing.T, timeout time.Duration, opts ...MockSourceOption) (*MockSource, context.Context) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BufferDuration = 10 * time.Millisecond
	src := NewMockSource(cfg, nil, opts...)
	t.Cleanup(func() { src.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	if err := src.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	return src, ctx
}

func TestMockSourceLifecycle(t *testing.T) {
	src := NewMockSource(DefaultConfig(), nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := src.Start(ctx); err != nil {
			t.Fatalf("start #%d: %v", i+1, err)
		}
	}
	for i := 0; i < 2; i++ {
		if err := src.Stop(); err != nil {
			t.Fatalf("stop #%d: %v", i+1, err)
		}
	}
	if err := src.Close(); err != nil {
		t.Fatal(err)
	}
	if err := src.Start(ctx); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("start after close = %v, want io.ErrClosedPipe", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestMockSourceChunkFormat(t *testing.T) {
	src, ctx := startMock(t, 200*time.Millisecond)
	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	cfg := src.Config()
	if chunk.SampleRate != cfg.SampleRate || chunk.Channels != cfg.Channels {
		t.Errorf("format = %d Hz x%d, want %d Hz x%d", chunk.SampleRate, chunk.Channels, cfg.SampleRate, cfg.Channels)
	}
	if chunk.Frames() != cfg.BufferSize() {
		t.Errorf("frames = %d, want %d", chunk.Frames(), cfg.BufferSize())
	}
	if chunk.Duration() != 10*time.Millisecond {
		t.Errorf("duration = %v, want 10ms", chunk.Duration())
	}
	if RMS(chunk.Samples) != 0 {
		t.Error("default mock should be silent")
	}
}

func TestMockSourceSineWave(t *testing.T) {
	src, ctx := startMock(t, 200*time.Millisecond, WithSineWave(440, 0.5))
	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// 0.5 amplitude sine has an RMS near 0.5/sqrt(2) of full scale.
	if rms := RMS(chunk.Samples); rms < 10000 || rms > 13000 {
		t.Errorf("rms = %.0f, want about 11585", rms)
	}
}

func TestMockSourceStreamAndStats(t *testing.T) {
	src, ctx := startMock(t, 100*time.Millisecond)

	n := 0
	for {
		select {
		case _, ok := <-src.Stream():
			if ok {
				n++
				continue
			}
		case <-ctx.Done():
		}
		break
	}
	if n < 3 {
		t.Errorf("got %d chunks in 100ms, want at least 3", n)
	}

	stats := src.Stats()
	if stats.Backend != "mock" {
		t.Errorf("backend = %q, want mock", stats.Backend)
	}
	if stats.ChunksRead < int64(n) {
		t.Errorf("chunks_read = %d, want >= %d", stats.ChunksRead, n)
	}
}

func TestMockSourceReplay(t *testing.T) {
	samples := make([]int16, 400)
	for i := range samples {
		samples[i] = int16(i - 200)
	}
	src, ctx := startMock(t, time.Second, WithSamples(samples), WithoutPacing())

	all, err := ReadAll(ctx, src)
	if err != nil {
		t.Fatal(err)
	}
	if len(all.Samples) != len(samples) {
		t.Fatalf("replayed %d samples, want %d", len(all.Samples), len(samples))
	}
	for i := range samples {
		if all.Samples[i] != samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, all.Samples[i], samples[i])
		}
	}
	if all.Duration() != 25*time.Millisecond {
		t.Errorf("duration = %v, want 25ms", all.Duration())
	}
	if _, err := src.Read(ctx); err != io.EOF {
		t.Errorf("read after replay = %v, want io.EOF", err)
	}
}

func TestMockSourceChunkLimit(t *testing.T) {
	src, _ := startMock(t, time.Second, WithChunks(4))
	n := 0
	for range src.Stream() {
		n++
	}
	if n != 4 {
		t.Errorf("got %d chunks, want 4", n)
	}
}

func TestAudioChunkAppend(t *testing.T) {
	var all AudioChunk
	all.Append(AudioChunk{Samples: []int16{1, 2, 3, 4}, SampleRate: 8000, Channels: 2})
	all.Append(AudioChunk{Samples: []int16{5, 6}, SampleRate: 8000, Channels: 2})
	if all.SampleRate != 8000 || all.Channels != 2 || all.Frames() != 3 {
		t.Errorf("got %+v", all)
	}
	if (AudioChunk{Samples: []int16{1}}).Duration() != 0 {
		t.Error("chunk without a rate should have zero duration")
	}
}
