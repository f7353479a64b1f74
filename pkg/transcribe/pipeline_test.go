package transcribe

import (
	"context"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/audioio"
)

type recorder struct {
	mu  sync.Mutex
	got []Transcript
}

func (r *recorder) Write(t Transcript) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, t)
	return nil
}

func (r *recorder) all() []Transcript {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Transcript(nil), r.got...)
}

func tone(seconds float64, rate int, amp float64) []int16 {
	n := int(seconds * float64(rate))
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amp * 32767 * math.Sin(2*math.Pi*220*float64(i)/float64(rate)))
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Interval = 0
	cfg.QueueSize = 1000
	cfg.LevelInterval = 0
	return cfg
}

func replay(samples []int16, rate int) *audioio.MockSource {
	acfg := audioio.DefaultConfig()
	acfg.SampleRate = rate
	return audioio.NewMockSource(acfg, log.Discard(), audioio.WithSamples(samples), audioio.WithoutPacing())
}

func runPipeline(t *testing.T, cfg Config, engine Engine, src audioio.Source) (*Pipeline, *recorder) {
	t.Helper()
	rec := &recorder{}
	p, err := New(cfg, engine, rec, log.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.Run(ctx, src); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return p, rec
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(DefaultConfig(), nil, nil, nil); err == nil {
		t.Error("Expected error without engine")
	}
	cfg := DefaultConfig()
	cfg.OverlapDuration = cfg.BufferDuration
	if _, err := New(cfg, &MockEngine{}, nil, nil); err == nil {
		t.Error("Expected error for overlap >= buffer")
	}
}

func TestPipeline_TranscribesSpeech(t *testing.T) {
	engine := &MockEngine{Text: "hello world", LogProb: -0.2}
	p, rec := runPipeline(t, testConfig(), engine, replay(tone(10, 16000, 0.3), 16000))

	got := rec.all()
	if len(got) == 0 {
		t.Fatal("expected at least one transcript")
	}
	first := got[0]
	if first.Text != "hello world" || !first.HasConf || math.Abs(first.Confidence-math.Exp(-0.2)) > 1e-9 {
		t.Errorf("unexpected transcript %+v", first)
	}
	if first.Session != p.Session() || first.Seq != 1 || first.Engine != "mock" {
		t.Errorf("unexpected metadata %+v", first)
	}
	if first.Audio != 4*time.Second {
		t.Errorf("audio duration = %v, want 4s", first.Audio)
	}

	_, lens := engine.Calls()
	if lens[0] != 64000 {
		t.Errorf("first window = %d samples, want 64000", lens[0])
	}
	for i, n := range lens {
		if n > 64000 {
			t.Errorf("window %d has %d samples, more than the buffer", i, n)
		}
	}

	st := p.Stats()
	if st.Transcriptions != int64(len(got)) || st.Chunks == 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestPipeline_ResamplesStereoInput(t *testing.T) {
	mono := tone(6, 48000, 0.3)
	stereo := make([]int16, 0, len(mono)*2)
	for _, s := range mono {
		stereo = append(stereo, s, s)
	}
	acfg := audioio.DefaultConfig()
	acfg.SampleRate = 48000
	acfg.Channels = 2
	src := audioio.NewMockSource(acfg, log.Discard(), audioio.WithSamples(stereo), audioio.WithoutPacing())

	engine := &MockEngine{Text: "stereo speech", LogProb: -0.1}
	runPipeline(t, testConfig(), engine, src)

	_, lens := engine.Calls()
	if len(lens) == 0 || lens[0] != 64000 {
		t.Errorf("expected 16kHz mono windows of 64000 samples, got %v", lens)
	}
}

func TestPipeline_SkipsSilence(t *testing.T) {
	engine := &MockEngine{Text: "should not run"}
	p, rec := runPipeline(t, testConfig(), engine, replay(make([]int16, 16000*9), 16000))

	if n, _ := engine.Calls(); n != 0 {
		t.Errorf("engine called %d times on silence", n)
	}
	if len(rec.all()) != 0 {
		t.Error("no transcripts expected for silence")
	}
	if p.Stats().Silent == 0 {
		t.Error("expected silent cycles to be counted")
	}
}

func TestPipeline_FiltersLowQuality(t *testing.T) {
	engine := &MockEngine{Text: "uh uh uh uh uh uh uh uh", LogProb: -0.1}
	p, rec := runPipeline(t, testConfig(), engine, replay(tone(6, 16000, 0.3), 16000))
	if len(rec.all()) != 0 {
		t.Error("repetitive text should be filtered")
	}
	if p.Stats().Filtered == 0 {
		t.Error("expected filtered count")
	}

	engine = &MockEngine{Text: "quiet mumble", LogProb: -3}
	_, rec = runPipeline(t, testConfig(), engine, replay(tone(6, 16000, 0.3), 16000))
	if len(rec.all()) != 0 {
		t.Error("low-confidence text should be filtered")
	}
}

func TestPipeline_SingleInflight(t *testing.T) {
	var active, peak atomic.Int32
	engine := &MockEngine{Func: func([]float32) ([]Segment, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		active.Add(-1)
		return []Segment{{Text: "busy engine", AvgLogProb: -0.1, HasLogProb: true}}, nil
	}}

	// Paced at real time so chunks keep arriving while the engine is busy.
	acfg := audioio.DefaultConfig()
	acfg.BufferDuration = 10 * time.Millisecond
	src := audioio.NewMockSource(acfg, log.Discard(), audioio.WithSamples(tone(1.5, 16000, 0.3)))

	cfg := testConfig()
	cfg.BufferDuration = 400 * time.Millisecond
	cfg.OverlapDuration = 100 * time.Millisecond
	cfg.MinDuration = 200 * time.Millisecond
	p, _ := runPipeline(t, cfg, engine, src)

	if peak.Load() != 1 {
		t.Errorf("peak concurrent inferences = %d, want 1", peak.Load())
	}
	if p.Stats().Skipped == 0 {
		t.Error("expected cycles skipped while busy")
	}
}

// markedTone returns samples whose stream position can be read back from
// any single value: pairs (+v, -v) with v = 1000 + pair index. Every even
// length chunk has zero mean, so no DC correction touches it.
func markedTone(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		v := int16(1000 + i/2)
		if i%2 == 1 {
			v = -v
		}
		out[i] = v
	}
	return out
}

func markedPosition(x float32) int {
	v := int(math.Round(float64(x) * 32768))
	if v < 0 {
		return 2*(-v-1000) + 1
	}
	return 2 * (v - 1000)
}

func TestPipeline_BacklogIsNotRetranscribed(t *testing.T) {
	type span struct{ start, n int }
	var (
		mu    sync.Mutex
		spans []span
	)
	engine := &MockEngine{Func: func(w []float32) ([]Segment, error) {
		mu.Lock()
		first := len(spans) == 0
		spans = append(spans, span{markedPosition(w[0]), len(w)})
		mu.Unlock()
		if first {
			// Long enough for more than a buffer of backlog to build up.
			time.Sleep(500 * time.Millisecond)
		}
		return []Segment{{Text: "steady speech", AvgLogProb: -0.1, HasLogProb: true}}, nil
	}}

	acfg := audioio.DefaultConfig()
	acfg.BufferDuration = 10 * time.Millisecond
	src := audioio.NewMockSource(acfg, log.Discard(), audioio.WithSamples(markedTone(32000)))

	cfg := testConfig()
	cfg.BufferDuration = 400 * time.Millisecond
	cfg.OverlapDuration = 100 * time.Millisecond
	cfg.MinDuration = 200 * time.Millisecond
	runPipeline(t, cfg, engine, src)

	mu.Lock()
	defer mu.Unlock()
	if len(spans) < 3 {
		t.Fatalf("got %d windows, want at least 3", len(spans))
	}
	overlap := cfg.OverlapSamples()
	for i := 1; i < len(spans); i++ {
		prevEnd := spans[i-1].start + spans[i-1].n
		if shared := prevEnd - spans[i].start; shared > overlap {
			t.Errorf("window %d starts at %d, sharing %d samples with the previous window (max %d)",
				i, spans[i].start, shared, overlap)
		}
	}
}

func TestPipeline_StopsOnCancel(t *testing.T) {
	acfg := audioio.DefaultConfig()
	acfg.BufferDuration = 10 * time.Millisecond
	src := audioio.NewMockSource(acfg, log.Discard(), audioio.WithSineWave(220, 0.3))

	p, err := New(testConfig(), &MockEngine{Text: "live"}, nil, log.Discard())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, src) }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v on cancel", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if p.Stats().Chunks == 0 {
		t.Error("expected chunks before cancel")
	}
}

func TestTranscribeAll(t *testing.T) {
	cfg := testConfig()
	engine := &MockEngine{Text: "offline text", LogProb: -0.1}
	rec := &recorder{}
	p, err := New(cfg, engine, rec, log.Discard())
	if err != nil {
		t.Fatal(err)
	}

	samples := tone(10, 16000, 0.3)
	var last, total int
	out, err := p.TranscribeAll(context.Background(),
		audioio.AudioChunk{Samples: samples, SampleRate: 16000, Channels: 1},
		func(done, n int) { last, total = done, n })
	if err != nil {
		t.Fatalf("TranscribeAll: %v", err)
	}
	if len(out) != 3 || len(rec.all()) != 3 {
		t.Fatalf("expected 3 transcripts, got %d (sink %d)", len(out), len(rec.all()))
	}
	if out[1].Offset != 3*time.Second || out[2].Offset != 6*time.Second {
		t.Errorf("offsets = %v, %v", out[1].Offset, out[2].Offset)
	}
	if last != total || total != len(samples) {
		t.Errorf("progress ended at %d/%d", last, total)
	}
}

func TestWindows(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		seconds float64
		want    []int
	}{
		{1, nil},
		{2, []int{0}},
		{4, []int{0}},
		{5, []int{0, 16000}},
		{7.5, []int{0, 48000, 56000}},
		{10, []int{0, 48000, 96000}},
	}
	for _, tt := range tests {
		got := cfg.Windows(int(tt.seconds * 16000))
		if len(got) != len(tt.want) {
			t.Errorf("%vs: windows %v, want %v", tt.seconds, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%vs: windows %v, want %v", tt.seconds, got, tt.want)
				break
			}
		}
	}
}

func TestNewEngine(t *testing.T) {
	ctx := context.Background()
	e, err := NewEngine(ctx, EngineConfig{Name: "mock"}, nil)
	if err != nil || e.Name() != "mock" {
		t.Fatalf("mock engine: %v", err)
	}
	if _, err := NewEngine(ctx, EngineConfig{Name: "nope"}, nil); err == nil || !strings.Contains(err.Error(), "unknown engine") {
		t.Errorf("expected unknown engine error, got %v", err)
	}
}
