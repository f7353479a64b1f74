package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/audioio"
)

// Stats summarises a pipeline run.
type Stats struct {
	Session        string        `json:"session"`
	Chunks         int64         `json:"chunks"`
	Dropped        uint64        `json:"dropped"`
	Cycles         int64         `json:"cycles"`
	Transcriptions int64         `json:"transcriptions"`
	Filtered       int64         `json:"filtered"`
	Silent         int64         `json:"silent"`
	Skipped        int64         `json:"skipped"`
	Errors         int64         `json:"errors"`
	AvgProcessing  time.Duration `json:"avg_processing_ns"`
	AvgRTF         float64       `json:"avg_rtf"`
	Runtime        time.Duration `json:"runtime_ns"`
}

// Pipeline runs live transcription over an audio source.
type Pipeline struct {
	cfg     Config
	engine  Engine
	sink    Sink
	logger  *slog.Logger
	session string
	queue   *DropOldestQueue[audioio.AudioChunk]

	// Owned by the worker loop. head is the stream position of buf[0].
	buf       []int16
	head      int64
	busy      bool
	lastStart time.Time
	lastLevel time.Time
	lastChunk []int16

	inflight sync.WaitGroup

	mu      sync.Mutex
	stats   Stats
	started time.Time
	procSum time.Duration
	rtfSum  float64
	seq     int
}

// New creates a pipeline. sink may be nil.
func New(cfg Config, engine Engine, sink Sink, logger *slog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if engine == nil {
		return nil, errors.New("transcribe: engine is required")
	}
	if sink == nil {
		sink = Multi{}
	}
	session := uuid.NewString()
	return &Pipeline{
		cfg:     cfg,
		engine:  engine,
		sink:    sink,
		logger:  log.Or(logger).With("component", "transcribe", "session", session[:8]),
		session: session,
		queue:   NewDropOldestQueue[audioio.AudioChunk](cfg.QueueSize),
		stats:   Stats{Session: session},
	}, nil
}

// Session returns the run's unique ID.
func (p *Pipeline) Session() string { return p.session }

// Queue exposes the chunk queue so a capture callback can feed it directly.
func (p *Pipeline) Queue() *DropOldestQueue[audioio.AudioChunk] { return p.queue }

type result struct {
	segs  []Segment
	err   error
	start time.Time
	proc  time.Duration
	audio time.Duration
	until int64
}

// Run starts src, feeds the queue from it and transcribes until ctx is
// cancelled or the source ends. A source that ends cleanly returns nil.
func (p *Pipeline) Run(ctx context.Context, src audioio.Source) error {
	if err := src.Start(ctx); err != nil {
		return fmt.Errorf("start audio: %w", err)
	}
	defer src.Stop()

	p.logger.Info("transcription started",
		"engine", p.engine.Name(),
		"source", src.Name(),
		"buffer", p.cfg.BufferDuration,
		"overlap", p.cfg.OverlapDuration,
		"min", p.cfg.MinDuration,
		"interval", p.cfg.Interval)

	pumpErr := make(chan error, 1)
	go func() {
		pumpErr <- p.pump(ctx, src)
	}()

	err := p.Consume(ctx)
	perr := <-pumpErr
	if err == nil {
		err = perr
	}
	return err
}

func (p *Pipeline) pump(ctx context.Context, src audioio.Source) error {
	defer p.queue.Close()
	for {
		chunk, err := src.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				if e, ok := src.(interface{ Err() error }); ok && e.Err() != nil {
					return fmt.Errorf("audio source: %w", e.Err())
				}
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("audio source: %w", err)
		}
		if p.queue.Push(chunk) {
			p.logger.Debug("queue full, dropped oldest chunk", "dropped", p.queue.Dropped())
		}
	}
}

// Consume runs the worker loop over the queue until it is closed and
// drained or ctx is cancelled. Run calls it; use it directly when feeding
// Queue from elsewhere.
func (p *Pipeline) Consume(ctx context.Context) error {
	p.mu.Lock()
	p.started = time.Now()
	p.mu.Unlock()
	defer p.logStats()

	results := make(chan result, 1)
	for {
		select {
		case <-ctx.Done():
			p.inflight.Wait()
			return nil
		case r := <-results:
			p.finish(r)
			p.maybeStart(ctx, results, time.Now())
		case <-p.queue.Ready():
			p.drain(time.Now())
			if p.queue.Closed() && p.queue.Len() == 0 {
				p.inflight.Wait()
				select {
				case r := <-results:
					p.finish(r)
				default:
				}
				p.flush(ctx)
				return nil
			}
			p.maybeStart(ctx, results, time.Now())
		}
	}
}

func (p *Pipeline) drain(now time.Time) {
	limit := 2 * p.cfg.BufferSamples()
	for {
		chunk, ok := p.queue.TryPop()
		if !ok {
			break
		}
		mono := audioio.Prepare(chunk, p.cfg.SampleRate)
		p.buf = append(p.buf, mono...)
		if over := len(p.buf) - limit; over > 0 {
			p.dropFront(over)
		}
		p.lastChunk = mono
		p.mu.Lock()
		p.stats.Chunks++
		p.mu.Unlock()
	}

	if p.cfg.LevelInterval > 0 && now.Sub(p.lastLevel) >= p.cfg.LevelInterval && p.lastChunk != nil {
		p.lastLevel = now
		st := p.Stats()
		p.logger.Info("audio",
			"level_db", fmt.Sprintf("%.1f", audioio.LevelDB(p.lastChunk)),
			"buffered", len(p.buf),
			"avg_processing", st.AvgProcessing.Round(10*time.Millisecond))
	}
}

// maybeStart launches an inference when enough audio is buffered, none is
// in flight and the interval has passed.
func (p *Pipeline) maybeStart(ctx context.Context, results chan<- result, now time.Time) {
	size := p.cfg.BufferSamples()
	if len(p.buf) < size {
		return
	}
	if p.busy {
		p.mu.Lock()
		p.stats.Skipped++
		p.mu.Unlock()
		return
	}
	if !p.lastStart.IsZero() && now.Sub(p.lastStart) <= p.cfg.Interval {
		return
	}

	// The window is the newest size samples. Everything before its last
	// OverlapSamples is consumed once the cycle ends, including backlog
	// older than the window.
	window := make([]int16, size)
	copy(window, p.buf[len(p.buf)-size:])
	p.lastStart = now
	until := p.head + int64(len(p.buf)-p.cfg.OverlapSamples())

	if len(window) < p.cfg.MinSamples() {
		return
	}
	if audioio.RMS(window) < p.cfg.SilenceRMS {
		p.mu.Lock()
		p.stats.Silent++
		p.mu.Unlock()
		p.trimTo(until)
		return
	}

	p.busy = true
	p.inflight.Add(1)
	audio := p.duration(len(window))
	go func() {
		defer p.inflight.Done()
		start := time.Now()
		segs, err := p.engine.Transcribe(ctx, toFloat32(window))
		results <- result{segs: segs, err: err, start: start, proc: time.Since(start), audio: audio, until: until}
	}()
}

func (p *Pipeline) finish(r result) {
	p.busy = false
	p.trimTo(r.until)
	p.record(r, 0)
}

// flush transcribes what is left after the source ends.
func (p *Pipeline) flush(ctx context.Context) {
	if len(p.buf) <= p.cfg.OverlapSamples() || len(p.buf) < p.cfg.MinSamples() || ctx.Err() != nil {
		return
	}
	window := p.buf
	if size := p.cfg.BufferSamples(); len(window) > size {
		window = window[len(window)-size:]
	}
	if audioio.RMS(window) < p.cfg.SilenceRMS {
		p.mu.Lock()
		p.stats.Silent++
		p.mu.Unlock()
		return
	}
	start := time.Now()
	segs, err := p.engine.Transcribe(ctx, toFloat32(window))
	p.record(result{segs: segs, err: err, start: start, proc: time.Since(start), audio: p.duration(len(window))}, 0)
	p.dropFront(len(p.buf))
}

// trimTo drops buffered samples before stream position pos.
func (p *Pipeline) trimTo(pos int64) {
	p.dropFront(int(pos - p.head))
}

func (p *Pipeline) dropFront(n int) {
	n = min(n, len(p.buf))
	if n <= 0 {
		return
	}
	p.buf = append(p.buf[:0], p.buf[n:]...)
	p.head += int64(n)
}

func (p *Pipeline) duration(samples int) time.Duration {
	return time.Duration(float64(samples) / float64(p.cfg.SampleRate) * float64(time.Second))
}

// record applies the quality filter and writes accepted results. offset is
// the window position for offline runs.
func (p *Pipeline) record(r result, offset time.Duration) (Transcript, bool) {
	p.mu.Lock()
	p.stats.Cycles++
	p.mu.Unlock()

	if r.err != nil {
		if errors.Is(r.err, context.Canceled) {
			return Transcript{}, false
		}
		p.mu.Lock()
		p.stats.Errors++
		p.mu.Unlock()
		p.logger.Warn("transcription failed", "error", r.err)
		return Transcript{}, false
	}

	p.mu.Lock()
	p.procSum += r.proc
	if r.audio > 0 {
		p.rtfSum += r.proc.Seconds() / r.audio.Seconds()
	}
	p.mu.Unlock()

	text, conf, hasConf := Combine(r.segs)
	if text == "" {
		return Transcript{}, false
	}
	if why := p.cfg.Check(text, conf, hasConf); why != Accepted {
		p.mu.Lock()
		p.stats.Filtered++
		p.mu.Unlock()
		p.logger.Debug("filtered low quality result", "reason", string(why), "confidence", conf, "has_confidence", hasConf)
		return Transcript{}, false
	}

	p.mu.Lock()
	p.seq++
	p.stats.Transcriptions++
	t := Transcript{
		Session:    p.session,
		Seq:        p.seq,
		Text:       text,
		Confidence: conf,
		HasConf:    hasConf,
		At:         r.start.Add(r.proc),
		Offset:     offset,
		Audio:      r.audio,
		Processing: r.proc,
		Engine:     p.engine.Name(),
	}
	p.mu.Unlock()

	if err := p.sink.Write(t); err != nil {
		p.logger.Warn("transcript sink failed", "error", err)
	}
	return t, true
}

// Stats returns a snapshot of the run counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.stats
	st.Dropped = p.queue.Dropped()
	if n := st.Cycles - st.Errors; n > 0 {
		st.AvgProcessing = p.procSum / time.Duration(n)
		st.AvgRTF = p.rtfSum / float64(n)
	}
	if !p.started.IsZero() {
		st.Runtime = time.Since(p.started)
	}
	return st
}

func (p *Pipeline) logStats() {
	st := p.Stats()
	p.logger.Info("transcription stopped",
		"runtime", st.Runtime.Round(100*time.Millisecond),
		"chunks", st.Chunks,
		"dropped", st.Dropped,
		"transcriptions", st.Transcriptions,
		"filtered", st.Filtered,
		"silent", st.Silent,
		"skipped_busy", st.Skipped,
		"errors", st.Errors,
		"avg_processing", st.AvgProcessing.Round(10*time.Millisecond),
		"avg_rtf", fmt.Sprintf("%.2f", st.AvgRTF))
}
