package audioio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-gaze/internal/log"
)

// frameReader yields blocks of interleaved samples in the source's native
// format.
type frameReader interface {
	next() ([]int16, error)
	close() error
}

// streamSource turns a frameReader into a Source. Live sources never block
// the reader: when the consumer falls behind, chunks are dropped and
// counted as overruns. File sources block instead so nothing is lost.
type streamSource struct {
	cfg    Config
	name   string
	live   bool
	logger *slog.Logger
	open   func(ctx context.Context) (frameReader, error)

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan AudioChunk
	stopCh   chan struct{}
	done     chan struct{}
	reader   frameReader
	err      error

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

func newStreamSource(cfg Config, name string, live bool, logger *slog.Logger, open func(context.Context) (frameReader, error)) *streamSource {
	return &streamSource{
		cfg:      cfg,
		name:     name,
		live:     live,
		logger:   log.Or(logger).With("component", "audio", "backend", name),
		open:     open,
		streamCh: make(chan AudioChunk, 32),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start opens the underlying reader and begins streaming.
func (s *streamSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	r, err := s.open(ctx)
	if err != nil {
		return err
	}
	s.reader = r
	s.running = true
	s.stopCh = make(chan struct{})
	s.streamCh = make(chan AudioChunk, 32)
	s.done = make(chan struct{})

	go s.readLoop(ctx, r, s.streamCh, s.stopCh, s.done)

	s.logger.Info("audio source started",
		"device", s.cfg.Device,
		"sample_rate", s.cfg.SampleRate,
		"channels", s.cfg.Channels)
	return nil
}

func (s *streamSource) readLoop(ctx context.Context, r frameReader, out chan<- AudioChunk, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer close(out)

	for {
		samples, err := r.next()
		if len(samples) > 0 {
			chunk := AudioChunk{Samples: samples, SampleRate: s.cfg.SampleRate, Channels: s.cfg.Channels}
			if !s.deliver(ctx, out, stop, chunk) {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
				s.logger.Warn("audio source ended", "error", err)
			} else {
				s.logger.Info("audio source exhausted", "chunks", s.chunksRead.Load())
			}
			return
		}
	}
}

func (s *streamSource) deliver(ctx context.Context, out chan<- AudioChunk, stop <-chan struct{}, chunk AudioChunk) bool {
	if s.live {
		select {
		case out <- chunk:
			s.count(chunk)
		default:
			s.overruns.Add(1)
		}
		select {
		case <-stop:
			return false
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}

	select {
	case out <- chunk:
		s.count(chunk)
		return true
	case <-stop:
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *streamSource) count(chunk AudioChunk) {
	s.chunksRead.Add(1)
	s.samplesRead.Add(int64(len(chunk.Samples)))
}

// Stop halts streaming and releases the reader.
func (s *streamSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	r, done := s.reader, s.done
	s.mu.Unlock()

	err := r.close()
	<-done
	s.logger.Info("audio source stopped")
	return err
}

// Read returns the next chunk, or io.EOF when the source ends.
func (s *streamSource) Read(ctx context.Context) (AudioChunk, error) {
	s.mu.Lock()
	ch := s.streamCh
	s.mu.Unlock()
	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-ch:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the chunk channel. It is closed when the source ends.
func (s *streamSource) Stream() <-chan AudioChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Err returns the error that ended the stream, if any.
func (s *streamSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *streamSource) Config() Config { return s.cfg }

func (s *streamSource) Name() string { return s.name }

// Close stops the source for good.
func (s *streamSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.Stop()
}

// Stats returns source statistics.
func (s *streamSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     s.name,
	}
}

var _ SourceWithStats = (*streamSource)(nil)

// ReadAll drains src into one slice of interleaved samples. src must be
// started.
func ReadAll(ctx context.Context, src Source) (AudioChunk, error) {
	cfg := src.Config()
	all := AudioChunk{SampleRate: cfg.SampleRate, Channels: cfg.Channels}
	for {
		chunk, err := src.Read(ctx)
		if errors.Is(err, io.EOF) {
			if e, ok := src.(interface{ Err() error }); ok && e.Err() != nil {
				return all, e.Err()
			}
			return all, nil
		}
		if err != nil {
			return all, err
		}
		all.Append(chunk)
	}
}
