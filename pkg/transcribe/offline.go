package transcribe

import (
	"context"
	"time"

	"github.com/teslashibe/go-gaze/pkg/audioio"
)

// ProgressFunc is called after each window with the samples consumed so
// far and the total.
type ProgressFunc func(done, total int)

// Windows returns the start offsets of the windows TranscribeAll visits
// for n samples: BufferSamples long, advancing by buffer minus overlap.
// A tail shorter than MinSamples is covered by a final window aligned to
// the end of the recording.
func (c Config) Windows(n int) []int {
	size, step := c.BufferSamples(), c.BufferSamples()-c.OverlapSamples()
	if n < c.MinSamples() {
		return nil
	}
	if n <= size {
		return []int{0}
	}
	var starts []int
	for start := 0; ; start += step {
		starts = append(starts, start)
		if start+size >= n {
			break
		}
		if rest := n - (start + size); rest < c.MinSamples() {
			starts = append(starts, n-size)
			break
		}
	}
	return starts
}

// TranscribeAll transcribes a complete recording one window at a time
// with no queue and nothing dropped. chunk may be any rate and channel
// count. Accepted transcripts are written to the sink and returned.
func (p *Pipeline) TranscribeAll(ctx context.Context, chunk audioio.AudioChunk, progress ProgressFunc) ([]Transcript, error) {
	p.mu.Lock()
	p.started = time.Now()
	p.mu.Unlock()
	defer p.logStats()

	samples := audioio.Prepare(chunk, p.cfg.SampleRate)
	size := p.cfg.BufferSamples()
	starts := p.cfg.Windows(len(samples))

	p.logger.Info("transcribing recording",
		"engine", p.engine.Name(),
		"duration", p.duration(len(samples)).Round(time.Millisecond),
		"windows", len(starts))

	var out []Transcript
	for _, start := range starts {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		end := min(start+size, len(samples))
		window := samples[start:end]

		if audioio.RMS(window) < p.cfg.SilenceRMS {
			p.mu.Lock()
			p.stats.Silent++
			p.mu.Unlock()
		} else {
			begin := time.Now()
			segs, err := p.engine.Transcribe(ctx, toFloat32(window))
			r := result{segs: segs, err: err, start: begin, proc: time.Since(begin), audio: p.duration(len(window))}
			if t, ok := p.record(r, p.duration(start)); ok {
				out = append(out, t)
			}
		}
		if progress != nil {
			progress(end, len(samples))
		}
	}
	return out, ctx.Err()
}
