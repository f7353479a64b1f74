package audioio

import (
	"context"
	"encoding/binary"
	"io"
	"time"
)

// AudioChunk is a block of interleaved 16-bit PCM.
type AudioChunk struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Frames returns the number of samples per channel.
func (c AudioChunk) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// Duration returns the playing time of the chunk.
func (c AudioChunk) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// Append adds the samples of next, which must share the format of c.
func (c *AudioChunk) Append(next AudioChunk) {
	if c.SampleRate == 0 {
		c.SampleRate, c.Channels = next.SampleRate, next.Channels
	}
	c.Samples = append(c.Samples, next.Samples...)
}

// DecodePCM16 reads little-endian 16-bit samples from b. A trailing odd
// byte is ignored.
func DecodePCM16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out
}

// EncodePCM16 writes samples as little-endian 16-bit PCM.
func EncodePCM16(samples []int16) []byte {
	out := make([]byte, 0, 2*len(samples))
	for _, s := range samples {
		out = binary.LittleEndian.AppendUint16(out, uint16(s))
	}
	return out
}

// Source delivers audio chunks from a capture device, a process or a file.
//
// Read returns io.EOF once the source is stopped or exhausted. Stream is
// closed at the same point. Stop may be called more than once; a closed
// source cannot be restarted.
type Source interface {
	Start(ctx context.Context) error
	Stop() error
	Read(ctx context.Context) (AudioChunk, error)
	Stream() <-chan AudioChunk
	Config() Config
	Name() string
	io.Closer
}

// SourceStats are the counters a source keeps while running.
type SourceStats struct {
	Backend     string `json:"backend"`
	Running     bool   `json:"running"`
	ChunksRead  int64  `json:"chunks_read"`
	SamplesRead int64  `json:"samples_read"`
	Overruns    int64  `json:"overruns"` // chunks dropped by a full buffer
}

// SourceWithStats is a Source that reports SourceStats.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}
