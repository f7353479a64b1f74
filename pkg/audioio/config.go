// Package audioio captures PCM16 audio for the transcription pipeline.
//
// Sources:
//   - exec: a capture command (arecord on Linux, sox on macOS, ffmpeg
//     elsewhere) writing raw PCM to stdout
//   - reader: raw PCM16 from a file or stdin
//   - opus: an Ogg Opus file decoded with libopus
//   - mock: a synthetic sine wave or silence for tests
package audioio

import (
	"fmt"
	"time"
)

// Backend selects the audio source implementation.
type Backend string

const (
	// BackendAuto selects exec capture for the platform.
	BackendAuto Backend = "auto"
	// BackendExec runs a capture command and reads its stdout.
	BackendExec Backend = "exec"
	// BackendReader reads raw PCM16 from Config.Device ("-" for stdin).
	BackendReader Backend = "reader"
	// BackendOpus decodes the Ogg Opus file at Config.Device.
	BackendOpus Backend = "opus"
	// BackendMock generates synthetic audio.
	BackendMock Backend = "mock"
)

// Config describes what to capture and how to chunk it.
type Config struct {
	Backend    Backend `json:"backend"`
	SampleRate int     `json:"sample_rate"` // Hz; speech models want 16000
	Channels   int     `json:"channels"`

	// BufferDuration is the playing time of each chunk.
	BufferDuration time.Duration `json:"buffer_duration"`

	// Device is interpreted by the backend: an ALSA name such as
	// "plughw:1,0" or an ffmpeg input such as ":0" for exec, a path or "-"
	// for reader, a path for opus.
	Device string `json:"device"`

	// Command replaces the capture command of the exec backend. It must
	// write signed 16-bit little-endian PCM in the configured format to
	// stdout.
	Command []string `json:"command,omitempty"`
}

// DefaultConfig captures 16kHz mono in 100ms chunks from the best backend.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     16000,
		Channels:       1,
		BufferDuration: 100 * time.Millisecond,
	}
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	case c.Channels < 1 || c.Channels > 8:
		return fmt.Errorf("channels must be 1-8, got %d", c.Channels)
	case c.BufferDuration <= 0:
		return fmt.Errorf("buffer duration must be positive, got %v", c.BufferDuration)
	case c.Device == "" && (c.Backend == BackendOpus || c.Backend == BackendReader):
		return fmt.Errorf("%s backend needs a device path", c.Backend)
	}
	return nil
}

// BufferSize returns the frames per chunk.
func (c Config) BufferSize() int {
	return int(int64(c.SampleRate) * int64(c.BufferDuration) / int64(time.Second))
}

// BufferBytes returns the bytes per chunk of 16-bit samples.
func (c Config) BufferBytes() int {
	return 2 * c.Channels * c.BufferSize()
}
