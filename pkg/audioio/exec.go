package audioio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// ErrNoCaptureTool is returned when no capture command is installed.
var ErrNoCaptureTool = errors.New("no audio capture tool found (install alsa-utils, sox or ffmpeg)")

// NewExecSource captures audio by running a command that writes raw PCM16
// to stdout. Without Config.Command the command is picked per platform:
// arecord on Linux, sox rec on macOS, ffmpeg as a fallback.
func NewExecSource(cfg Config, logger *slog.Logger) (*ExecSource, error) {
	argv := cfg.Command
	if len(argv) == 0 {
		tool, err := captureTool(runtime.GOOS, exec.LookPath)
		if err != nil {
			return nil, err
		}
		argv = captureCommand(tool, runtime.GOOS, cfg)
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("capture command %q: %w", argv[0], err)
	}

	s := &ExecSource{argv: argv}
	s.streamSource = newStreamSource(cfg, "exec", true, logger, s.open)
	return s, nil
}

// ExecSource is a Source backed by a capture process.
type ExecSource struct {
	*streamSource
	argv []string
}

// Command returns the capture command line.
func (s *ExecSource) Command() []string { return s.argv }

func (s *ExecSource) open(ctx context.Context) (frameReader, error) {
	cmd := exec.CommandContext(ctx, s.argv[0], s.argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", s.argv[0], err)
	}
	s.logger.Debug("capture process started", "cmd", strings.Join(s.argv, " "), "pid", cmd.Process.Pid)

	return &procReader{
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		buf:    make([]byte, s.cfg.BufferBytes()),
	}, nil
}

type procReader struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *tailBuffer
	buf    []byte

	once    sync.Once
	waitErr error
	killed  bool
	mu      sync.Mutex
}

func (p *procReader) next() ([]int16, error) {
	n, err := io.ReadFull(p.stdout, p.buf)
	samples := DecodePCM16(p.buf[:n-n%2])
	switch {
	case err == nil:
		return samples, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		if werr := p.wait(); werr != nil && !p.wasKilled() {
			return samples, fmt.Errorf("%s exited: %w: %s", p.cmd.Path, werr, strings.TrimSpace(p.stderr.String()))
		}
		return samples, io.EOF
	default:
		if p.wasKilled() {
			return samples, io.EOF
		}
		return samples, err
	}
}

func (p *procReader) wait() error {
	p.once.Do(func() { p.waitErr = p.cmd.Wait() })
	return p.waitErr
}

func (p *procReader) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

func (p *procReader) close() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	p.wait()
	return nil
}

// captureTool returns the first installed capture tool for goos.
func captureTool(goos string, lookPath func(string) (string, error)) (string, error) {
	var candidates []string
	switch goos {
	case "linux":
		candidates = []string{"arecord", "ffmpeg"}
	case "darwin":
		candidates = []string{"rec", "ffmpeg"}
	default:
		candidates = []string{"ffmpeg"}
	}
	for _, c := range candidates {
		if _, err := lookPath(c); err == nil {
			return c, nil
		}
	}
	return "", ErrNoCaptureTool
}

// captureCommand builds the argv for tool writing raw s16le PCM to stdout.
func captureCommand(tool, goos string, cfg Config) []string {
	rate := strconv.Itoa(cfg.SampleRate)
	ch := strconv.Itoa(cfg.Channels)
	device := cfg.Device

	switch tool {
	case "arecord":
		if device == "" {
			device = "default"
		}
		return []string{"arecord", "-q", "-D", device, "-f", "S16_LE", "-r", rate, "-c", ch, "-t", "raw"}
	case "rec":
		args := []string{"rec", "-q", "-t", "raw", "-b", "16", "-e", "signed-integer", "-r", rate, "-c", ch, "-"}
		if device != "" {
			args = append([]string{"env", "AUDIODEV=" + device}, args...)
		}
		return args
	default:
		format, input := "pulse", "default"
		switch goos {
		case "darwin":
			format, input = "avfoundation", ":0"
		case "windows":
			format, input = "dshow", "audio=default"
		}
		if device != "" {
			input = device
		}
		return []string{"ffmpeg", "-hide_banner", "-loglevel", "error",
			"-f", format, "-i", input,
			"-ac", ch, "-ar", rate, "-f", "s16le", "-"}
	}
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.max; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
