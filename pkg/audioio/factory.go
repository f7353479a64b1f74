package audioio

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"

	"github.com/teslashibe/go-gaze/internal/log"
)

type sourceCtor func(Config, *slog.Logger) (Source, error)

var backends = map[Backend]sourceCtor{
	BackendMock: func(cfg Config, l *slog.Logger) (Source, error) { return NewMockSource(cfg, l), nil },
	BackendExec: func(cfg Config, l *slog.Logger) (Source, error) { return NewExecSource(cfg, l) },
	BackendReader: func(cfg Config, l *slog.Logger) (Source, error) {
		return NewReaderSource(cfg, l)
	},
	BackendOpus: func(cfg Config, l *slog.Logger) (Source, error) { return NewOpusSource(cfg, l) },
}

// NewSource validates cfg and builds the source for its backend.
// BackendAuto picks the capture tool when one is installed and falls back
// to the silent mock.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("audio config: %w", err)
	}
	logger = log.Or(logger)

	b := resolveBackend(cfg.Backend, hasCaptureTool())
	ctor, ok := backends[b]
	if !ok {
		return nil, fmt.Errorf("audio backend %q not supported", b)
	}
	logger.Debug("audio source",
		"backend", b,
		"device", cfg.Device,
		"buffer", cfg.BufferDuration)
	return ctor(cfg, logger)
}

func resolveBackend(b Backend, capture bool) Backend {
	if b != BackendAuto {
		return b
	}
	if capture {
		return BackendExec
	}
	return BackendMock
}

func hasCaptureTool() bool {
	_, err := captureTool(runtime.GOOS, exec.LookPath)
	return err == nil
}

// AvailableBackends lists the backends usable on this machine.
func AvailableBackends() []Backend {
	out := []Backend{BackendMock, BackendReader, BackendOpus}
	if hasCaptureTool() {
		out = append(out, BackendExec)
	}
	return out
}
