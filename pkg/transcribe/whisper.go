//go:build whisper

package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/teslashibe/go-gaze/internal/log"
)

// WhisperEngine runs a local whisper.cpp model.
type WhisperEngine struct {
	model  whisper.Model
	cfg    EngineConfig
	logger *slog.Logger

	mu sync.Mutex
}

// NewWhisperEngine loads the ggml model at cfg.ModelPath.
func NewWhisperEngine(cfg EngineConfig, logger *slog.Logger) (Engine, error) {
	logger = log.Or(logger).With("component", "whisper")
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("%w: no whisper model path (set WHISPER_MODEL)", ErrModelMissing)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelMissing, err)
	}

	model, err := whisper.New(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load whisper model: %w", err)
	}
	logger.Info("whisper model loaded",
		"path", cfg.ModelPath,
		"multilingual", model.IsMultilingual())
	return &WhisperEngine{model: model, cfg: cfg, logger: logger}, nil
}

// Name returns "whisper".
func (w *WhisperEngine) Name() string { return "whisper" }

// Transcribe implements Engine. A fresh context is used per call so no
// text carries over between buffers.
func (w *WhisperEngine) Transcribe(ctx context.Context, samples []float32) ([]Segment, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wctx, err := w.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper context: %w", err)
	}
	lang := w.cfg.Language
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		w.logger.Warn("language not supported, using auto", "language", lang, "error", err)
		wctx.SetLanguage("auto")
	}
	if w.cfg.Threads > 0 {
		wctx.SetThreads(uint(w.cfg.Threads))
	}

	if err := wctx.Process(samples, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper process: %w", err)
	}

	var segs []Segment
	for {
		s, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return segs, fmt.Errorf("whisper segment: %w", err)
		}
		seg := Segment{Text: strings.TrimSpace(s.Text)}
		var sum float64
		var n int
		for _, tok := range s.Tokens {
			if tok.P <= 0 || strings.HasPrefix(tok.Text, "[_") || strings.HasPrefix(tok.Text, "<|") {
				continue
			}
			sum += math.Log(float64(tok.P))
			n++
		}
		if n > 0 {
			seg.AvgLogProb = sum / float64(n)
			seg.HasLogProb = true
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

// Close releases the model.
func (w *WhisperEngine) Close() error {
	return w.model.Close()
}
