package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/teslashibe/go-gaze/internal/config"
	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/audioio"
	"github.com/teslashibe/go-gaze/pkg/hub"
	"github.com/teslashibe/go-gaze/pkg/transcribe"
)

// TranscribeConfig holds the transcription settings.
type TranscribeConfig struct {
	// Engine selects the speech model: "whisper", "google" or "mock".
	Engine   string
	Model    string // whisper model file
	Language string // "" or "auto" to detect
	Threads  int
	APIKey   string // Google API key (GOOGLE_API_KEY)

	// Accurate uses longer buffers and a stricter confidence floor.
	Accurate bool

	// Audio input. File, when set, is transcribed offline instead.
	Backend string
	Device  string
	File    string

	// LogPath is the transcription log; empty disables it.
	LogPath string

	// Console prints a summary line per transcript; nil writer disables it.
	Console io.Writer
}

// DefaultTranscribeConfig returns the live microphone setup with a whisper
// model.
func DefaultTranscribeConfig() TranscribeConfig {
	return TranscribeConfig{
		Engine:  "whisper",
		Backend: string(audioio.BackendAuto),
		LogPath: config.DefaultTranscriptLog,
		Console: os.Stderr,
	}
}

// LoadEnvConfig fills the model path and credentials from the environment.
func (c *TranscribeConfig) LoadEnvConfig() {
	if c.Model == "" {
		c.Model = config.WhisperModel()
	}
	if c.APIKey == "" {
		c.APIKey = config.GoogleAPIKey()
	}
}

// Validate checks the engine and audio settings.
func (c *TranscribeConfig) Validate() error {
	switch c.Engine {
	case "whisper", "google", "mock":
	default:
		return &ConfigError{Field: "Engine", Message: fmt.Sprintf("unknown engine %q (want whisper, google or mock)", c.Engine)}
	}
	if c.File != "" {
		return nil
	}
	audioCfg := c.AudioConfig()
	if err := audioCfg.Validate(); err != nil {
		return &ConfigError{Field: "Backend", Message: err.Error()}
	}
	return nil
}

// PipelineConfig returns the buffering preset.
func (c *TranscribeConfig) PipelineConfig() transcribe.Config {
	if c.Accurate {
		return transcribe.AccurateConfig()
	}
	return transcribe.DefaultConfig()
}

// AudioConfig returns the live capture configuration.
func (c *TranscribeConfig) AudioConfig() audioio.Config {
	cfg := audioio.DefaultConfig()
	if c.Backend != "" {
		cfg.Backend = audioio.Backend(c.Backend)
	}
	cfg.Device = c.Device
	return cfg
}

// FileConfig returns the configuration for reading path: Ogg Opus for
// .opus and .ogg, PCM (raw or WAV) otherwise.
func FileConfig(path string) audioio.Config {
	cfg := audioio.DefaultConfig()
	cfg.Device = path
	cfg.BufferDuration = time.Second
	switch strings.ToLower(filepath.Ext(path)) {
	case ".opus", ".ogg":
		cfg.Backend = audioio.BackendOpus
	default:
		cfg.Backend = audioio.BackendReader
	}
	return cfg
}

// Transcriber owns one engine, its sinks and a pipeline.
type Transcriber struct {
	cfg      TranscribeConfig
	logger   *slog.Logger
	engine   transcribe.Engine
	pipeline *transcribe.Pipeline
	logFile  *transcribe.LogFile
}

// NewTranscriber loads the engine and opens the log. Transcripts are also
// broadcast on h when it is non-nil. A missing model or missing
// credentials are reported as transcribe.ErrModelMissing.
func NewTranscriber(ctx context.Context, cfg TranscribeConfig, h *hub.Hub, logger *slog.Logger) (*Transcriber, error) {
	logger = log.Or(logger)
	pcfg := cfg.PipelineConfig()

	engine, err := transcribe.NewEngine(ctx, transcribe.EngineConfig{
		Name:       cfg.Engine,
		ModelPath:  cfg.Model,
		Language:   cfg.Language,
		Threads:    cfg.Threads,
		APIKey:     cfg.APIKey,
		SampleRate: pcfg.SampleRate,
	}, logger)
	if err != nil {
		return nil, err
	}

	t := &Transcriber{cfg: cfg, logger: logger, engine: engine}

	var sinks transcribe.Multi
	if cfg.LogPath != "" {
		t.logFile, err = transcribe.CreateLogFile(cfg.LogPath, engine.Name(), time.Now())
		if err != nil {
			engine.Close()
			return nil, fmt.Errorf("transcription log: %w", err)
		}
		sinks = append(sinks, t.logFile)
	}
	if cfg.Console != nil {
		sinks = append(sinks, &transcribe.Console{W: cfg.Console})
	}
	if h != nil {
		sinks = append(sinks, transcribe.HubSink{Hub: h})
	}

	t.pipeline, err = transcribe.New(pcfg, engine, sinks, logger)
	if err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

// Engine returns the engine name.
func (t *Transcriber) Engine() string { return t.engine.Name() }

// LogPath returns the transcription log path, or "".
func (t *Transcriber) LogPath() string {
	if t.logFile == nil {
		return ""
	}
	return t.logFile.Path()
}

// Stats returns the pipeline counters.
func (t *Transcriber) Stats() transcribe.Stats { return t.pipeline.Stats() }

// Run captures live audio and transcribes it until ctx is cancelled.
func (t *Transcriber) Run(ctx context.Context) error {
	src, err := audioio.NewSource(t.cfg.AudioConfig(), t.logger)
	if err != nil {
		return fmt.Errorf("audio source: %w", err)
	}
	defer src.Close()
	if src.Name() == string(audioio.BackendMock) {
		t.logger.Warn("no audio capture tool found, transcribing synthetic audio")
	}
	return t.pipeline.Run(ctx, src)
}

// TranscribeFile reads the whole file at path and transcribes it window by
// window. progress may be nil.
func (t *Transcriber) TranscribeFile(ctx context.Context, path string, progress transcribe.ProgressFunc) ([]transcribe.Transcript, error) {
	src, err := audioio.NewSource(FileConfig(path), t.logger)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	if err := src.Start(ctx); err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	chunk, err := audioio.ReadAll(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(chunk.Samples) == 0 {
		return nil, errors.New("no audio in " + path)
	}
	return t.pipeline.TranscribeAll(ctx, chunk, progress)
}

// Close releases the engine and flushes the log.
func (t *Transcriber) Close() error {
	var errs []error
	if t.engine != nil {
		errs = append(errs, t.engine.Close())
	}
	if t.logFile != nil {
		errs = append(errs, t.logFile.Close())
	}
	return errors.Join(errs...)
}
