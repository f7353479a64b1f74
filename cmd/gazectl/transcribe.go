package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-gaze/internal/config"
	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/app"
	"github.com/teslashibe/go-gaze/pkg/audioio"
	"github.com/teslashibe/go-gaze/pkg/hub"
	"github.com/teslashibe/go-gaze/pkg/transcribe"
	"github.com/teslashibe/go-gaze/pkg/web"
)

var (
	transcribeOpts  = app.DefaultTranscribeConfig()
	transcribeServe string
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe",
	Short: "Transcribe the microphone (or an audio file) to a log",
	Long: `Capture audio, transcribe it a few seconds at a time and append each
accepted result to the transcription log:

  [14:03:21.482] TRANSCRIPTION: hello world (conf: 0.812) (0.42s) (RTF: 0.11x)

A summary line per result is printed to stderr. With --file the whole
recording is transcribed window by window and nothing is dropped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTranscribe(cmd, transcribeOpts)
	},
}

func init() {
	f := transcribeCmd.Flags()
	f.StringVar(&transcribeOpts.Backend, "backend", transcribeOpts.Backend, "Audio backend: "+backendNames())
	f.StringVar(&transcribeOpts.Device, "device", "", "Capture device (e.g. hw:1,0) or input path")
	f.StringVar(&transcribeOpts.File, "file", "", "Transcribe this recording (.wav, raw PCM16, .opus) and exit")
	f.StringVar(&transcribeOpts.LogPath, "log", transcribeOpts.LogPath, "Transcription log path (empty disables)")
	f.StringVar(&transcribeServe, "serve", "", "Broadcast transcripts on ws://<addr>/ws/transcripts")
	addTranscribeFlags(transcribeCmd, &transcribeOpts)
	rootCmd.AddCommand(transcribeCmd)
}

// addTranscribeFlags registers the engine flags shared by track and
// transcribe.
func addTranscribeFlags(cmd *cobra.Command, c *app.TranscribeConfig) {
	f := cmd.Flags()
	f.StringVar(&c.Engine, "engine", c.Engine, "Speech engine: whisper, google, mock")
	f.StringVar(&c.Model, "model", config.WhisperModel(), "Whisper model file (default $"+config.EnvWhisperModel+")")
	f.StringVar(&c.Language, "language", "", "Spoken language, e.g. en (default: detect)")
	f.IntVar(&c.Threads, "threads", 0, "Whisper decoder threads (default: library choice)")
	f.BoolVar(&c.Accurate, "accurate", false, "Longer buffers and a stricter confidence floor")
}

func backendNames() string {
	names := []string{string(audioio.BackendAuto)}
	for _, b := range audioio.AvailableBackends() {
		names = append(names, string(b))
	}
	return strings.Join(names, ", ")
}

func runTranscribe(cmd *cobra.Command, opts app.TranscribeConfig) error {
	ctx := cmd.Context()
	logger := log.L()
	opts.LoadEnvConfig()
	opts.Console = cmd.ErrOrStderr()
	if err := opts.Validate(); err != nil {
		return err
	}

	var srv *web.Server
	if transcribeServe != "" && opts.File == "" {
		srv = web.NewServer(transcribeServe, nil, logger)
	}

	t, err := app.NewTranscriber(ctx, opts, transcriptHub(srv), logger)
	if errors.Is(err, transcribe.ErrModelMissing) {
		logger.Error("speech model unavailable, transcription disabled", "engine", opts.Engine, "error", err)
		if opts.Engine == "whisper" {
			fmt.Fprintln(cmd.ErrOrStderr(), "⚠️  Set --model or $"+config.EnvWhisperModel+" to a ggml model, or build with -tags whisper")
		}
		return nil
	}
	if err != nil {
		return err
	}
	defer t.Close()

	out := cmd.ErrOrStderr()
	fmt.Fprintf(out, "🎤 %s transcription", t.Engine())
	if p := t.LogPath(); p != "" {
		fmt.Fprintf(out, " → %s", p)
	}
	fmt.Fprintln(out)

	if opts.File != "" {
		return transcribeFile(cmd, t, opts.File)
	}

	if srv != nil {
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error("http api stopped", "error", err)
			}
		}()
	}
	fmt.Fprintln(out, "   (Ctrl+C to stop)")
	err = t.Run(ctx)
	st := t.Stats()
	fmt.Fprintf(out, "\n📊 %d transcriptions, %d filtered, %d silent, %d skipped, avg RTF %.2fx\n",
		st.Transcriptions, st.Filtered, st.Silent, st.Skipped, st.AvgRTF)
	return err
}

func transcriptHub(srv *web.Server) *hub.Hub {
	if srv == nil {
		return nil
	}
	return srv.TranscriptHub()
}

func transcribeFile(cmd *cobra.Command, t *app.Transcriber, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	var bar *progressbar.ProgressBar
	results, err := t.TranscribeFile(cmd.Context(), path, func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("📝 Transcribing"),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionShowCount(),
			)
		}
		_ = bar.Set(done)
	})
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(cmd.ErrOrStderr())
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "✅ %d transcriptions\n", len(results))
	return nil
}
