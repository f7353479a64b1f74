package main

import (
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-gaze/internal/config"
	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/app"
)

var trackOpts = app.DefaultConfig()

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Track gaze and stream points to stdout as NDJSON",
	Long: `Capture webcam frames, estimate where the user is looking and print one
JSON object per point on stdout:

  {"x":812.4,"y":440.1,"confidence":0.83,"timestamp":1712345678.123,"calibrated":true}

Host commands are read from stdin, one per line, either as JSON
({"type":"calibrate_point","x":100,"y":200}) or in the text forms
CALIBRATE:x,y, FINISH_CALIBRATION, PAUSE, RESUME and EXIT.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrack(cmd, trackOpts)
	},
}

func init() {
	f := trackCmd.Flags()
	f.IntVar(&trackOpts.Camera, "camera", config.CameraIndex(0), "Camera device index")
	f.StringVar(&trackOpts.CameraPreset, "camera-preset", trackOpts.CameraPreset, "Camera preset: default, vga, 720p, fast")
	f.BoolVar(&trackOpts.NoCamera, "no-camera", false, "Do not open a camera; emit demo data only")
	f.BoolVar(&trackOpts.Headless, "headless", false, "Print gaze points only (default)")
	f.BoolVar(&trackOpts.GUI, "gui", false, "Interactive mode: move the pointer to follow the gaze")
	f.IntVar(&trackOpts.ScreenWidth, "screen-width", 0, "Override the detected desktop width")
	f.IntVar(&trackOpts.ScreenHeight, "screen-height", 0, "Override the detected desktop height")
	f.StringVar(&trackOpts.Preset, "preset", trackOpts.Preset, "Pipeline preset: default, smooth, responsive")
	f.IntVar(&trackOpts.Smoothing, "smoothing", 0, "Smoothing window, 5-10 points (default from preset)")
	f.Float64Var(&trackOpts.FPS, "fps", 0, "Frame rate (default from preset)")
	f.StringVar(&trackOpts.Strategy, "strategy", trackOpts.Strategy, "Gaze strategy: geometric, regressor")
	f.BoolVar(&trackOpts.Demo, "demo", false, "Emit synthetic points (marked \"demo\":true) when no face is tracked")
	f.BoolVar(&trackOpts.DemoBlend, "demo-blend", false, "Blend synthetic motion into low-confidence estimates")
	f.BoolVar(&trackOpts.Follow, "follow", false, "Move the pointer to each gaze point")
	f.Float64Var(&trackOpts.MinStep, "min-step", trackOpts.MinStep, "Smallest pointer move in pixels")
	f.BoolVar(&trackOpts.Calibrate, "calibrate", false, "Run guided calibration after startup")
	f.IntVar(&trackOpts.CalibrationPoints, "calibration-points", trackOpts.CalibrationPoints, "Calibration targets per monitor (4-25)")
	f.StringVar(&trackOpts.CalibrationDB, "calibration-db", config.CalibrationDB(), "Calibration database path")
	f.StringVar(&trackOpts.LandmarkWorker, "landmark-worker", config.LandmarkWorker(), "Landmark worker command line (e.g. \"python3 facemesh_worker.py\")")
	f.StringVar(&trackOpts.YuNetModel, "yunet", "", "YuNet ONNX model; skips frames without a face before the landmark worker")
	f.StringVar(&trackOpts.Serve, "serve", "", "Serve the HTTP API and websocket feeds on this address (e.g. "+config.DefaultListenAddr+")")
	f.BoolVar(&trackOpts.Commands, "commands", true, "Read host commands from stdin")
	f.BoolVar(&trackOpts.Transcribe, "transcribe", false, "Also transcribe the microphone")
	addTranscribeFlags(trackCmd, &trackOpts.Transcription)

	trackCmd.MarkFlagsMutuallyExclusive("headless", "gui")
	rootCmd.AddCommand(trackCmd)
}

func runTrack(cmd *cobra.Command, opts app.Config) error {
	opts.Debug = debugMode
	opts.DebugTracking = debugTracking

	a, err := app.New(opts, log.L())
	if err != nil {
		return err
	}
	a.Stdout = cmd.OutOrStdout()
	a.Stdin = cmd.InOrStdin()
	a.Stderr = cmd.ErrOrStderr()

	if err := a.Init(cmd.Context()); err != nil {
		return err
	}
	defer a.Shutdown()

	return a.Run(cmd.Context())
}
