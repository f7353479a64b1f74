package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-gaze/internal/config"
	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/debug"
)

// Version is the application version.
const Version = "0.1.0"

var (
	logLevel      string
	debugMode     bool
	debugTracking bool
)

var rootCmd = &cobra.Command{
	Use:           "gazectl",
	Short:         "Webcam gaze tracking and streaming transcription",
	Version:       Version,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := config.LogLevel(logLevel)
		if level == "" {
			level = "info"
		}
		if debugMode {
			level = "debug"
		}
		log.Init(level)
		debug.Enabled = debugMode
		debug.Tracking = debugTracking
		return nil
	},
}

// Execute runs the root command with a context cancelled on SIGINT or
// SIGTERM and exits non-zero on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default $GAZE_LOG_LEVEL or info)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable verbose debug logging")
	rootCmd.PersistentFlags().BoolVar(&debugTracking, "debug-tracking", false, "Trace every frame (very verbose)")
}
