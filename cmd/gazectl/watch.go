package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-gaze/internal/config"
	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/emit"
	"github.com/teslashibe/go-gaze/pkg/gazeclient"
)

var watchCmd = &cobra.Command{
	Use:   "watch [addr]",
	Short: "Print the gaze stream of a tracker started with --serve",
	Long: `Connect to a running "gazectl track --serve" and print its gaze points as
NDJSON, reconnecting when the tracker restarts.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := config.DefaultListenAddr
		if len(args) == 1 {
			addr = args[0]
		}
		client := gazeclient.New(addr, log.L())
		enc := json.NewEncoder(cmd.OutOrStdout())
		return client.Stream(cmd.Context(), func(r emit.Record) error {
			return enc.Encode(r)
		})
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
