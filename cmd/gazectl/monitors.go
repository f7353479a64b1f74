package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/calibration"
	"github.com/teslashibe/go-gaze/pkg/display"
	"github.com/teslashibe/go-gaze/pkg/web"
)

var (
	screenWidth  int
	screenHeight int
	showTargets  int
)

var monitorsCmd = &cobra.Command{
	Use:   "monitors",
	Short: "Print the detected monitor layout as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mesh := detectMesh()
		out := struct {
			web.MonitorsResponse
			Targets []calibration.Target `json:"targets,omitempty"`
		}{
			MonitorsResponse: web.MonitorsResponse{
				Monitors: mesh.Monitors(),
				Primary:  mesh.Primary().Name,
				Virtual:  mesh.Geometry(),
			},
		}
		if showTargets > 0 {
			out.Targets = calibration.Grid(mesh, showTargets)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	addScreenFlags(monitorsCmd)
	monitorsCmd.Flags().IntVar(&showTargets, "targets", 0, "Also print the calibration targets for this many points per monitor")
	rootCmd.AddCommand(monitorsCmd)
}

// addScreenFlags registers the desktop size override.
func addScreenFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&screenWidth, "screen-width", 0, "Override the detected desktop width")
	cmd.Flags().IntVar(&screenHeight, "screen-height", 0, "Override the detected desktop height")
}

// detectMesh returns the override layout when both sizes are set and the
// window system's layout otherwise.
func detectMesh() *display.Mesh {
	if screenWidth > 0 && screenHeight > 0 {
		return display.WithVirtualSize(screenWidth, screenHeight)
	}
	return display.Detect(display.RobotgoDetector{}, log.L())
}
