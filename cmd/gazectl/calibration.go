package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-gaze/internal/config"
	"github.com/teslashibe/go-gaze/pkg/calibration"
)

var (
	calibrationDB string
	calibrationID string
	clearAll      bool
	plotPath      string
)

var calibrationCmd = &cobra.Command{
	Use:   "calibration",
	Short: "Inspect and manage stored calibrations",
}

var calibrationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored calibrations, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := calibration.OpenStore(calibrationDB)
		if err != nil {
			return err
		}
		defer store.Close()

		models, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(models) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No calibrations stored.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tMETHOD\tDESKTOP\tSAMPLES\tERROR (PX)\tFITTED")
		fmt.Fprintln(w, "--\t------\t-------\t-------\t----------\t------")
		for _, m := range models {
			fmt.Fprintf(w, "%s\t%s\t%dx%d\t%d\t%.1f\t%s\n",
				m.ID, m.Method, m.Geometry.Width, m.Geometry.Height, m.Samples, m.Accuracy,
				m.FittedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var calibrationShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a calibration as JSON (default: newest for this desktop)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := calibration.OpenStore(calibrationDB)
		if err != nil {
			return err
		}
		defer store.Close()

		m, samples, err := lookupModel(cmd, store)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*calibration.Model
			Residuals []float64 `json:"residuals_px"`
		}{m, m.Residuals(samples)})
	},
}

var calibrationPlotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Plot targets, raw gaze and mapped gaze for a calibration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := calibration.OpenStore(calibrationDB)
		if err != nil {
			return err
		}
		defer store.Close()

		m, samples, err := lookupModel(cmd, store)
		if err != nil {
			return err
		}
		if err := calibration.PlotResiduals(m, samples, plotPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "📈 Wrote %s\n", plotPath)
		return nil
	},
}

var calibrationClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete calibrations for this desktop size (or all with --all)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := calibration.OpenStore(calibrationDB)
		if err != nil {
			return err
		}
		defer store.Close()

		var n int64
		if clearAll {
			n, err = store.Clear(cmd.Context())
		} else {
			n, err = store.Delete(cmd.Context(), detectMesh().Geometry())
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "🗑️  Removed %d calibration(s)\n", n)
		return nil
	},
}

// lookupModel returns the model named by --id, or the newest one for the
// current desktop size.
func lookupModel(cmd *cobra.Command, store *calibration.Store) (*calibration.Model, []calibration.Sample, error) {
	var (
		m       *calibration.Model
		samples []calibration.Sample
		err     error
	)
	if calibrationID != "" {
		m, samples, err = store.Get(cmd.Context(), calibrationID)
	} else {
		m, samples, err = store.Latest(cmd.Context(), detectMesh().Geometry())
	}
	if errors.Is(err, calibration.ErrNotFound) {
		return nil, nil, fmt.Errorf("no matching calibration in %s", calibrationDB)
	}
	return m, samples, err
}

func init() {
	calibrationCmd.PersistentFlags().StringVar(&calibrationDB, "calibration-db", config.CalibrationDB(), "Calibration database path")

	for _, c := range []*cobra.Command{calibrationShowCmd, calibrationPlotCmd} {
		c.Flags().StringVar(&calibrationID, "id", "", "Calibration ID (default: newest for this desktop)")
		addScreenFlags(c)
	}
	addScreenFlags(calibrationClearCmd)
	calibrationClearCmd.Flags().BoolVar(&clearAll, "all", false, "Delete every stored calibration")
	calibrationPlotCmd.Flags().StringVarP(&plotPath, "out", "o", "calibration.png", "Output image (.png, .svg or .pdf)")

	calibrationCmd.AddCommand(calibrationListCmd, calibrationShowCmd, calibrationPlotCmd, calibrationClearCmd)
	rootCmd.AddCommand(calibrationCmd)
}
