package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-gaze/pkg/calibration"
	"github.com/teslashibe/go-gaze/pkg/features"
	"github.com/teslashibe/go-gaze/pkg/gaze"
)

// ErrNoGaze is returned when a calibration point is requested but no
// recent live estimate exists.
var ErrNoGaze = errors.New("tracking: no recent gaze estimate")

// maxSampleAge bounds how old the live estimate behind a manual
// calibration point may be.
const maxSampleAge = 500 * time.Millisecond

// BeginCalibration discards pending samples and starts collecting. A
// trained regressor is suspended for the session so the samples carry
// geometric estimates, which is what the fitted model corrects.
func (t *Tracker) BeginCalibration() {
	if t.deps.Regressor != nil {
		t.deps.Regressor.Suspend()
	}
	t.deps.Fitter.Begin()
	t.mu.Lock()
	t.regSamples = t.regSamples[:0]
	t.mu.Unlock()
	t.logger.Info("calibration started")
}

// CancelCalibration abandons the session, keeping any previous model.
func (t *Tracker) CancelCalibration() {
	t.deps.Fitter.Cancel()
	t.resumeRegressor()
	t.logger.Info("calibration cancelled")
}

// AddCalibrationPoint records that the user is looking at (x, y), using the
// latest uncalibrated estimate.
func (t *Tracker) AddCalibrationPoint(x, y float64, now time.Time) error {
	t.mu.Lock()
	raw, v, ok := t.lastRaw, t.lastFeatures, t.hasLast
	t.mu.Unlock()
	if !ok || now.Sub(raw.Timestamp) > maxSampleAge {
		return ErrNoGaze
	}
	if err := t.deps.Fitter.AddSample(x, y, raw); err != nil {
		return err
	}
	t.addRegressorSample(x, y, v)
	t.logger.Debug("calibration point", "x", x, "y", y, "gaze_x", raw.X, "gaze_y", raw.Y,
		"pending", t.deps.Fitter.Pending())
	return nil
}

func (t *Tracker) addRegressorSample(x, y float64, v features.Vector) {
	if t.deps.Regressor == nil {
		return
	}
	nx, ny := t.Mesh().Normalize(x, y)
	t.mu.Lock()
	t.regSamples = append(t.regSamples, gaze.Sample{Features: v, X: nx, Y: ny})
	t.mu.Unlock()
}

// FinishCalibration fits the model from the collected samples and, when a
// store is configured, persists it. The regressor, if any, is trained from
// the same session; its failure is logged but does not fail calibration.
func (t *Tracker) FinishCalibration(ctx context.Context) (*calibration.Model, error) {
	pending := t.deps.Fitter.Pending()
	m, err := t.deps.Fitter.Fit()
	if err != nil {
		t.logger.Warn("calibration failed", "samples", pending, "error", err)
		if t.deps.Fitter.State() != calibration.Collecting {
			t.resumeRegressor()
		}
		return nil, err
	}
	samples := t.deps.Fitter.Samples()
	t.logger.Info("calibration complete",
		"id", m.ID,
		"method", m.Method,
		"samples", m.Samples,
		"accuracy_px", fmt.Sprintf("%.1f", m.Accuracy))

	if t.deps.Regressor != nil {
		t.mu.Lock()
		rs := append([]gaze.Sample(nil), t.regSamples...)
		t.mu.Unlock()
		if err := t.deps.Regressor.Fit(rs); err != nil {
			t.logger.Warn("regressor training failed", "samples", len(rs), "error", err)
		} else {
			t.logger.Info("regressor trained", "samples", len(rs))
		}
		t.resumeRegressor()
	}

	if t.deps.Store != nil {
		if err := t.deps.Store.Save(ctx, m, samples); err != nil {
			t.logger.Warn("failed to save calibration", "error", err)
		}
	}
	return m, nil
}

func (t *Tracker) resumeRegressor() {
	if t.deps.Regressor != nil {
		t.deps.Regressor.Unsuspend()
	}
}

// LoadCalibration restores the most recent stored model for the current
// desktop size. It is a no-op without a store or a matching model.
func (t *Tracker) LoadCalibration(ctx context.Context) error {
	if t.deps.Store == nil {
		return nil
	}
	m, err := t.deps.Store.Latest(ctx, t.Mesh().Geometry())
	if errors.Is(err, calibration.ErrNotFound) {
		t.logger.Info("no stored calibration for this desktop")
		return nil
	}
	if err != nil {
		return err
	}
	if err := t.deps.Fitter.Load(m); err != nil {
		return err
	}
	t.logger.Info("calibration loaded", "id", m.ID, "method", m.Method,
		"accuracy_px", fmt.Sprintf("%.1f", m.Accuracy), "fitted_at", m.FittedAt)
	return nil
}

// TargetFunc is called when a guided calibration moves to a new target.
type TargetFunc func(i, n int, target calibration.Target)

// RunCalibration guides the user through targets. For each target it waits
// CalibrationSettle, then averages the live estimates seen during the rest
// of CalibrationDwell into one sample. Targets with no usable estimate are
// skipped. The pipeline must be running.
func (t *Tracker) RunCalibration(ctx context.Context, targets []calibration.Target, show TargetFunc) (*calibration.Model, error) {
	t.BeginCalibration()

	for i, target := range targets {
		if show != nil {
			show(i, len(targets), target)
		}
		t.logger.Info("look at target", "index", i+1, "of", len(targets), "x", target.X, "y", target.Y)

		p, vs, err := t.collect(ctx)
		if err != nil {
			t.CancelCalibration()
			return nil, err
		}
		if len(vs) == 0 {
			t.logger.Warn("no gaze seen for target, skipping", "index", i+1)
			continue
		}
		if err := t.deps.Fitter.AddSample(target.X, target.Y, p); err != nil {
			t.logger.Warn("calibration sample rejected", "index", i+1, "error", err)
			continue
		}
		for _, v := range vs {
			t.addRegressorSample(target.X, target.Y, v)
		}
	}
	return t.FinishCalibration(ctx)
}

// collect waits out the settle period, then averages the uncalibrated
// estimates observed until the dwell ends.
func (t *Tracker) collect(ctx context.Context) (gaze.Point, []features.Vector, error) {
	settle := time.NewTimer(t.config.CalibrationSettle)
	defer settle.Stop()
	select {
	case <-ctx.Done():
		return gaze.Point{}, nil, ctx.Err()
	case <-settle.C:
	}

	window := t.config.CalibrationDwell - t.config.CalibrationSettle
	if window <= 0 {
		window = t.config.FrameInterval
	}
	dwell := time.NewTimer(window)
	defer dwell.Stop()

	var sum gaze.Point
	var vs []features.Vector
	t.mu.Lock()
	last := t.lastRaw.Timestamp
	t.mu.Unlock()
	poll := time.NewTicker(t.config.FrameInterval)
	defer poll.Stop()
	for {
		select {
		case <-ctx.Done():
			return gaze.Point{}, nil, ctx.Err()
		case <-dwell.C:
			if len(vs) == 0 {
				return gaze.Point{}, nil, nil
			}
			n := float64(len(vs))
			return gaze.Point{X: sum.X / n, Y: sum.Y / n, Confidence: sum.Confidence / n, Timestamp: last}, vs, nil
		case <-poll.C:
			t.mu.Lock()
			raw, v, ok := t.lastRaw, t.lastFeatures, t.hasLast
			t.mu.Unlock()
			if !ok || !raw.Timestamp.After(last) {
				continue
			}
			last = raw.Timestamp
			sum.X += raw.X
			sum.Y += raw.Y
			sum.Confidence += raw.Confidence
			vs = append(vs, v)
		}
	}
}

// Calibration returns the active calibration model, or nil.
func (t *Tracker) Calibration() *calibration.Model {
	return t.deps.Fitter.Model()
}
