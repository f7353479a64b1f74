package calibration

import "errors"

// Sentinel errors for calibration.
var (
	// ErrNotCollecting is returned when samples arrive outside a session.
	ErrNotCollecting = errors.New("calibration: not collecting")

	// ErrLowConfidence is returned for samples below the confidence floor.
	ErrLowConfidence = errors.New("calibration: sample confidence below floor")

	// ErrInsufficientSamples is returned when Fit is called too early.
	// Any previous model stays active.
	ErrInsufficientSamples = errors.New("calibration: insufficient samples")

	// ErrSingular is returned when the samples cannot determine a fit,
	// e.g. every gaze sample sits at the same coordinate.
	ErrSingular = errors.New("calibration: samples do not determine a fit")

	// ErrGeometryChanged is returned when a model was fit against a
	// different virtual desktop.
	ErrGeometryChanged = errors.New("calibration: virtual desktop geometry changed")

	// ErrNotFound is returned by Store when no model matches.
	ErrNotFound = errors.New("calibration: no stored model")
)
