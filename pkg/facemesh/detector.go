package facemesh

import (
	"context"
	"errors"
)

// Errors returned by detectors.
var (
	ErrNoFace       = errors.New("facemesh: no face detected")
	ErrWorkerExited = errors.New("facemesh: landmark worker exited")
	ErrProtocol     = errors.New("facemesh: malformed worker response")
)

// Detector runs the face-mesh model on one encoded frame (JPEG).
// It returns ErrNoFace when the frame holds no face.
type Detector interface {
	Detect(ctx context.Context, frame []byte) (LandmarkSet, error)
	Close() error
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(ctx context.Context, frame []byte) (LandmarkSet, error)

// Detect calls f.
func (f DetectorFunc) Detect(ctx context.Context, frame []byte) (LandmarkSet, error) {
	return f(ctx, frame)
}

// Close is a no-op.
func (f DetectorFunc) Close() error { return nil }
