// Package emit delivers gaze points to their consumers: the NDJSON stream
// on stdout, the on-screen pointer and websocket clients.
package emit

import (
	"errors"
	"time"

	"github.com/teslashibe/go-gaze/pkg/gaze"
)

// Record is the wire form of one emitted gaze point.
type Record struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
	Timestamp  float64 `json:"timestamp"`
	Calibrated bool    `json:"calibrated"`
	Demo       bool    `json:"demo,omitempty"`
}

// NewRecord converts p. Timestamp becomes Unix seconds.
func NewRecord(p gaze.Point, calibrated bool) Record {
	ts := p.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return Record{
		X:          p.X,
		Y:          p.Y,
		Confidence: p.Confidence,
		Timestamp:  float64(ts.UnixNano()) / 1e9,
		Calibrated: calibrated,
		Demo:       p.Demo,
	}
}

// Sink consumes emitted records.
type Sink interface {
	Emit(r Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(r Record) error

// Emit calls f.
func (f SinkFunc) Emit(r Record) error { return f(r) }

// Multi fans a record out to every sink. All sinks are tried; errors are
// joined.
type Multi []Sink

// Emit implements Sink.
func (m Multi) Emit(r Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
