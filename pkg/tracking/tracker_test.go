package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/calibration"
	"github.com/teslashibe/go-gaze/pkg/display"
	"github.com/teslashibe/go-gaze/pkg/emit"
	"github.com/teslashibe/go-gaze/pkg/facemesh"
	"github.com/teslashibe/go-gaze/pkg/facemesh/facemeshtest"
	"github.com/teslashibe/go-gaze/pkg/features"
	"github.com/teslashibe/go-gaze/pkg/gaze"
)

func vectorFor(t *testing.T, px, py float64) features.Vector {
	t.Helper()
	idx := facemesh.DefaultIndices()
	v, err := features.NewExtractor(idx).Extract(facemeshtest.Face(idx, px, py))
	if err != nil {
		t.Fatal(err)
	}
	return v
}

type fakeFrames struct {
	err error
}

func (f *fakeFrames) CaptureJPEG() ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte{0xff, 0xd8}, nil
}

// fakeFace serves a synthetic face whose pupils sit at (px, py).
type fakeFace struct {
	mu     sync.Mutex
	px, py float64
	noFace bool
}

func (f *fakeFace) look(px, py float64) {
	f.mu.Lock()
	f.px, f.py, f.noFace = px, py, false
	f.mu.Unlock()
}

func (f *fakeFace) Detect(context.Context, []byte) (facemesh.LandmarkSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noFace {
		return nil, facemesh.ErrNoFace
	}
	return facemeshtest.Face(facemesh.DefaultIndices(), f.px, f.py), nil
}

func (f *fakeFace) Close() error { return nil }

type recorder struct {
	mu      sync.Mutex
	records []emit.Record
}

func (r *recorder) Emit(rec emit.Record) error {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
	return nil
}

func (r *recorder) all() []emit.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]emit.Record(nil), r.records...)
}

type fixture struct {
	tracker *Tracker
	frames  *fakeFrames
	face    *fakeFace
	sink    *recorder
	mesh    *display.Mesh
}

func newFixture(t *testing.T, cfg Config, mutate func(*Deps)) *fixture {
	t.Helper()
	mesh := display.NewMesh([]display.Monitor{{Width: 1920, Height: 1080, Primary: true}})
	f := &fixture{
		frames: &fakeFrames{},
		face:   &fakeFace{px: 0.5, py: 0.5},
		sink:   &recorder{},
		mesh:   mesh,
	}
	est, reg, err := gaze.NewStrategy(gaze.StrategyGeometric, mesh)
	if err != nil {
		t.Fatal(err)
	}
	deps := Deps{
		Frames:    f.frames,
		Detector:  f.face,
		Estimator: est,
		Regressor: reg,
		Fitter:    calibration.NewFitter(calibration.DefaultConfig(), mesh.Geometry()),
		Mesh:      mesh,
		Sink:      f.sink,
		Logger:    log.Discard(),
	}
	if mutate != nil {
		mutate(&deps)
	}
	tr, err := New(cfg, deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.tracker = tr
	return f
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(DefaultConfig(), Deps{}); err == nil {
		t.Error("expected error without mesh, fitter and sink")
	}
	cfg := DefaultConfig()
	cfg.SmoothingWindow = 2
	mesh := display.NewMesh(nil)
	_, err := New(cfg, Deps{
		Mesh:   mesh,
		Fitter: calibration.NewFitter(calibration.DefaultConfig(), mesh.Geometry()),
		Sink:   &recorder{},
	})
	if err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestStepEmitsCentre(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	f.tracker.Step(context.Background(), time.Now())

	recs := f.sink.all()
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	r := recs[0]
	if r.X < 959 || r.X > 961 || r.Y < 539 || r.Y > 541 {
		t.Errorf("record at (%v, %v), want screen centre", r.X, r.Y)
	}
	if r.Calibrated || r.Demo {
		t.Errorf("unexpected flags: %+v", r)
	}
	if r.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", r.Confidence)
	}
}

// pupilFor returns the pupil position the default geometric estimator maps
// to the normalized screen point (nx, ny) on a single monitor.
func pupilFor(nx, ny float64) (px, py float64) {
	cfg := gaze.DefaultGeometricConfig()
	return 0.5 - (nx-0.5)/cfg.Sensitivity, 0.5 + (ny-0.5)/(cfg.Sensitivity*cfg.YBoost)
}

func TestStepSweepIsMonotonicAndLags(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	geo := gaze.NewGeometric(gaze.DefaultGeometricConfig(), f.mesh)
	ctx := context.Background()
	now := time.Now()

	const steps = 10
	var raw []gaze.Point
	for i := 0; i < steps; i++ {
		n := 0.1 + 0.8*float64(i)/(steps-1)
		px, py := pupilFor(n, n)
		f.face.look(px, py)
		f.tracker.Step(ctx, now.Add(time.Duration(i)*33*time.Millisecond))

		p, ok := geo.Estimate(vectorFor(t, px, py), now)
		if !ok {
			t.Fatal("reference estimate failed")
		}
		raw = append(raw, p)
	}
	if raw[0].X > 0.1*1920+1 || raw[steps-1].Y < 0.9*1080-1 {
		t.Fatalf("sweep runs from %+v to %+v, want (0.1,0.1) to (0.9,0.9) of the desktop", raw[0], raw[steps-1])
	}

	recs := f.sink.all()
	if len(recs) != steps {
		t.Fatalf("got %d records, want %d", len(recs), steps)
	}
	for i := 1; i < len(recs); i++ {
		r, prev := recs[i], recs[i-1]
		if r.X <= prev.X || r.Y <= prev.Y {
			t.Errorf("step %d: (%.1f, %.1f) not past (%.1f, %.1f)", i, r.X, r.Y, prev.X, prev.Y)
		}
		if r.X >= raw[i].X || r.Y >= raw[i].Y {
			t.Errorf("step %d: smoothed (%.1f, %.1f) does not lag raw (%.1f, %.1f)", i, r.X, r.Y, raw[i].X, raw[i].Y)
		}
		if r.X < 0 || r.X > 1920 || r.Y < 0 || r.Y > 1080 {
			t.Errorf("step %d: (%.1f, %.1f) outside desktop", i, r.X, r.Y)
		}
	}
}

func TestStepNoFace(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	f.face.noFace = true
	for i := 0; i < 3; i++ {
		f.tracker.Step(context.Background(), time.Now())
	}
	if n := len(f.sink.all()); n != 0 {
		t.Errorf("emitted %d records without a face", n)
	}
	if s := f.tracker.Stats(); s.Frames != 3 || s.Faces != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestStepNoFaceDemo(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Demo = true
	f := newFixture(t, cfg, nil)
	f.face.noFace = true
	f.tracker.Step(context.Background(), time.Now())

	recs := f.sink.all()
	if len(recs) != 1 || !recs[0].Demo {
		t.Fatalf("records = %+v, want one demo record", recs)
	}
	if recs[0].Confidence != gaze.DemoConfidence {
		t.Errorf("demo confidence = %v", recs[0].Confidence)
	}
}

func TestCaptureFailuresSwitchToDemo(t *testing.T) {
	cfg := DefaultConfig()
	f := newFixture(t, cfg, nil)
	f.frames.err = errors.New("device unplugged")

	for i := 0; i < cfg.MaxCaptureFailures-1; i++ {
		f.tracker.Step(context.Background(), time.Now())
	}
	if n := len(f.sink.all()); n != 0 {
		t.Fatalf("emitted %d records before the device was declared down", n)
	}

	f.tracker.Step(context.Background(), time.Now())
	f.tracker.Step(context.Background(), time.Now())
	recs := f.sink.all()
	if len(recs) != 2 {
		t.Fatalf("got %d records after failure, want 2", len(recs))
	}
	for _, r := range recs {
		if !r.Demo {
			t.Errorf("record %+v not marked demo", r)
		}
	}
	if s := f.tracker.Stats(); !s.Demo || s.CaptureErrors != uint64(cfg.MaxCaptureFailures) {
		t.Errorf("stats = %+v", s)
	}
}

func TestPauseSuppressesOutput(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	ctx := context.Background()

	f.tracker.Pause()
	f.tracker.Step(ctx, time.Now())
	if n := len(f.sink.all()); n != 0 {
		t.Fatalf("emitted %d records while paused", n)
	}

	f.tracker.Resume()
	f.tracker.Step(ctx, time.Now())
	if n := len(f.sink.all()); n != 1 {
		t.Fatalf("emitted %d records after resume, want 1", n)
	}
	if s := f.tracker.Stats(); s.Suppressed != 1 || s.Emitted != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestTitlebarPausesOutput(t *testing.T) {
	// Centre gaze lands at y=540, inside the 30px strip starting at y=520.
	f := newFixture(t, DefaultConfig(), func(d *Deps) {
		d.Window = display.FixedWindow{X: 0, Y: 520, Width: 1920, Height: 400}
	})
	f.tracker.Step(context.Background(), time.Now())
	if n := len(f.sink.all()); n != 0 {
		t.Errorf("emitted %d records while looking at the title bar", n)
	}
	if s := f.tracker.Stats(); s.State != "paused" {
		t.Errorf("state = %q, want paused", s.State)
	}
}

// lookShort points the synthetic face a little short of the normalized
// target (tx, ty), as a real user's raw estimate tends to fall.
func lookShort(f *fixture, tx, ty float64) {
	f.face.look(0.5-(tx-0.5)*0.1, 0.5+(ty-0.5)*0.1)
}

// calibrateByCommands runs a 3x3 session over the host command channel.
func calibrateByCommands(t *testing.T, f *fixture) *calibration.Model {
	t.Helper()
	ctx := context.Background()
	if _, err := f.tracker.HandleCommand(ctx, Command{Type: CmdCalibrateBegin}); err != nil {
		t.Fatal(err)
	}
	for _, tx := range []float64{0.2, 0.5, 0.8} {
		for _, ty := range []float64{0.2, 0.5, 0.8} {
			lookShort(f, tx, ty)
			f.tracker.Step(ctx, time.Now())
			if _, err := f.tracker.HandleCommand(ctx, Command{Type: CmdCalibratePoint, X: tx * 1920, Y: ty * 1080}); err != nil {
				t.Fatalf("calibrate_point: %v", err)
			}
		}
	}
	res, err := f.tracker.HandleCommand(ctx, Command{Type: CmdCalibrateFinish})
	if err != nil {
		t.Fatalf("calibrate_finish: %v", err)
	}
	m, ok := res.(*calibration.Model)
	if !ok || m.Samples != 9 {
		t.Fatalf("result = %#v, want model with 9 samples", res)
	}
	return m
}

// lastAfterLooking emits one fresh frame at the target and returns it.
func lastAfterLooking(t *testing.T, f *fixture, tx, ty float64) emit.Record {
	t.Helper()
	// Fresh smoothing history so the point is not blended with the
	// calibration sweep.
	f.tracker.smoother.Reset()
	lookShort(f, tx, ty)
	f.tracker.Step(context.Background(), time.Now())
	recs := f.sink.all()
	return recs[len(recs)-1]
}

func TestCalibrationThroughCommands(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	m := calibrateByCommands(t, f)
	if m.Accuracy > 5 {
		t.Errorf("accuracy = %.1f px, want near zero", m.Accuracy)
	}

	last := lastAfterLooking(t, f, 0.8, 0.5)
	if !last.Calibrated {
		t.Error("record after calibration not marked calibrated")
	}
	if last.X < 0.8*1920-10 || last.X > 0.8*1920+10 {
		t.Errorf("calibrated X = %.1f, want near %.1f", last.X, 0.8*1920)
	}
	if !f.tracker.Stats().Calibrated {
		t.Error("stats do not report calibration")
	}
}

func newRegressorFixture(t *testing.T) *fixture {
	return newFixture(t, DefaultConfig(), func(d *Deps) {
		est, reg, err := gaze.NewStrategy(gaze.StrategyRegressor, d.Mesh)
		if err != nil {
			t.Fatal(err)
		}
		d.Estimator, d.Regressor = est, reg
	})
}

func TestRegressorCalibrationIsAppliedOnce(t *testing.T) {
	f := newRegressorFixture(t)
	calibrateByCommands(t, f)
	if !f.tracker.deps.Regressor.Trained() {
		t.Fatal("regressor not trained by the session")
	}

	for _, target := range [][2]float64{{0.8, 0.5}, {0.2, 0.8}, {0.5, 0.2}} {
		last := lastAfterLooking(t, f, target[0], target[1])
		wantX, wantY := target[0]*1920, target[1]*1080
		if math.Abs(last.X-wantX) > 10 || math.Abs(last.Y-wantY) > 10 {
			t.Errorf("target %v: emitted (%.1f, %.1f), want near (%.1f, %.1f)", target, last.X, last.Y, wantX, wantY)
		}
		if !last.Calibrated {
			t.Errorf("target %v: regressor output not marked calibrated", target)
		}
	}
}

func TestRecalibrationCollectsGeometricEstimates(t *testing.T) {
	f := newRegressorFixture(t)
	calibrateByCommands(t, f)
	ctx := context.Background()

	f.tracker.BeginCalibration()
	lookShort(f, 0.8, 0.5)
	f.tracker.Step(ctx, time.Now())
	f.tracker.mu.Lock()
	src := f.tracker.lastRaw.Source
	f.tracker.mu.Unlock()
	if src != gaze.StrategyGeometric {
		t.Errorf("estimate during calibration came from %q, want %q", src, gaze.StrategyGeometric)
	}

	f.tracker.CancelCalibration()
	last := lastAfterLooking(t, f, 0.8, 0.5)
	if math.Abs(last.X-0.8*1920) > 10 {
		t.Errorf("after cancel X = %.1f, want regressor estimate near %.1f", last.X, 0.8*1920)
	}
}

func TestCalibrationPointWithoutGaze(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	f.tracker.BeginCalibration()
	if err := f.tracker.AddCalibrationPoint(100, 100, time.Now()); !errors.Is(err, ErrNoGaze) {
		t.Errorf("err = %v, want ErrNoGaze", err)
	}
}

func TestCalibrationTooFewSamples(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	ctx := context.Background()
	f.tracker.BeginCalibration()
	f.tracker.Step(ctx, time.Now())
	if err := f.tracker.AddCalibrationPoint(960, 540, time.Now()); err != nil {
		t.Fatal(err)
	}
	_, err := f.tracker.FinishCalibration(ctx)
	if !errors.Is(err, calibration.ErrInsufficientSamples) {
		t.Errorf("err = %v, want ErrInsufficientSamples", err)
	}
}

func TestSetMeshDiscardsCalibration(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	g := f.mesh.Geometry()
	m := &calibration.Model{
		ID:       "fixed",
		Method:   calibration.Affine,
		X:        calibration.Poly{0, 1},
		Y:        calibration.Poly{0, 1},
		Geometry: g,
		Samples:  4,
	}
	if err := f.tracker.deps.Fitter.Load(m); err != nil {
		t.Fatal(err)
	}

	f.tracker.SetMesh(display.NewMesh([]display.Monitor{{Width: 2560, Height: 1440, Primary: true}}))
	f.tracker.Step(context.Background(), time.Now())

	if f.tracker.deps.Fitter.Model() != nil {
		t.Error("calibration survived a desktop size change")
	}
	recs := f.sink.all()
	if len(recs) != 1 || recs[0].Calibrated {
		t.Fatalf("records = %+v", recs)
	}
	if recs[0].X < 1279 || recs[0].X > 1281 {
		t.Errorf("X = %v, want centre of the new desktop", recs[0].X)
	}
}

func TestSetMeshWhileReading(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	wide := display.NewMesh([]display.Monitor{{Width: 2560, Height: 1440, Primary: true}})
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			if i%2 == 0 {
				f.tracker.SetMesh(wide)
			} else {
				f.tracker.SetMesh(f.mesh)
			}
			f.tracker.Step(ctx, time.Now())
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}
		if m := f.tracker.Mesh(); m != wide && m != f.mesh {
			t.Fatalf("Mesh returned an unknown mesh %p", m)
		}
		f.tracker.Stats()
	}
}

func TestResetDeviceLeavesDemo(t *testing.T) {
	cfg := DefaultConfig()
	f := newFixture(t, cfg, nil)
	ctx := context.Background()

	f.frames.err = errors.New("device unplugged")
	for i := 0; i < cfg.MaxCaptureFailures; i++ {
		f.tracker.Step(ctx, time.Now())
	}
	if !f.tracker.Stats().Demo {
		t.Fatal("tracker did not fall back to demo data")
	}

	f.frames.err = nil
	f.tracker.ResetDevice()
	f.tracker.Step(ctx, time.Now())

	recs := f.sink.all()
	if last := recs[len(recs)-1]; last.Demo {
		t.Errorf("record after reopening the camera is demo data: %+v", last)
	}
	if f.tracker.Stats().Demo {
		t.Error("stats still report demo data")
	}

	// The failure count starts over after a reset.
	f.frames.err = errors.New("glitch")
	f.tracker.Step(ctx, time.Now())
	if f.tracker.Stats().Demo {
		t.Error("a single failure after reset switched back to demo data")
	}
}

func TestRunSkipsWhileBusy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameInterval = time.Millisecond
	release := make(chan struct{})
	f := newFixture(t, cfg, func(d *Deps) {
		d.Detector = facemesh.DetectorFunc(func(ctx context.Context, _ []byte) (facemesh.LandmarkSet, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil, facemesh.ErrNoFace
		})
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.tracker.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	close(release)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v", err)
	}
	if s := f.tracker.Stats(); s.Skipped == 0 {
		t.Errorf("no ticks skipped while a frame was in flight: %+v", s)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    Command
		wantErr bool
	}{
		{`{"type":"calibrate_begin"}`, Command{Type: CmdCalibrateBegin}, false},
		{`{"type":"calibrate_point","x":10,"y":20.5}`, Command{Type: CmdCalibratePoint, X: 10, Y: 20.5}, false},
		{`{"type":"PAUSE"}`, Command{Type: CmdPause}, false},
		{"CALIBRATE:100,200", Command{Type: CmdCalibratePoint, X: 100, Y: 200}, false},
		{"FINISH_CALIBRATION", Command{Type: CmdCalibrateFinish}, false},
		{"exit", Command{Type: CmdExit}, false},
		{"  resume  ", Command{Type: CmdResume}, false},
		{"CALIBRATE:abc", Command{}, true},
		{"CALIBRATE:1,x", Command{}, true},
		{`{"x":1}`, Command{}, true},
		{`{bad`, Command{}, true},
		{"dance", Command{}, true},
		{"", Command{}, true},
	}
	for _, tc := range tests {
		got, err := ParseCommand(tc.line)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseCommand(%q) err = %v, wantErr %v", tc.line, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseCommand(%q) = %+v, want %+v", tc.line, got, tc.want)
		}
	}
}

func TestServeCommands(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	in := strings.NewReader("PAUSE\n\nnonsense\n{\"type\":\"status\"}\nEXIT\nRESUME\n")
	var out bytes.Buffer

	err := f.tracker.ServeCommands(context.Background(), in, &out)
	if !errors.Is(err, ErrExit) {
		t.Fatalf("ServeCommands = %v, want ErrExit", err)
	}

	var replies []Reply
	dec := json.NewDecoder(&out)
	for dec.More() {
		var r Reply
		if err := dec.Decode(&r); err != nil {
			t.Fatal(err)
		}
		replies = append(replies, r)
	}
	if len(replies) != 3 {
		t.Fatalf("got %d replies, want 3: %+v", len(replies), replies)
	}
	if replies[0].Type != CmdPause || !replies[0].OK {
		t.Errorf("reply 0 = %+v", replies[0])
	}
	if replies[1].Type != "error" || replies[1].Error == "" {
		t.Errorf("reply 1 = %+v", replies[1])
	}
	if replies[2].Type != CmdStatus || !replies[2].OK {
		t.Errorf("reply 2 = %+v", replies[2])
	}
	if f.tracker.Stats().State != "paused" {
		t.Error("RESUME after EXIT was processed")
	}
}

func TestServeCommandsEOF(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	if err := f.tracker.ServeCommands(context.Background(), strings.NewReader("PAUSE\n"), nil); err != nil {
		t.Errorf("ServeCommands at EOF = %v, want nil", err)
	}
}

func TestRunCalibration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameInterval = time.Millisecond
	cfg.CalibrationSettle = 5 * time.Millisecond
	cfg.CalibrationDwell = 40 * time.Millisecond
	f := newFixture(t, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.tracker.Run(ctx)

	targets := calibration.Grid(f.mesh, 5)
	shown := 0
	m, err := f.tracker.RunCalibration(ctx, targets, func(i, n int, tg calibration.Target) {
		shown++
		nx, ny := f.mesh.Normalize(tg.X, tg.Y)
		f.face.look(0.5-(nx-0.5)*0.1, 0.5+(ny-0.5)*0.1)
	})
	if err != nil {
		t.Fatalf("RunCalibration: %v", err)
	}
	if shown != len(targets) {
		t.Errorf("shown %d targets, want %d", shown, len(targets))
	}
	if m.Samples != len(targets) {
		t.Errorf("model has %d samples, want %d", m.Samples, len(targets))
	}
	if m.Accuracy > 10 {
		t.Errorf("accuracy = %.1f px", m.Accuracy)
	}
}
