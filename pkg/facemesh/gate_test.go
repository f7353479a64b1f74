package facemesh

import (
	"context"
	"errors"
	"testing"
)

type stubFinder struct {
	boxes []Box
	err   error
}

func (f stubFinder) FindFaces([]byte) ([]Box, error) { return f.boxes, f.err }
func (f stubFinder) Close() error                    { return nil }

func TestSelectBest(t *testing.T) {
	if _, ok := SelectBest(nil); ok {
		t.Fatal("expected no box from empty input")
	}

	near := Box{X: 0.3, Y: 0.3, W: 0.4, H: 0.4, Score: 0.8}
	far := Box{X: 0.1, Y: 0.1, W: 0.1, H: 0.1, Score: 0.9}
	best, ok := SelectBest([]Box{far, near})
	if !ok || best != near {
		t.Errorf("SelectBest = %+v, want the larger face", best)
	}

	x, y := near.Center()
	if x != 0.5 || y != 0.5 {
		t.Errorf("Center = (%v, %v), want (0.5, 0.5)", x, y)
	}
}

func TestGate(t *testing.T) {
	calls := 0
	next := DetectorFunc(func(context.Context, []byte) (LandmarkSet, error) {
		calls++
		return LandmarkSet{{X: 0.5, Y: 0.5}}, nil
	})

	tests := []struct {
		name      string
		finder    stubFinder
		wantErr   error
		wantCalls int
	}{
		{"face present", stubFinder{boxes: []Box{{W: 0.2, H: 0.2, Score: 0.9}}}, nil, 1},
		{"no face", stubFinder{}, ErrNoFace, 0},
		{"low score", stubFinder{boxes: []Box{{W: 0.2, H: 0.2, Score: 0.1}}}, ErrNoFace, 0},
		{"finder error passes through", stubFinder{err: errors.New("boom")}, nil, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			calls = 0
			g := NewGate(tc.finder, next, 0.5)
			_, err := g.Detect(context.Background(), []byte{0xff})
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
			if calls != tc.wantCalls {
				t.Errorf("landmark calls = %d, want %d", calls, tc.wantCalls)
			}
		})
	}
}

func TestNewYuNetMissingModel(t *testing.T) {
	cfg := DefaultYuNetConfig()
	cfg.ModelPath = "/nonexistent/face_detection_yunet.onnx"
	if _, err := NewYuNet(cfg); err == nil {
		t.Error("expected error for missing model")
	}
}
