package facemesh

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// YuNetConfig configures the YuNet face finder.
type YuNetConfig struct {
	ModelPath      string  // ONNX model
	ScoreThreshold float64 // Minimum detector score
	InputWidth     int
	InputHeight    int
}

// DefaultYuNetConfig returns the standard YuNet settings.
func DefaultYuNetConfig() YuNetConfig {
	return YuNetConfig{
		ModelPath:      "models/face_detection_yunet.onnx",
		ScoreThreshold: 0.5,
		InputWidth:     320,
		InputHeight:    320,
	}
}

// YuNet finds faces with OpenCV's FaceDetectorYN.
type YuNet struct {
	mu       sync.Mutex
	detector gocv.FaceDetectorYN
}

// NewYuNet loads the model at cfg.ModelPath.
func NewYuNet(cfg YuNetConfig) (*YuNet, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("yunet model: %w", err)
	}
	d := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"",
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ScoreThreshold),
		0.3,  // NMS threshold
		5000, // top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)
	return &YuNet{detector: d}, nil
}

// FindFaces implements BoxFinder.
func (y *YuNet) FindFaces(frame []byte) ([]Box, error) {
	y.mu.Lock()
	defer y.mu.Unlock()

	img, err := gocv.IMDecode(frame, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, errors.New("empty frame")
	}

	w, h := float64(img.Cols()), float64(img.Rows())
	y.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()
	y.detector.Detect(img, &faces)

	// Rows: x, y, w, h in pixels, five landmark pairs, score.
	boxes := make([]Box, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		boxes = append(boxes, Box{
			X:     float64(faces.GetFloatAt(r, 0)) / w,
			Y:     float64(faces.GetFloatAt(r, 1)) / h,
			W:     float64(faces.GetFloatAt(r, 2)) / w,
			H:     float64(faces.GetFloatAt(r, 3)) / h,
			Score: float64(faces.GetFloatAt(r, 14)),
		})
	}
	return boxes, nil
}

// Close releases the detector.
func (y *YuNet) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.detector.Close()
	return nil
}
