// Package features turns a face landmark set into the fixed-length numeric
// vector consumed by gaze estimators.
package features

// Size is the number of values in a Vector.
const Size = 14

// Positions of each value inside Vector.Values.
const (
	LeftPupilNormX = iota
	LeftPupilNormY
	RightPupilNormX
	RightPupilNormY
	LeftPupilX
	LeftPupilY
	RightPupilX
	RightPupilY
	HeadTilt
	HeadPan
	HeadDepth
	LeftEyeWidth
	RightEyeWidth
	Bias
)

// biasValue fills the constant slot so linear models get an intercept term.
const biasValue = 0.5

// Vector is the per-frame feature vector. It is a value type; copies are
// independent.
type Vector struct {
	Values [Size]float64

	// IrisPoints is the smaller per-eye count of iris ring points used,
	// or 0 when pupils came from eye contours.
	IrisPoints int
}

// UsedIris reports whether both pupils came from iris rings.
func (v Vector) UsedIris() bool { return v.IrisPoints > 0 }

// Pupil returns the mean raw pupil position across both eyes in frame
// coordinates.
func (v Vector) Pupil() (x, y float64) {
	return (v.Values[LeftPupilX] + v.Values[RightPupilX]) / 2,
		(v.Values[LeftPupilY] + v.Values[RightPupilY]) / 2
}

// PupilNorm returns the mean eye-width-normalized pupil offset.
func (v Vector) PupilNorm() (x, y float64) {
	return (v.Values[LeftPupilNormX] + v.Values[RightPupilNormX]) / 2,
		(v.Values[LeftPupilNormY] + v.Values[RightPupilNormY]) / 2
}

// Slice returns the values as a new slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, Size)
	copy(out, v.Values[:])
	return out
}
