package facemesh

// Indices names the anatomical landmarks consumers rely on. It is passed to
// constructors so alternative models with different numbering can be used.
type Indices struct {
	// MinLandmarks is the smallest set a frame must carry to be usable.
	MinLandmarks int

	LeftIris  []int
	RightIris []int
	LeftEye   []int
	RightEye  []int

	LeftInnerCorner  int
	LeftOuterCorner  int
	RightInnerCorner int
	RightOuterCorner int

	NoseTip    int
	NoseBridge int
	LeftEar    int
	RightEar   int
}

// DefaultIndices returns the table for the 478-point refined face mesh
// (468 face points plus two 5-point iris rings).
func DefaultIndices() Indices {
	return Indices{
		MinLandmarks: 468,

		LeftIris:  []int{474, 475, 476, 477, 473},
		RightIris: []int{469, 470, 471, 472, 468},
		LeftEye: []int{
			362, 382, 381, 380, 374, 373, 390, 249,
			263, 466, 388, 387, 386, 385, 384, 398,
		},
		RightEye: []int{
			33, 7, 163, 144, 145, 153, 154, 155,
			133, 173, 157, 158, 159, 160, 161, 246,
		},

		LeftInnerCorner:  362,
		LeftOuterCorner:  263,
		RightInnerCorner: 133,
		RightOuterCorner: 33,

		NoseTip:    1,
		NoseBridge: 168,
		LeftEar:    234,
		RightEar:   454,
	}
}

// Required returns the single-point indices every usable frame must carry.
func (idx Indices) Required() []int {
	return []int{
		idx.LeftInnerCorner, idx.LeftOuterCorner,
		idx.RightInnerCorner, idx.RightOuterCorner,
		idx.NoseTip, idx.NoseBridge,
		idx.LeftEar, idx.RightEar,
	}
}
