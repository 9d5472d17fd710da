// Package detector provides the hand landmark capability used by the tracking loop.
package detector

// Hand landmark indices following the MediaPipe hand model. Only the index
// and middle fingertips drive the pointer; the rest are kept so fixtures
// can describe a whole hand.
const (
	Wrist        = 0
	ThumbTip     = 4
	IndexMCP     = 5
	IndexTip     = 8
	MiddleMCP    = 9
	MiddleTip    = 12
	RingTip      = 16
	PinkyTip     = 20
	NumLandmarks = 21
)

// Point3D is a landmark position. X and Y are normalized to [0,1] of the
// image; Z is relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks is one detected hand.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Fingertips returns the index and middle fingertip positions.
func (h *HandLandmarks) Fingertips() (index, middle Point3D) {
	return h.Points[IndexTip], h.Points[MiddleTip]
}
