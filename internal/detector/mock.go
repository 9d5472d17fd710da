package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu     sync.Mutex
	hands  []HandLandmarks
	err    error
	calls  int
	closed bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Calls returns how many times Detect was invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// HandAt returns a right hand whose index and middle fingertips sit at the
// given normalized positions. The remaining points form a loose open hand
// below the fingertips.
func HandAt(index, middle Point3D) HandLandmarks {
	h := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	base := Point3D{X: (index.X + middle.X) / 2, Y: (index.Y+middle.Y)/2 + 0.3}
	h.Points[Wrist] = base
	for i := 1; i < NumLandmarks; i++ {
		h.Points[i] = Point3D{X: base.X, Y: base.Y - 0.1}
	}
	h.Points[ThumbTip] = Point3D{X: base.X + 0.12, Y: base.Y - 0.12}
	h.Points[IndexMCP] = Point3D{X: index.X, Y: base.Y - 0.12}
	h.Points[MiddleMCP] = Point3D{X: middle.X, Y: base.Y - 0.12}
	h.Points[IndexTip] = index
	h.Points[MiddleTip] = middle
	h.Points[RingTip] = Point3D{X: base.X - 0.04, Y: base.Y - 0.2}
	h.Points[PinkyTip] = Point3D{X: base.X - 0.08, Y: base.Y - 0.15}
	return h
}

// PinchLandmarks returns a hand with index and middle fingertips touching
// near the center of the frame.
func PinchLandmarks() HandLandmarks {
	return HandAt(Point3D{X: 0.50, Y: 0.40}, Point3D{X: 0.51, Y: 0.41})
}

// PointingLandmarks returns a hand with index and middle fingertips spread
// well apart.
func PointingLandmarks() HandLandmarks {
	return HandAt(Point3D{X: 0.30, Y: 0.30}, Point3D{X: 0.45, Y: 0.45})
}
