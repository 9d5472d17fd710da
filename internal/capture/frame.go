package capture

import (
	"image"

	"gocv.io/x/gocv"
)

// Mirror returns a horizontally flipped copy of src so the image behaves
// like a mirror for the user facing the camera. The caller owns the result.
func Mirror(src *gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Flip(*src, &dst, 1)
	return dst
}

// FrameSize returns the frame dimensions in pixels.
func FrameSize(m *gocv.Mat) image.Point {
	return image.Pt(m.Cols(), m.Rows())
}
