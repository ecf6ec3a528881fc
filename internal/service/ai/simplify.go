package ai

import (
	"fmt"
	"image/color"

	"gocv.io/x/gocv"
)

// Simplify parameters.
const (
	simplifyEdgeThresh = 100
	simplifyMinLength  = 12.0
	simplifyEpsilon    = 2.0
	simplifyThickness  = 2
)

// Simplify reduces the HED edge map of img to a few polylines drawn in black
// on white.
func (s *EdgeService) Simplify(img gocv.Mat) (gocv.Mat, error) {
	soft, err := s.edgeMap(img)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer soft.Close()

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(soft, &binary, simplifyEdgeThresh, 255, gocv.ThresholdBinary)

	contours := gocv.FindContours(binary, gocv.RetrievalList, gocv.ChainApproxSimple)
	defer contours.Close()

	lines := gocv.NewPointsVector()
	defer lines.Close()
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		if gocv.ArcLength(contour, false) < simplifyMinLength {
			continue
		}
		approx := gocv.ApproxPolyDP(contour, simplifyEpsilon, false)
		if approx.Size() >= 2 {
			lines.Append(approx)
		}
		approx.Close()
	}

	canvas := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), soft.Rows(), soft.Cols(), gocv.MatTypeCV8UC3)
	if lines.Size() > 0 {
		if err := gocv.Polylines(&canvas, lines, false, color.RGBA{A: 255}, simplifyThickness); err != nil {
			canvas.Close()
			return gocv.NewMat(), fmt.Errorf("failed to draw simplified lines: %w", err)
		}
	}
	if canvas.Empty() {
		canvas.Close()
		return gocv.NewMat(), fmt.Errorf("failed to draw simplified lines")
	}
	return canvas, nil
}
