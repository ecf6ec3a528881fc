package ai

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Trace parameters.
const (
	traceBlurSize  = 5
	traceLowThresh = 50
	traceHighThres = 150
)

// Trace returns a line drawing of img: dark Canny edges on a white background.
func Trace(img gocv.Mat) (gocv.Mat, error) {
	gray, err := ToGray(img)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer gray.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	if err := gocv.GaussianBlur(gray, &blurred, image.Pt(traceBlurSize, traceBlurSize), 0, 0, gocv.BorderDefault); err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to blur frame: %w", err)
	}

	edges := gocv.NewMat()
	defer edges.Close()
	if err := gocv.Canny(blurred, &edges, traceLowThresh, traceHighThres); err != nil {
		return gocv.NewMat(), fmt.Errorf("edge detection failed: %w", err)
	}

	return invertToBGR(edges)
}

// invertToBGR turns a white-on-black single channel mask into a black-on-white
// 3-channel image.
func invertToBGR(mask gocv.Mat) (gocv.Mat, error) {
	if mask.Empty() {
		return gocv.NewMat(), fmt.Errorf("edge detection produced no output")
	}

	inverted := gocv.NewMat()
	defer inverted.Close()
	if err := gocv.BitwiseNot(mask, &inverted); err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to invert edges: %w", err)
	}

	out := gocv.NewMat()
	if err := gocv.CvtColor(inverted, &out, gocv.ColorGrayToBGR); err != nil {
		out.Close()
		return gocv.NewMat(), fmt.Errorf("failed to convert edges to BGR: %w", err)
	}
	return out, nil
}
