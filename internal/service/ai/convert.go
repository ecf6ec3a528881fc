package ai

import (
	"fmt"

	"gocv.io/x/gocv"
)

// ToBGR returns a continuous 3-channel copy of img. Grayscale and BGRA
// inputs are converted; the caller owns the result.
func ToBGR(img gocv.Mat) (gocv.Mat, error) {
	if img.Empty() {
		return gocv.NewMat(), fmt.Errorf("empty image")
	}

	switch img.Channels() {
	case 3:
		return img.Clone(), nil
	case 1:
		out := gocv.NewMat()
		if err := gocv.CvtColor(img, &out, gocv.ColorGrayToBGR); err != nil {
			out.Close()
			return gocv.NewMat(), fmt.Errorf("failed to convert gray to BGR: %w", err)
		}
		return out, nil
	case 4:
		out := gocv.NewMat()
		if err := gocv.CvtColor(img, &out, gocv.ColorBGRAToBGR); err != nil {
			out.Close()
			return gocv.NewMat(), fmt.Errorf("failed to convert BGRA to BGR: %w", err)
		}
		return out, nil
	default:
		return gocv.NewMat(), fmt.Errorf("unsupported channel count %d", img.Channels())
	}
}

// ToGray returns a single channel copy of img.
func ToGray(img gocv.Mat) (gocv.Mat, error) {
	if img.Channels() == 1 {
		return img.Clone(), nil
	}

	bgr, err := ToBGR(img)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer bgr.Close()

	gray := gocv.NewMat()
	if err := gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray); err != nil {
		gray.Close()
		return gocv.NewMat(), fmt.Errorf("failed to convert image to grayscale: %w", err)
	}
	return gray, nil
}
