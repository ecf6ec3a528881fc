package ai

import (
	"fmt"
	"image/color"

	"gocv.io/x/gocv"
)

// DefaultPalette is the color set used by the quantize action.
var DefaultPalette = []color.RGBA{
	{R: 255, G: 255, B: 255, A: 255},
	{R: 0, G: 0, B: 0, A: 255},
	{R: 127, G: 0, B: 0, A: 255},
	{R: 0, G: 0, B: 127, A: 255},
	{R: 0, G: 127, B: 0, A: 255},
}

// Quantize maps every pixel to the nearest palette color (euclidean in RGB).
func Quantize(img gocv.Mat, palette []color.RGBA) (gocv.Mat, error) {
	if len(palette) == 0 {
		return gocv.NewMat(), fmt.Errorf("empty palette")
	}

	src, err := ToBGR(img)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer src.Close()

	data := src.ToBytes()
	out := make([]byte, len(data))
	for i := 0; i+2 < len(data); i += 3 {
		c := nearest(palette, data[i+2], data[i+1], data[i])
		out[i], out[i+1], out[i+2] = c.B, c.G, c.R
	}

	dst, err := gocv.NewMatFromBytes(src.Rows(), src.Cols(), gocv.MatTypeCV8UC3, out)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to build quantized image: %w", err)
	}
	return dst, nil
}

func nearest(palette []color.RGBA, r, g, b uint8) color.RGBA {
	best := palette[0]
	bestDist := -1
	for _, c := range palette {
		dr := int(r) - int(c.R)
		dg := int(g) - int(c.G)
		db := int(b) - int(c.B)
		d := dr*dr + dg*dg + db*db
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
