package output

import (
	"fmt"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/forest-guardian/sentinel-indices/internal/indexes"
)

func normalize(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	norm := (value - min) / (max - min)
	if norm < 0 {
		return 0
	}
	if norm > 1 {
		return 1
	}
	return norm
}

func valueToColor(norm float64) color.RGBA {
	var r, g, b uint8
	if norm <= 0.5 {
		// blue to green
		ratio := norm / 0.5
		r = 0
		g = uint8(255 * ratio)
		b = uint8(255 * (1 - ratio))
	} else {
		// green to red
		ratio := (norm - 0.5) / 0.5
		r = uint8(255 * ratio)
		g = uint8(255 * (1 - ratio))
		b = 0
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// CreateIndexPreview renders data as a PNG quicklook stretched between its
// finite min and max. Non-finite pixels stay transparent.
func CreateIndexPreview(path string, data [][]float64) error {
	rows, cols, ok := indexes.Shape(data)
	if !ok || rows == 0 || cols == 0 {
		return fmt.Errorf("cannot render a %dx%d raster", rows, cols)
	}
	stats := indexes.Summarize(data)

	dc := gg.NewContext(cols, rows)
	for y, row := range data {
		for x, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			dc.SetColor(valueToColor(normalize(v, stats.Min, stats.Max)))
			dc.SetPixel(x, y)
		}
	}

	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("failed to save preview %s: %w", path, err)
	}
	return nil
}
