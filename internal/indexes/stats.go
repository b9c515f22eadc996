package indexes

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type Stats struct {
	Min   float64
	Max   float64
	Mean  float64
	Count int
}

// Summarize computes statistics over the finite samples of a raster.
// NaN and ±Inf samples are ignored; with no finite sample every field but
// Count is NaN.
func Summarize(data [][]float64) Stats {
	var finite []float64
	for _, row := range data {
		for _, v := range row {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				finite = append(finite, v)
			}
		}
	}
	if len(finite) == 0 {
		return Stats{Min: math.NaN(), Max: math.NaN(), Mean: math.NaN()}
	}
	return Stats{
		Min:   floats.Min(finite),
		Max:   floats.Max(finite),
		Mean:  stat.Mean(finite, nil),
		Count: len(finite),
	}
}
