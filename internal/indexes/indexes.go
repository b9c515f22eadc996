package indexes

import (
	"errors"
	"fmt"
)

// Epsilon is added to every denominator so that zero sums never divide by zero.
const Epsilon = 1e-6

var ErrShapeMismatch = errors.New("band shape mismatch")

type Name string

const (
	NDVI Name = "NDVI"
	NDMI Name = "NDMI"
	BSI  Name = "BSI"
	SAVI Name = "SAVI"
	EVI  Name = "EVI"
)

// Names lists every computed index in output order.
var Names = []Name{NDVI, NDMI, BSI, SAVI, EVI}

type formula func(blue, red, nir, swir float64) float64

var formulas = map[Name]formula{
	NDVI: func(_, red, nir, _ float64) float64 {
		return (nir - red) / (nir + red + Epsilon)
	},
	NDMI: func(_, _, nir, swir float64) float64 {
		return (nir - swir) / (nir + swir + Epsilon)
	},
	BSI: func(blue, red, nir, swir float64) float64 {
		return ((swir + red) - (nir + blue)) / ((swir + red) + (nir + blue) + Epsilon)
	},
	SAVI: func(_, red, nir, _ float64) float64 {
		return (nir - red) / (nir + red + 0.5 + Epsilon)
	},
	EVI: func(blue, red, nir, _ float64) float64 {
		// float64() conversions keep the products from being fused into FMAs.
		return (nir - red) / (nir - float64(6*red) - float64(7.5*blue) + 1 + Epsilon)
	},
}

// Shape returns the row and column count of a band. Ragged bands report ok=false.
func Shape(band [][]float64) (rows, cols int, ok bool) {
	rows = len(band)
	if rows == 0 {
		return 0, 0, true
	}
	cols = len(band[0])
	for _, row := range band[1:] {
		if len(row) != cols {
			return rows, cols, false
		}
	}
	return rows, cols, true
}

func checkShapes(bands map[string][][]float64) (int, int, error) {
	rows, cols, ok := Shape(bands["blue"])
	if !ok {
		return 0, 0, fmt.Errorf("%w: blue band is ragged", ErrShapeMismatch)
	}
	for _, name := range []string{"red", "nir", "swir"} {
		r, c, ok := Shape(bands[name])
		if !ok {
			return 0, 0, fmt.Errorf("%w: %s band is ragged", ErrShapeMismatch, name)
		}
		if r != rows || c != cols {
			return 0, 0, fmt.Errorf("%w: %s is %dx%d, blue is %dx%d", ErrShapeMismatch, name, r, c, rows, cols)
		}
	}
	return rows, cols, nil
}

// Compute derives every index in Names pixel by pixel. Values are not clamped.
func Compute(blue, red, nir, swir [][]float64) (map[Name][][]float64, error) {
	rows, cols, err := checkShapes(map[string][][]float64{
		"blue": blue,
		"red":  red,
		"nir":  nir,
		"swir": swir,
	})
	if err != nil {
		return nil, err
	}

	result := make(map[Name][][]float64, len(Names))
	for _, name := range Names {
		f := formulas[name]
		data := make([][]float64, rows)
		for y := range data {
			data[y] = make([]float64, cols)
			for x := range data[y] {
				data[y][x] = f(blue[y][x], red[y][x], nir[y][x], swir[y][x])
			}
		}
		result[name] = data
	}
	return result, nil
}
