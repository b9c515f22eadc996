package raster

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/airbusgeo/godal"
)

var registerOnce sync.Once

func register() {
	registerOnce.Do(godal.RegisterAll)
}

// ignoreWarnings turns GDAL failures into errors and drops warnings.
func ignoreWarnings(ec godal.ErrorCategory, code int, msg string) error {
	if ec == godal.CE_Warning {
		return nil
	}
	return fmt.Errorf("gdal error %d: %s", code, msg)
}

// Metadata is the spatial description shared by every band of one image.
type Metadata struct {
	GeoTransform [6]float64
	Projection   string
	Width        int
	Height       int
}

type Image struct {
	Metadata
	// Bands holds one [row][col] grid per band, in file order.
	Bands [][][]float64
}

// ReadBands loads every band of the raster at path as float64 grids.
func ReadBands(path string) (*Image, error) {
	register()
	ds, err := godal.Open(path, godal.ErrLogger(ignoreWarnings))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer ds.Close()

	geoTransform, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("failed to read geotransform of %s: %w", path, err)
	}
	structure := ds.Structure()
	img := &Image{
		Metadata: Metadata{
			GeoTransform: geoTransform,
			Projection:   ds.Projection(),
			Width:        structure.SizeX,
			Height:       structure.SizeY,
		},
	}

	width, height := structure.SizeX, structure.SizeY
	for i, band := range ds.Bands() {
		data := make([]float64, width*height)
		if err := band.Read(0, 0, data, width, height); err != nil {
			return nil, fmt.Errorf("failed to read band %d of %s: %w", i+1, path, err)
		}
		nodata, hasNoData := band.NoData()
		grid := make([][]float64, height)
		for y := range grid {
			grid[y] = data[y*width : (y+1)*width]
			if hasNoData {
				for x, v := range grid[y] {
					if v == nodata {
						grid[y][x] = math.NaN()
					}
				}
			}
		}
		img.Bands = append(img.Bands, grid)
	}
	return img, nil
}

// Write stores bands as a DEFLATE-compressed Float32 GeoTIFF carrying meta's
// geotransform and projection. Every band must be meta.Height x meta.Width.
func Write(path string, meta Metadata, bands ...[][]float64) error {
	if len(bands) == 0 {
		return fmt.Errorf("no band to write to %s", path)
	}
	buffers := make([][]float32, len(bands))
	for b, data := range bands {
		if len(data) != meta.Height {
			return fmt.Errorf("band %d has %d rows, metadata expects %d", b+1, len(data), meta.Height)
		}
		buffer := make([]float32, meta.Width*meta.Height)
		for y, row := range data {
			if len(row) != meta.Width {
				return fmt.Errorf("band %d row %d has %d columns, metadata expects %d", b+1, y, len(row), meta.Width)
			}
			for x, v := range row {
				buffer[y*meta.Width+x] = float32(v)
			}
		}
		buffers[b] = buffer
	}

	register()
	ds, err := godal.Create(godal.GTiff, path, len(bands), godal.Float32, meta.Width, meta.Height,
		godal.CreationOption("COMPRESS=DEFLATE", "PREDICTOR=3", "TILED=YES"),
		godal.ErrLogger(ignoreWarnings))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	writeErr := func() error {
		if err := ds.SetGeoTransform(meta.GeoTransform); err != nil {
			return fmt.Errorf("failed to set geotransform: %w", err)
		}
		if meta.Projection != "" {
			if err := ds.SetProjection(meta.Projection); err != nil {
				return fmt.Errorf("failed to set projection: %w", err)
			}
		}
		for b, band := range ds.Bands() {
			if err := band.Write(0, 0, buffers[b], meta.Width, meta.Height); err != nil {
				return fmt.Errorf("failed to write band %d: %w", b+1, err)
			}
		}
		return nil
	}()
	closeErr := ds.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// AllNoData reports whether every sample of every band is zero or NaN.
func AllNoData(bands ...[][]float64) bool {
	for _, band := range bands {
		for _, row := range band {
			for _, v := range row {
				if v != 0 && !math.IsNaN(v) {
					return false
				}
			}
		}
	}
	return true
}
