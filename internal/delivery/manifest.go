package delivery

import (
	"fmt"
	"os"

	"github.com/forest-guardian/sentinel-indices/internal/interval"
	"github.com/gocarina/gocsv"
)

const manifestFile = "manifest.csv"

const (
	KindBand  = "band"
	KindIndex = "index"
)

// ManifestRow describes one written raster.
type ManifestRow struct {
	From    string  `csv:"from"`
	To      string  `csv:"to"`
	Layer   string  `csv:"layer"`
	Kind    string  `csv:"kind"`
	Path    string  `csv:"path"`
	Preview string  `csv:"preview"`
	Min     float64 `csv:"min"`
	Max     float64 `csv:"max"`
	Mean    float64 `csv:"mean"`
	Count   int     `csv:"valid_pixels"`
}

type Manifest struct {
	Path         string
	Rows         []ManifestRow
	Skipped      []interval.Interval
	// NotAttempted lists intervals left unfetched after a failure.
	NotAttempted []interval.Interval
}

func (m *Manifest) write() error {
	file, err := os.Create(m.Path)
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	defer file.Close()

	rows := m.Rows
	if rows == nil {
		rows = []ManifestRow{}
	}
	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", m.Path, err)
	}
	return nil
}

// ReadManifest loads a manifest written by Run.
func ReadManifest(path string) ([]ManifestRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var rows []ManifestRow
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	return rows, nil
}
