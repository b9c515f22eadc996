package delivery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/forest-guardian/sentinel-indices/internal/indexes"
	"github.com/forest-guardian/sentinel-indices/internal/interval"
	"github.com/forest-guardian/sentinel-indices/internal/log"
	"github.com/forest-guardian/sentinel-indices/internal/properties"
	"github.com/forest-guardian/sentinel-indices/internal/raster"
	"github.com/forest-guardian/sentinel-indices/internal/sentinel"
	"github.com/forest-guardian/sentinel-indices/output"
	"github.com/gammazero/workerpool"
	"github.com/paulmach/orb"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// ErrNoData marks an interval whose image holds nothing but zeros and no-data.
var ErrNoData = errors.New("image holds no data")

// Provider fetches the Blue, Red, NIR and SWIR bands of one interval into dir.
type Provider interface {
	RequestImage(ctx context.Context, req sentinel.Request, dir string) (*sentinel.Image, error)
}

type Job struct {
	Bounds           orb.Bound
	Range            interval.DateRange
	Step             interval.StepUnit
	MaxCloudCoverage float64
	Resolution       float64
	// Workers > 1 processes intervals concurrently.
	Workers      int
	Preview      bool
	OutDir       string
	ShowProgress bool
}

type layer struct {
	name string
	kind string
	data [][]float64
}

type result struct {
	attempted bool
	rows      []ManifestRow
	err       error
}

// Run fetches every interval of job, derives the indexes and writes one
// GeoTIFF per band and index plus a manifest.csv under job.OutDir
// (cfg.RootPath when empty).
func Run(ctx context.Context, cfg *properties.Config, provider Provider, job Job) (*Manifest, error) {
	if job.OutDir == "" {
		job.OutDir = cfg.RootPath
	}
	intervals, err := job.Range.Partition(job.Step)
	if err != nil {
		return nil, err
	}
	logger := log.Logger(ctx)
	logger.Info("partitioned date range",
		zap.Time("start", job.Range.Start),
		zap.Time("end", job.Range.End),
		zap.Stringer("step", job.Step),
		zap.Int("intervals", len(intervals)))

	if err := os.MkdirAll(job.OutDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", job.OutDir, err)
	}

	var bar *progressbar.ProgressBar
	if job.ShowProgress {
		bar = progressbar.Default(int64(len(intervals)), "Fetching intervals")
	} else {
		bar = progressbar.DefaultSilent(int64(len(intervals)))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]result, len(intervals))
	process := func(i int) {
		if err := ctx.Err(); err != nil {
			results[i] = result{err: err}
			return
		}
		rows, err := processInterval(ctx, provider, job, intervals[i])
		if err != nil && !errors.Is(err, ErrNoData) {
			cancel()
		}
		results[i] = result{attempted: true, rows: rows, err: err}
		bar.Add(1)
	}

	if job.Workers <= 1 {
		for i := range intervals {
			process(i)
			if err := results[i].err; err != nil && !errors.Is(err, ErrNoData) {
				break
			}
		}
	} else {
		wp := workerpool.New(job.Workers)
		for i := range intervals {
			i := i
			wp.Submit(func() { process(i) })
		}
		wp.StopWait()
	}
	bar.Finish()

	manifest := &Manifest{Path: filepath.Join(job.OutDir, manifestFile)}
	var firstErr error
	for i, res := range results {
		if !res.attempted {
			manifest.NotAttempted = append(manifest.NotAttempted, intervals[i])
			if res.err == nil {
				continue
			}
		}
		switch {
		case res.err == nil:
			manifest.Rows = append(manifest.Rows, res.rows...)
		case errors.Is(res.err, ErrNoData):
			logger.Warn("skipping interval without data", zap.Stringer("interval", intervals[i]))
			manifest.Skipped = append(manifest.Skipped, intervals[i])
		case firstErr == nil || errors.Is(firstErr, context.Canceled):
			// prefer the failure that triggered the cancellation
			firstErr = fmt.Errorf("interval %s: %w", intervals[i], res.err)
		}
	}

	if len(manifest.NotAttempted) > 0 {
		logger.Warn("intervals not attempted",
			zap.Int("count", len(manifest.NotAttempted)),
			zap.Stringer("first", manifest.NotAttempted[0]))
	}

	if err := manifest.write(); err != nil {
		return manifest, errors.Join(firstErr, err)
	}
	if firstErr != nil {
		return manifest, firstErr
	}
	logger.Info("run finished",
		zap.Int("files", len(manifest.Rows)),
		zap.Int("skipped", len(manifest.Skipped)),
		zap.String("manifest", manifest.Path))
	return manifest, nil
}

func processInterval(ctx context.Context, provider Provider, job Job, iv interval.Interval) ([]ManifestRow, error) {
	ctx = log.With(ctx, zap.Stringer("interval", iv))
	logger := log.Logger(ctx)
	dir := filepath.Join(job.OutDir, iv.String())

	logger.Info("fetching image")
	img, err := provider.RequestImage(ctx, sentinel.Request{
		Bounds:           job.Bounds,
		Interval:         iv,
		MaxCloudCoverage: job.MaxCloudCoverage,
		Resolution:       job.Resolution,
	}, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}

	data, err := raster.ReadBands(img.Path)
	if err != nil {
		return nil, err
	}
	if len(data.Bands) < len(sentinel.BandOrder) {
		return nil, fmt.Errorf("image %s has %d bands, expected %d", img.Path, len(data.Bands), len(sentinel.BandOrder))
	}
	bands := data.Bands[:len(sentinel.BandOrder)]
	if raster.AllNoData(bands...) {
		return nil, ErrNoData
	}

	computed, err := indexes.Compute(bands[sentinel.Blue], bands[sentinel.Red], bands[sentinel.NIR], bands[sentinel.SWIR])
	if err != nil {
		return nil, fmt.Errorf("failed to compute indexes: %w", err)
	}

	var layers []layer
	for i, name := range sentinel.BandOrder {
		layers = append(layers, layer{name: name, kind: KindBand, data: bands[i]})
	}
	for _, name := range indexes.Names {
		layers = append(layers, layer{name: string(name), kind: KindIndex, data: computed[name]})
	}

	rows := make([]ManifestRow, 0, len(layers))
	for _, l := range layers {
		path := filepath.Join(dir, l.name+".tif")
		if err := raster.Write(path, data.Metadata, l.data); err != nil {
			return nil, err
		}
		stats := indexes.Summarize(l.data)
		row := ManifestRow{
			From:  iv.From.Format(interval.DateLayout),
			To:    iv.To.Format(interval.DateLayout),
			Layer: l.name,
			Kind:  l.kind,
			Path:  path,
			Min:   stats.Min,
			Max:   stats.Max,
			Mean:  stats.Mean,
			Count: stats.Count,
		}
		if job.Preview && l.kind == KindIndex {
			row.Preview = filepath.Join(dir, l.name+".png")
			if err := output.CreateIndexPreview(row.Preview, l.data); err != nil {
				return nil, err
			}
		}
		rows = append(rows, row)
	}
	logger.Info("interval written", zap.String("dir", dir), zap.Int("files", len(rows)))
	return rows, nil
}
