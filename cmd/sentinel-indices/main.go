package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/araddon/dateparse"
	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/forest-guardian/sentinel-indices/internal/delivery"
	"github.com/forest-guardian/sentinel-indices/internal/interval"
	"github.com/forest-guardian/sentinel-indices/internal/log"
	"github.com/forest-guardian/sentinel-indices/internal/notification"
	"github.com/forest-guardian/sentinel-indices/internal/properties"
	"github.com/forest-guardian/sentinel-indices/internal/sentinel"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func printBanner(w io.Writer) {
	banner := figure.NewFigure("Sentinel", "isometric1", true)
	bannercolor.New(bannercolor.FgCyan).Fprintln(w, banner.String())
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "sentinel-indices",
		Short:        "Download Sentinel-2 bands and derive spectral indices over a date range",
		SilenceUsage: true,
	}
	root.AddCommand(newFetchCmd(), newIntervalsCmd())
	return root
}

type rangeFlags struct {
	start string
	end   string
	step  string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.start, "start", "", "first day of the range (inclusive)")
	cmd.Flags().StringVar(&f.end, "end", "", "last day of the range (exclusive)")
	cmd.Flags().StringVar(&f.step, "step", "1M", "interval length, e.g. 1M, 3M, 10D")
	for _, name := range []string{"start", "end"} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}

func (f *rangeFlags) resolve() (interval.DateRange, interval.StepUnit, error) {
	step, err := interval.ParseStep(f.step)
	if err != nil {
		return interval.DateRange{}, interval.StepUnit{}, err
	}
	start, err := parseDate(f.start)
	if err != nil {
		return interval.DateRange{}, interval.StepUnit{}, err
	}
	end, err := parseDate(f.end)
	if err != nil {
		return interval.DateRange{}, interval.StepUnit{}, err
	}
	r, err := interval.NewDateRange(start, end)
	return r, step, err
}

// parseDate accepts any layout dateparse understands and keeps the UTC day.
func parseDate(s string) (time.Time, error) {
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return interval.Day(t), nil
}

func newIntervalsCmd() *cobra.Command {
	var flags rangeFlags
	cmd := &cobra.Command{
		Use:   "intervals",
		Short: "Print the sub-intervals a fetch would request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, step, err := flags.resolve()
			if err != nil {
				return err
			}
			intervals, err := r.Partition(step)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, iv := range intervals {
				fmt.Fprintf(out, "%s\t%s\n", iv.From.Format(interval.DateLayout), iv.To.Format(interval.DateLayout))
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

type fetchFlags struct {
	rangeFlags
	bbox       string
	aoi        string
	maxCloud   float64
	resolution float64
	workers    int
	preview    bool
	envFile    string
	out        string
	debug      bool
	notify     bool
	quiet      bool
}

func newFetchCmd() *cobra.Command {
	var flags fetchFlags
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch every interval and write bands, indices and a manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd, &flags)
		},
	}
	flags.rangeFlags.register(cmd)
	f := cmd.Flags()
	f.StringVar(&flags.bbox, "bbox", "", "area of interest as minLon,minLat,maxLon,maxLat")
	f.StringVar(&flags.aoi, "aoi", "", "GeoJSON file whose bounds are the area of interest")
	f.Float64Var(&flags.maxCloud, "max-cloud", 30, "maximum cloud coverage in percent")
	f.Float64Var(&flags.resolution, "resolution", 10, "pixel size in meters")
	f.IntVar(&flags.workers, "workers", 1, "intervals processed concurrently")
	f.BoolVar(&flags.preview, "preview", false, "also write a PNG preview per index")
	f.StringVar(&flags.envFile, "env", ".env", "env file with the Sentinel Hub credentials")
	f.StringVar(&flags.out, "out", "", "output directory (defaults to ROOT_PATH)")
	f.BoolVar(&flags.debug, "debug", false, "verbose console logging")
	f.BoolVar(&flags.notify, "notify", false, "post the result to the Discord webhooks")
	f.BoolVarP(&flags.quiet, "quiet", "q", false, "no banner and no progress bar")
	cmd.MarkFlagsMutuallyExclusive("bbox", "aoi")
	cmd.MarkFlagsOneRequired("bbox", "aoi")
	return cmd
}

func loadBounds(flags *fetchFlags) (orb.Bound, error) {
	if flags.aoi != "" {
		return sentinel.GetBoundsFromGeoJSON(flags.aoi)
	}
	return sentinel.ParseBBox(flags.bbox)
}

func runFetch(cmd *cobra.Command, flags *fetchFlags) error {
	r, step, err := flags.resolve()
	if err != nil {
		return err
	}
	bounds, err := loadBounds(flags)
	if err != nil {
		return err
	}
	cfg, err := properties.Load(flags.envFile)
	if err != nil {
		return err
	}

	logger, err := log.New(flags.debug)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	ctx := log.WithLogger(cmd.Context(), logger)

	if !flags.quiet {
		printBanner(cmd.ErrOrStderr())
	}
	logger.Debug("configuration", zap.Stringer("config", cfg))
	if lat, lon, err := sentinel.GetCentroidLatitudeLongitude(bounds); err == nil {
		logger.Info("area of interest", zap.Float64("latitude", lat), zap.Float64("longitude", lon))
	}

	notifier := &notification.Notifier{}
	if flags.notify {
		notifier.SuccessURL = cfg.DiscordSuccessNotificationURL
		notifier.ErrorURL = cfg.DiscordErrorNotificationURL
	}

	client, err := sentinel.NewClient(ctx, cfg)
	if err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}

	manifest, err := delivery.Run(ctx, cfg, client, delivery.Job{
		Bounds:           bounds,
		Range:            r,
		Step:             step,
		MaxCloudCoverage: flags.maxCloud,
		Resolution:       flags.resolution,
		Workers:          flags.workers,
		Preview:          flags.preview,
		OutDir:           flags.out,
		ShowProgress:     !flags.quiet,
	})
	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		if manifest != nil {
			fields = append(fields, zap.Int("not_attempted", len(manifest.NotAttempted)))
		}
		logger.Error("run failed", fields...)
		if nerr := notifier.Error(ctx, err.Error()); nerr != nil {
			logger.Warn("failed to send error notification", zap.Error(nerr))
		}
		return err
	}

	message := fmt.Sprintf("Wrote %d files for %s to %s (%d intervals skipped). Manifest: %s",
		len(manifest.Rows), r.Start.Format(interval.DateLayout), r.End.Format(interval.DateLayout),
		len(manifest.Skipped), manifest.Path)
	if err := notifier.Success(ctx, message); err != nil {
		logger.Warn("failed to send success notification", zap.Error(err))
	}
	return nil
}
