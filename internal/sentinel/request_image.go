package sentinel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/forest-guardian/sentinel-indices/internal/interval"
	"github.com/forest-guardian/sentinel-indices/internal/log"
	"github.com/forest-guardian/sentinel-indices/internal/properties"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	processPath = "/api/v1/process"
	crs84       = "http://www.opengis.net/def/crs/OGC/1.3/CRS84"
	maxPixels   = 2500
)

// Band roles in the order the evalscript returns them.
const (
	Blue = iota
	Red
	NIR
	SWIR
)

// BandOrder holds the Sentinel-2 identifiers of Blue, Red, NIR and SWIR.
var BandOrder = []string{"B02", "B04", "B08", "B11"}

const evalscript = `//VERSION=3
function setup() {
  return {
    input: [{ bands: ["B02", "B04", "B08", "B11"] }],
    output: {
      id: "default",
      bands: 4,
      sampleType: SampleType.FLOAT32,
    },
  }
}

function evaluatePixel(sample) {
  return [sample.B02, sample.B04, sample.B08, sample.B11];
}
`

type Request struct {
	Bounds           orb.Bound
	Interval         interval.Interval
	MaxCloudCoverage float64
	// Resolution in meters per pixel.
	Resolution float64
}

func (r Request) Validate() error {
	if r.Bounds.IsEmpty() || r.Bounds.Left() >= r.Bounds.Right() || r.Bounds.Bottom() >= r.Bounds.Top() {
		return fmt.Errorf("invalid bounding box %v", r.Bounds)
	}
	if r.Resolution <= 0 {
		return fmt.Errorf("resolution must be positive, got %f", r.Resolution)
	}
	if r.MaxCloudCoverage < 0 || r.MaxCloudCoverage > 100 {
		return fmt.Errorf("max cloud coverage must be within [0, 100], got %f", r.MaxCloudCoverage)
	}
	if !r.Interval.From.Before(r.Interval.To) {
		return fmt.Errorf("empty interval %s", r.Interval)
	}
	return nil
}

// Image is a downloaded multi-band GeoTIFF.
type Image struct {
	Path     string
	Interval interval.Interval
}

type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sentinel hub returned status %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	httpClient *http.Client
	processURL string
}

// NewClient returns a client authenticated with the OAuth2 client credentials of cfg.
func NewClient(ctx context.Context, cfg *properties.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	oauth := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	return &Client{
		httpClient: oauth.Client(ctx),
		processURL: cfg.BaseURL + processPath,
	}, nil
}

func calculatePixels(distance float64, resolution float64) int {
	pixels := int(distance * (111_000.0 / resolution))
	if pixels < 1 {
		return 1
	}
	if pixels > maxPixels {
		return maxPixels
	}
	return pixels
}

type timeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type dataFilter struct {
	TimeRange        timeRange `json:"timeRange"`
	MaxCloudCoverage float64   `json:"maxCloudCoverage"`
	MosaickingOrder  string    `json:"mosaickingOrder"`
}

type inputData struct {
	Type       string     `json:"type"`
	DataFilter dataFilter `json:"dataFilter"`
}

type bounds struct {
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties map[string]string `json:"properties"`
}

type responseFormat struct {
	Identifier string            `json:"identifier"`
	Format     map[string]string `json:"format"`
}

type processRequest struct {
	Input struct {
		Bounds bounds      `json:"bounds"`
		Data   []inputData `json:"data"`
	} `json:"input"`
	Output struct {
		Width     int              `json:"width"`
		Height    int              `json:"height"`
		Responses []responseFormat `json:"responses"`
	} `json:"output"`
	Evalscript string `json:"evalscript"`
}

func buildPayload(req Request) processRequest {
	var p processRequest
	p.Input.Bounds = bounds{
		Geometry:   geojson.NewGeometry(req.Bounds.ToPolygon()),
		Properties: map[string]string{"crs": crs84},
	}
	p.Input.Data = []inputData{{
		Type: "sentinel-2-l2a",
		DataFilter: dataFilter{
			TimeRange: timeRange{
				From: req.Interval.From.UTC().Format(time.RFC3339),
				To:   req.Interval.To.UTC().Format(time.RFC3339),
			},
			MaxCloudCoverage: req.MaxCloudCoverage,
			MosaickingOrder:  "leastCC",
		},
	}}
	p.Output.Width = calculatePixels(req.Bounds.Right()-req.Bounds.Left(), req.Resolution)
	p.Output.Height = calculatePixels(req.Bounds.Top()-req.Bounds.Bottom(), req.Resolution)
	p.Output.Responses = []responseFormat{{
		Identifier: "default",
		Format:     map[string]string{"type": "image/tiff"},
	}}
	p.Evalscript = evalscript
	return p
}

// RequestImage downloads the four bands for req into dir and returns the file written.
func (c *Client) RequestImage(ctx context.Context, req Request, dir string) (*Image, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	payload := buildPayload(req)
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}
	log.Logger(ctx).Debug("requesting image",
		zap.Stringer("interval", req.Interval),
		zap.Int("width", payload.Output.Width),
		zap.Int("height", payload.Output.Height))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.processURL, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "image/tiff")

	response, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to request image for %s: %w", req.Interval, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		return nil, &APIError{StatusCode: response.StatusCode, Body: string(body)}
	}

	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, req.Interval.String()+".tif")
	if err := writeFile(path, response.Body); err != nil {
		return nil, err
	}
	return &Image{Path: path, Interval: req.Interval}, nil
}

func writeFile(path string, r io.Reader) error {
	tmpFile := path + ".tmp"
	f, err := os.Create(tmpFile)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmpFile, err)
	}
	_, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to write image file: %w", err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename %s: %w", tmpFile, err)
	}
	return nil
}
