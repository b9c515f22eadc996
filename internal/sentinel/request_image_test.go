package sentinel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/forest-guardian/sentinel-indices/internal/interval"
	"github.com/forest-guardian/sentinel-indices/internal/properties"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHub struct {
	*httptest.Server
	status   int
	mu       sync.Mutex
	payloads []map[string]interface{}
	auth     []string
}

func newFakeHub(t *testing.T) *fakeHub {
	h := &fakeHub{status: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-123","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc(processPath, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.mu.Lock()
		h.auth = append(h.auth, r.Header.Get("Authorization"))
		h.payloads = append(h.payloads, payload)
		h.mu.Unlock()
		if h.status != http.StatusOK {
			http.Error(w, `{"error":"quota"}`, h.status)
			return
		}
		w.Header().Set("Content-Type", "image/tiff")
		w.Write([]byte("II*\x00fake-tiff"))
	})
	h.Server = httptest.NewServer(mux)
	t.Cleanup(h.Close)
	return h
}

// received returns copies of the payloads and Authorization headers seen so far.
func (h *fakeHub) received() ([]map[string]interface{}, []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]map[string]interface{}(nil), h.payloads...), append([]string(nil), h.auth...)
}

func (h *fakeHub) config() *properties.Config {
	return &properties.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     h.URL + "/token",
		BaseURL:      h.URL,
	}
}

func testRequest() Request {
	return Request{
		Bounds: orb.Bound{Min: orb.Point{10.0, 45.0}, Max: orb.Point{10.0625, 45.125}},
		Interval: interval.Interval{
			From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		MaxCloudCoverage: 30,
		Resolution:       10,
	}
}

func TestRequestImage(t *testing.T) {
	hub := newFakeHub(t)
	client, err := NewClient(context.Background(), hub.config())
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "raw")
	img, err := client.RequestImage(context.Background(), testRequest(), dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "2024-01-01_2024-02-01.tif"), img.Path)
	content, err := os.ReadFile(img.Path)
	require.NoError(t, err)
	assert.Equal(t, "II*\x00fake-tiff", string(content))
	_, err = os.Stat(img.Path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	payloads, auth := hub.received()
	require.Len(t, payloads, 1)
	assert.Equal(t, []string{"Bearer tok-123"}, auth)

	payload := payloads[0]
	input := payload["input"].(map[string]interface{})
	data := input["data"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "sentinel-2-l2a", data["type"])
	filter := data["dataFilter"].(map[string]interface{})
	assert.Equal(t, 30.0, filter["maxCloudCoverage"])
	assert.Equal(t, "leastCC", filter["mosaickingOrder"])
	tr := filter["timeRange"].(map[string]interface{})
	assert.Equal(t, "2024-01-01T00:00:00Z", tr["from"])
	assert.Equal(t, "2024-02-01T00:00:00Z", tr["to"])

	geometry := input["bounds"].(map[string]interface{})["geometry"].(map[string]interface{})
	assert.Equal(t, "Polygon", geometry["type"])

	output := payload["output"].(map[string]interface{})
	assert.Equal(t, 693.0, output["width"])
	assert.Equal(t, 1387.0, output["height"])
	assert.Contains(t, payload["evalscript"], "FLOAT32")
}

func TestRequestImageAPIError(t *testing.T) {
	hub := newFakeHub(t)
	hub.status = http.StatusTooManyRequests
	client, err := NewClient(context.Background(), hub.config())
	require.NoError(t, err)

	dir := t.TempDir()
	_, err = client.RequestImage(context.Background(), testRequest(), dir)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "quota")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRequestImageRejectsInvalidRequest(t *testing.T) {
	hub := newFakeHub(t)
	client, err := NewClient(context.Background(), hub.config())
	require.NoError(t, err)

	req := testRequest()
	req.Resolution = 0
	_, err = client.RequestImage(context.Background(), req, t.TempDir())
	assert.Error(t, err)

	req = testRequest()
	req.Interval.To = req.Interval.From
	_, err = client.RequestImage(context.Background(), req, t.TempDir())
	assert.Error(t, err)

	payloads, _ := hub.received()
	assert.Empty(t, payloads)
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(context.Background(), &properties.Config{TokenURL: "http://x"})
	assert.Error(t, err)
}

func TestCalculatePixels(t *testing.T) {
	assert.Equal(t, 1, calculatePixels(0, 10))
	assert.Equal(t, 277, calculatePixels(0.05, 20))
	assert.Equal(t, maxPixels, calculatePixels(5, 10))
}
