package output

import (
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueToColor(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 0, G: 0, B: 255, A: 255}, valueToColor(0))
	assert.Equal(t, color.RGBA{R: 0, G: 255, B: 0, A: 255}, valueToColor(0.5))
	assert.Equal(t, color.RGBA{R: 255, G: 0, B: 0, A: 255}, valueToColor(1))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, 0.0, normalize(5, 5, 5))
	assert.Equal(t, 0.5, normalize(0, -1, 1))
	assert.Equal(t, 1.0, normalize(3, -1, 1))
	assert.Equal(t, 0.0, normalize(-3, -1, 1))
}

func TestCreateIndexPreview(t *testing.T) {
	path := filepath.Join(t.TempDir(), "NDVI.png")
	data := [][]float64{
		{-1, 0, 1},
		{math.NaN(), 0.5, -0.5},
	}
	require.NoError(t, CreateIndexPreview(path, data))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	assert.Equal(t, 3, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())

	r, g, b, a := img.At(0, 0).RGBA()
	assert.Equal(t, []uint32{0, 0, 0xffff, 0xffff}, []uint32{r, g, b, a})
	r, g, b, a = img.At(2, 0).RGBA()
	assert.Equal(t, []uint32{0xffff, 0, 0, 0xffff}, []uint32{r, g, b, a})
	_, _, _, a = img.At(0, 1).RGBA()
	assert.Zero(t, a)
}

func TestCreateIndexPreviewRejectsEmpty(t *testing.T) {
	assert.Error(t, CreateIndexPreview(filepath.Join(t.TempDir(), "x.png"), nil))
	assert.Error(t, CreateIndexPreview(filepath.Join(t.TempDir(), "y.png"), [][]float64{{1, 2}, {3}}))
}
