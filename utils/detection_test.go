package utils

import (
	"bytes"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSSDDetections(t *testing.T) {
	raw := [][7]float32{
		{0, 1, 0.9, 0.25, 0.25, 0.75, 0.75},
		{0, 1, 0.3, 0.0, 0.0, 0.5, 0.5},  // below threshold
		{0, 1, 0.8, -0.1, 0.5, 0.5, 1.2}, // clipped
		{0, 1, 0.95, 0.6, 0.6, 0.6, 0.7}, // zero width
	}
	got := ParseSSDDetections(raw, 200, 100, 0.5)
	require.Len(t, got, 2)
	assert.Equal(t, DetectionResult{X: 50, Y: 25, W: 100, H: 50, Confidence: 0.9}, got[0])
	assert.Equal(t, 0, got[1].X)
	assert.Equal(t, 100, got[1].W)
	assert.Equal(t, 50, got[1].H)
}

func TestBestFace(t *testing.T) {
	_, ok := BestFace(nil)
	assert.False(t, ok)

	best, ok := BestFace([]DetectionResult{
		{X: 0, W: 10, H: 10, Confidence: 0.7},
		{X: 1, W: 10, H: 10, Confidence: 0.9},
		{X: 2, W: 20, H: 20, Confidence: 0.9},
	})
	require.True(t, ok)
	assert.Equal(t, 2, best.X)
}

func TestApplyOrientation(t *testing.T) {
	img := imaging.New(40, 20, color.White)

	assert.Equal(t, 40, ApplyOrientation(img, OrientationNormal).Bounds().Dx())
	assert.Equal(t, 40, ApplyOrientation(img, 3).Bounds().Dx())
	for _, o := range []int{5, 6, 7, 8} {
		b := ApplyOrientation(img, o).Bounds()
		assert.Equal(t, 20, b.Dx(), "orientation %d", o)
		assert.Equal(t, 40, b.Dy(), "orientation %d", o)
	}
}

func TestReadOrientation_WithoutExif(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(2, 2, color.White), imaging.PNG))
	assert.Equal(t, OrientationNormal, ReadOrientation(buf.Bytes()))
	assert.Equal(t, OrientationNormal, ReadOrientation(nil))
}
