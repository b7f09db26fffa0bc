package media

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func TestNormalizer_DownscalesWideImages(t *testing.T) {
	n := NewNormalizer(ImageProcessingOptions{MaxWidth: DefaultMaxWidth})

	img, err := n.Decode(encodePNG(t, imaging.New(1280, 960, color.White)))
	require.NoError(t, err)
	assert.Equal(t, 640, img.Bounds().Dx())
	assert.Equal(t, 480, img.Bounds().Dy())

	img, err = n.Decode(encodePNG(t, imaging.New(320, 200, color.White)))
	require.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())
}

func TestNormalizer_DropsAlpha(t *testing.T) {
	n := NewNormalizer(ImageProcessingOptions{})

	img, err := n.Decode(encodePNG(t, imaging.New(4, 4, color.NRGBA{R: 10, G: 20, B: 30, A: 0})))
	require.NoError(t, err)
	_, _, _, a := img.At(1, 1).RGBA()
	assert.EqualValues(t, 0xffff, a)
	assert.Equal(t, image.Pt(0, 0), img.Bounds().Min)
}

func TestNormalizer_RejectsGarbage(t *testing.T) {
	n := NewNormalizer(ImageProcessingOptions{})

	_, err := n.Decode(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = n.Decode([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestIsRasterImage(t *testing.T) {
	assert.True(t, IsRasterImage("a.jpg"))
	assert.True(t, IsRasterImage("a.JPEG"))
	assert.True(t, IsRasterImage("a.png"))
	assert.False(t, IsRasterImage("a.gif"))
	assert.False(t, IsRasterImage("a"))
}
