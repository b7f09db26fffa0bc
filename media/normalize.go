package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/camden-git/faceattend/recognition"
	"github.com/camden-git/faceattend/utils"
	"github.com/disintegration/imaging"
)

var ErrEmptyImage = errors.New("empty image payload")

// Normalizer turns encoded image bytes into an upright, opaque image no wider
// than MaxWidth. It is used for probes, enrollment uploads and stored images
// alike so that every embedding is computed from the same kind of input.
type Normalizer struct {
	maxWidth int
}

var _ recognition.Decoder = (*Normalizer)(nil)

func NewNormalizer(opts ImageProcessingOptions) *Normalizer {
	return &Normalizer{maxWidth: opts.MaxWidth}
}

func (n *Normalizer) Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	img = utils.ApplyOrientation(img, utils.ReadOrientation(data))

	if n.maxWidth > 0 && img.Bounds().Dx() > n.maxWidth {
		img = imaging.Resize(img, n.maxWidth, 0, imaging.Lanczos)
	}
	return toRGB(img), nil
}

// toRGB drops the alpha channel, keeping the stored colour values.
func toRGB(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out
}
