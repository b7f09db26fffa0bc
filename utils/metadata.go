package utils

import (
	"bytes"
	"image"
	"log"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// OrientationNormal is the EXIF orientation of an image that needs no transform.
const OrientationNormal = 1

// ReadOrientation returns the EXIF orientation tag of an encoded image, or
// OrientationNormal when the payload carries no usable EXIF data.
func ReadOrientation(data []byte) int {
	exifData, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		// not an error: PNGs and most webcam frames carry no EXIF block
		return OrientationNormal
	}
	tag, err := exifData.Get(exif.Orientation)
	if err != nil || tag == nil {
		return OrientationNormal
	}
	val, err := tag.Int(0)
	if err != nil || val < 1 || val > 8 {
		log.Printf("metadata: Ignoring invalid EXIF orientation value: %v", tag)
		return OrientationNormal
	}
	return val
}

// ApplyOrientation rotates/flips img so that it is displayed upright.
func ApplyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
