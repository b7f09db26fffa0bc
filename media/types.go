// media/types.go
package media

const (
	DefaultMaxWidth    = 640
	DefaultJPEGQuality = 95
)

// ImageProcessingOptions controls how uploaded and stored images are prepared.
type ImageProcessingOptions struct {
	MaxWidth int // 0 disables downscaling
	Quality  int // JPEG quality of stored enrollment images
}
