package recognition

import (
	"context"
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Embedding is a fixed-length face descriptor. Treat it as immutable once
// produced.
type Embedding []float64

// Distance returns the Euclidean distance between two embeddings, or +Inf
// when their dimensions differ (so they can never match).
func Distance(a, b Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	return floats.Distance(a, b, 2)
}

// FromFloat32 widens a model output vector.
func FromFloat32(v []float32) Embedding {
	if len(v) == 0 {
		return nil
	}
	out := make(Embedding, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// EmbeddingProvider computes the embedding of the single face in img.
// found is false when no face was detected; err reports a failure of the
// computation itself (corrupt input, model error).
type EmbeddingProvider interface {
	Embed(ctx context.Context, img image.Image) (emb Embedding, found bool, err error)
}

// Decoder turns an uploaded or stored payload into a canonical image.
type Decoder interface {
	Decode(data []byte) (image.Image, error)
}

// ImageRef addresses one stored enrollment image.
type ImageRef struct {
	Identity string
	Name     string
	ModTime  int64 // unix nanoseconds, used as cache validator
}

// Path is the identity-relative location of the image, stable across runs.
func (r ImageRef) Path() string {
	return r.Identity + "/" + r.Name
}

// ImageSource is the directory-like store of enrolled images.
type ImageSource interface {
	// ListIdentities returns identity names in a stable order. A missing
	// source yields an empty list.
	ListIdentities() ([]string, error)
	// ListImages returns the loadable images of one identity in a stable order.
	ListImages(identity string) ([]ImageRef, error)
	ReadImage(ref ImageRef) ([]byte, error)
	WriteImage(identity, name string, img image.Image) error
	HasIdentity(identity string) (bool, error)
	DeleteIdentity(identity string) error
}

// CachedEmbedding is a remembered provider verdict for one stored image.
type CachedEmbedding struct {
	Embedding Embedding
	NoFace    bool
}

// EmbeddingCache remembers provider results for stored images. It is an
// optimisation only; the gallery is always rebuilt from the image source.
type EmbeddingCache interface {
	Lookup(path string, modTime int64) (CachedEmbedding, bool, error)
	Store(path string, modTime int64, entry CachedEmbedding) error
	ForgetIdentity(identity string) error
}

// Runner executes a batch of independent tasks and waits for all of them.
type Runner interface {
	Run(ctx context.Context, tasks []func(ctx context.Context)) error
}

// sequentialRunner is used when no worker pool is configured.
type sequentialRunner struct{}

func (sequentialRunner) Run(ctx context.Context, tasks []func(ctx context.Context)) error {
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		task(ctx)
	}
	return nil
}
