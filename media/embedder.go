package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"

	"github.com/camden-git/faceattend/recognition"
	"github.com/camden-git/faceattend/utils"
	"gocv.io/x/gocv"
)

var ErrModelsUnavailable = errors.New("face detection or recognition model unavailable")

type EmbedderConfig struct {
	DetectorConfigPath string
	DetectorModelPath  string
	ModelPath          string
	ModelName          string
	Slots              int // number of detector/model pairs, usually the worker count
}

type embedderSlot struct {
	detector *utils.DNNFaceDetector
	model    *FaceRecognitionModel
}

func (s *embedderSlot) close() {
	s.detector.Close()
	s.model.Close()
}

// FaceEmbedder computes embeddings with the SSD detector and a recognition
// network. Each concurrent call borrows its own slot of networks.
type FaceEmbedder struct {
	slots     chan *embedderSlot
	all       []*embedderSlot
	modelName string
}

var _ recognition.EmbeddingProvider = (*FaceEmbedder)(nil)

func NewFaceEmbedder(cfg EmbedderConfig) (*FaceEmbedder, error) {
	n := cfg.Slots
	if n <= 0 {
		n = 1
	}
	e := &FaceEmbedder{slots: make(chan *embedderSlot, n), modelName: cfg.ModelName}
	for i := 0; i < n; i++ {
		slot := &embedderSlot{
			detector: utils.NewDNNFaceDetector(cfg.DetectorConfigPath, cfg.DetectorModelPath, utils.DefaultConfThreshold),
			model:    NewFaceRecognitionModel(cfg.ModelPath, cfg.ModelName),
		}
		if !slot.detector.Enabled || !slot.model.Enabled {
			slot.close()
			e.Close()
			return nil, ErrModelsUnavailable
		}
		e.all = append(e.all, slot)
		e.slots <- slot
	}
	log.Printf("media.embedder: Loaded %d %s slot(s)", n, cfg.ModelName)
	return e, nil
}

func (e *FaceEmbedder) ModelName() string {
	return e.modelName
}

// Embed detects the most confident face and embeds it. found is false when
// the detector finds nothing.
func (e *FaceEmbedder) Embed(ctx context.Context, img image.Image) (recognition.Embedding, bool, error) {
	var slot *embedderSlot
	select {
	case slot = <-e.slots:
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
	defer func() { e.slots <- slot }()

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, false, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	best, ok := utils.BestFace(slot.detector.DetectFaces(mat))
	if !ok {
		return nil, false, nil
	}

	region := mat.Region(best.Rect().Intersect(image.Rect(0, 0, mat.Cols(), mat.Rows())))
	defer region.Close()

	vec, err := slot.model.ExtractEmbedding(region)
	if err != nil {
		return nil, false, fmt.Errorf("embedding extraction failed: %w", err)
	}
	return recognition.FromFloat32(vec), true, nil
}

// Close releases every network. It must not race with Embed.
func (e *FaceEmbedder) Close() {
	for _, slot := range e.all {
		slot.close()
	}
	e.all = nil
}
