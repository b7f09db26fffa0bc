package media

import (
	"errors"
	"fmt"
	"image"
	"log"
	"math"
	"os"

	"gocv.io/x/gocv"
)

// FaceRecognitionModel provides face embedding extraction for recognition.
// A gocv.Net is not safe for concurrent use; callers own one model per goroutine.
type FaceRecognitionModel struct {
	Net       gocv.Net
	Enabled   bool
	ModelName string

	InputSizeW int
	InputSizeH int
}

// NewFaceRecognitionModel loads a face recognition model (ArcFace, FaceNet, etc.)
func NewFaceRecognitionModel(modelPath string, modelName string) *FaceRecognitionModel {
	if modelPath == "" {
		log.Println("recognition: model path is empty, disabling face recognition")
		return &FaceRecognitionModel{Enabled: false}
	}

	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		log.Printf("recognition: ERROR - Model file does not exist: %s", modelPath)
		return &FaceRecognitionModel{Enabled: false}
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		log.Printf("recognition: ERROR - ReadNet returned an empty network for %s. Check file path and integrity.", modelName)
		return &FaceRecognitionModel{Enabled: false}
	}
	selectBackend(&net, "recognition", modelName)

	inputSizeW, inputSizeH := 112, 112
	if modelName == "facenet" {
		inputSizeW, inputSizeH = 160, 160
	}

	log.Printf("recognition: successfully loaded %s model (%dx%d input)", modelName, inputSizeW, inputSizeH)
	return &FaceRecognitionModel{
		Net:        net,
		Enabled:    true,
		ModelName:  modelName,
		InputSizeW: inputSizeW,
		InputSizeH: inputSizeH,
	}
}

// selectBackend prefers CUDA and falls back to the default CPU backend.
func selectBackend(net *gocv.Net, prefix, name string) {
	cudaBackendErr := net.SetPreferableBackend(gocv.NetBackendCUDA)
	cudaTargetErr := net.SetPreferableTarget(gocv.NetTargetCUDA)
	if cudaBackendErr == nil && cudaTargetErr == nil {
		log.Printf("%s: Set backend/target to CUDA for %s", prefix, name)
		return
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
	log.Printf("%s: CUDA not available for %s, using CPU", prefix, name)
}

func (f *FaceRecognitionModel) Close() {
	if f != nil && f.Enabled {
		f.Net.Close()
		log.Printf("recognition: closed %s network", f.ModelName)
		f.Enabled = false
	}
}

// ExtractEmbedding runs the network on a BGR face crop and returns the
// L2-normalized embedding.
func (f *FaceRecognitionModel) ExtractEmbedding(faceRegion gocv.Mat) ([]float32, error) {
	if f == nil || !f.Enabled {
		return nil, errors.New("face recognition model not loaded")
	}
	if faceRegion.Empty() {
		return nil, errors.New("empty face region")
	}

	processed := f.preprocessFace(faceRegion)
	defer processed.Close()

	blob := gocv.BlobFromImage(processed, 1.0/255.0, image.Pt(f.InputSizeW, f.InputSizeH), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	f.Net.SetInput(blob, "")
	output := f.Net.Forward("")
	defer output.Close()

	embedding := extractEmbeddingVector(output)
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%s produced an empty output", f.ModelName)
	}
	return normalizeEmbedding(embedding), nil
}

// preprocessFace converts BGR to RGB (ArcFace and FaceNet expect RGB) and
// resizes to the network input.
func (f *FaceRecognitionModel) preprocessFace(faceRegion gocv.Mat) gocv.Mat {
	rgb := gocv.NewMat()
	if faceRegion.Channels() == 3 {
		gocv.CvtColor(faceRegion, &rgb, gocv.ColorBGRToRGB)
	} else {
		faceRegion.CopyTo(&rgb)
	}
	defer rgb.Close()

	resized := gocv.NewMat()
	gocv.Resize(rgb, &resized, image.Pt(f.InputSizeW, f.InputSizeH), 0, 0, gocv.InterpolationLinear)

	asFloat := gocv.NewMat()
	resized.ConvertTo(&asFloat, gocv.MatTypeCV32F)
	resized.Close()
	return asFloat
}

func extractEmbeddingVector(output gocv.Mat) []float32 {
	if len(output.Size()) == 0 {
		return nil
	}
	flattened := output.Reshape(1, 1)
	defer flattened.Close()

	embedding := make([]float32, flattened.Cols())
	for i := range embedding {
		embedding[i] = flattened.GetFloatAt(0, i)
	}
	return embedding
}

func normalizeEmbedding(embedding []float32) []float32 {
	var norm float64
	for _, val := range embedding {
		norm += float64(val) * float64(val)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return embedding
	}

	normalized := make([]float32, len(embedding))
	for i, val := range embedding {
		normalized[i] = float32(float64(val) / norm)
	}
	return normalized
}
