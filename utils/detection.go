package utils

import (
	"image"
	"log"

	"gocv.io/x/gocv"
)

// DefaultConfThreshold is the minimum SSD score for a detection to count as a face.
const DefaultConfThreshold float32 = 0.5

type DetectionResult struct {
	X          int
	Y          int
	W          int
	H          int
	Confidence float32
}

func (d DetectionResult) Rect() image.Rectangle {
	return image.Rect(d.X, d.Y, d.X+d.W, d.Y+d.H)
}

// DNNFaceDetector wraps the OpenCV res10 SSD face detector. Not safe for
// concurrent use.
type DNNFaceDetector struct {
	Net     gocv.Net
	Enabled bool

	InputSizeW    int
	InputSizeH    int
	ScaleFactor   float64
	MeanVal       gocv.Scalar
	ConfThreshold float32
}

// NewDNNFaceDetector loads the DNN model
func NewDNNFaceDetector(configPath, modelPath string, confThreshold float32) *DNNFaceDetector {
	if configPath == "" || modelPath == "" {
		log.Println("detection(dnn): config or model path is empty, disabling DNN detector")
		return &DNNFaceDetector{Enabled: false}
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		log.Printf("detection(dnn): ERROR loading network model: config=%s, model=%s", configPath, modelPath)
		return &DNNFaceDetector{Enabled: false}
	}

	if cudaErr := net.SetPreferableBackend(gocv.NetBackendCUDA); cudaErr == nil && net.SetPreferableTarget(gocv.NetTargetCUDA) == nil {
		log.Println("detection(dnn): Set backend/target to CUDA")
	} else {
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
		log.Println("detection(dnn): Set backend/target to CPU (Default)")
	}

	if confThreshold <= 0 {
		confThreshold = DefaultConfThreshold
	}
	return &DNNFaceDetector{
		Net:           net,
		Enabled:       true,
		InputSizeW:    300,
		InputSizeH:    300,
		ScaleFactor:   1.0,
		MeanVal:       gocv.NewScalar(104.0, 177.0, 123.0, 0),
		ConfThreshold: confThreshold,
	}
}

func (d *DNNFaceDetector) Close() {
	if d != nil && d.Enabled {
		d.Net.Close()
		log.Println("detection(dnn): closed network")
		d.Enabled = false
	}
}

// DetectFaces runs the detector on a BGR image and returns every box above
// the confidence threshold, clipped to the image.
func (d *DNNFaceDetector) DetectFaces(img gocv.Mat) []DetectionResult {
	if d == nil || !d.Enabled || img.Empty() {
		return nil
	}

	blob := gocv.BlobFromImage(img, d.ScaleFactor, image.Pt(d.InputSizeW, d.InputSizeH), d.MeanVal, false, false)
	defer blob.Close()

	d.Net.SetInput(blob, "")
	detectionsMat := d.Net.Forward("")
	defer detectionsMat.Close()

	// SSD output is [1, 1, N, 7]: image id, label, score, x1, y1, x2, y2
	sizes := detectionsMat.Size()
	if len(sizes) != 4 || sizes[2] == 0 {
		if len(sizes) != 4 {
			log.Printf("detection(dnn): Warning - unexpected output dimensions: %v", sizes)
		}
		return nil
	}
	numDetections := sizes[2]
	rows := detectionsMat.Reshape(1, numDetections)
	defer rows.Close()

	raw := make([][7]float32, numDetections)
	for i := range raw {
		for j := 0; j < 7; j++ {
			raw[i][j] = rows.GetFloatAt(i, j)
		}
	}
	return ParseSSDDetections(raw, img.Cols(), img.Rows(), d.ConfThreshold)
}

// ParseSSDDetections converts normalized SSD rows into pixel boxes.
func ParseSSDDetections(raw [][7]float32, imgWidth, imgHeight int, threshold float32) []DetectionResult {
	w, h := float32(imgWidth), float32(imgHeight)
	var results []DetectionResult
	for _, row := range raw {
		confidence := row[2]
		if confidence <= threshold {
			continue
		}
		xMin := max(0, row[3]*w)
		yMin := max(0, row[4]*h)
		xMax := min(w, row[5]*w)
		yMax := min(h, row[6]*h)
		if xMax <= xMin || yMax <= yMin {
			continue
		}
		results = append(results, DetectionResult{
			X:          int(xMin),
			Y:          int(yMin),
			W:          int(xMax - xMin),
			H:          int(yMax - yMin),
			Confidence: confidence,
		})
	}
	return results
}

// BestFace picks the single face an image is attributed to: the most
// confident detection, the larger box on equal scores.
func BestFace(detections []DetectionResult) (DetectionResult, bool) {
	if len(detections) == 0 {
		return DetectionResult{}, false
	}
	best := detections[0]
	for _, det := range detections[1:] {
		if det.Confidence > best.Confidence ||
			(det.Confidence == best.Confidence && det.W*det.H > best.W*best.H) {
			best = det
		}
	}
	return best, true
}
