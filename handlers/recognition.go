package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/camden-git/faceattend/attendance"
	"github.com/camden-git/faceattend/recognition"
)

type RecognitionHandler struct {
	Service           *recognition.Service
	DefaultTolerance  float64
	AttendanceBackend string
}

func (rh *RecognitionHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":             "healthy",
		"recognizer_loaded":  rh.Service.Ready(),
		"known_faces":        rh.Service.Gallery().Len(),
		"attendance_backend": rh.AttendanceBackend,
	})
}

type recognizeResponse struct {
	FaceDetected         bool     `json:"face_detected"`
	Name                 *string  `json:"name"`
	Confidence           float64  `json:"confidence"`
	Distance             *float64 `json:"distance,omitempty"`
	RegistrationRequired bool     `json:"registration_required"`
	Message              string   `json:"message,omitempty"`
	Error                string   `json:"error,omitempty"`
	Timestamp            string   `json:"timestamp"`
	Threshold            float64  `json:"threshold"`
	AttendanceLogged     bool     `json:"attendance_logged"`
	AttendanceError      string   `json:"attendance_error,omitempty"`
}

func newRecognizeResponse(rec recognition.Recognition) recognizeResponse {
	resp := recognizeResponse{
		FaceDetected:     rec.Kind != recognition.NoFaceDetected,
		Error:            rec.Diagnostic,
		Timestamp:        rec.Timestamp.Format(attendance.TimestampLayout),
		Threshold:        rec.Tolerance,
		AttendanceLogged: rec.AttendanceLogged,
		AttendanceError:  rec.AttendanceError,
	}
	switch rec.Kind {
	case recognition.Matched:
		name, distance := rec.Identity, rec.Distance
		resp.Name = &name
		resp.Distance = &distance
		resp.Confidence = rec.Confidence
	case recognition.Unmatched:
		resp.RegistrationRequired = true
		resp.Message = "Unknown face detected"
	}
	return resp
}

func (rh *RecognitionHandler) tolerance(r *http.Request) (float64, error) {
	raw := r.URL.Query().Get("threshold")
	if raw == "" {
		return rh.DefaultTolerance, nil
	}
	tol, err := strconv.ParseFloat(raw, 64)
	if err != nil || tol <= 0 {
		return 0, fmt.Errorf("threshold must be a positive number, got %q", raw)
	}
	return tol, nil
}

func (rh *RecognitionHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	if !rh.Service.Ready() {
		WriteAPIError(w, http.StatusServiceUnavailable, CodeNotInitialized, recognition.ErrNotInitialized.Error())
		return
	}
	tol, err := rh.tolerance(r)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidThreshold, err.Error())
		return
	}
	data, err := readImagePayload(r)
	if err != nil {
		writePayloadError(w, err)
		return
	}

	rec, err := rh.Service.Recognize(r.Context(), data, tol)
	if err != nil {
		switch {
		case errors.Is(err, attendance.ErrLedgerWrite):
			writeJSON(w, http.StatusInternalServerError, newRecognizeResponse(rec))
		case errors.Is(err, recognition.ErrInvalidTolerance):
			WriteAPIError(w, http.StatusBadRequest, CodeInvalidThreshold, err.Error())
		case errors.Is(err, recognition.ErrNotInitialized):
			WriteAPIError(w, http.StatusServiceUnavailable, CodeNotInitialized, err.Error())
		default:
			log.Printf("handlers: Error in recognize endpoint: %v", err)
			WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Recognition failed: "+err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, newRecognizeResponse(rec))
}

func (rh *RecognitionHandler) KnownFaces(w http.ResponseWriter, r *http.Request) {
	g := rh.Service.Gallery()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"known_faces":     g.Counts(),
		"total_people":    g.Len(),
		"total_encodings": g.TotalEmbeddings(),
	})
}

func (rh *RecognitionHandler) RegisterPerson(w http.ResponseWriter, r *http.Request) {
	if !rh.Service.Ready() {
		WriteAPIError(w, http.StatusServiceUnavailable, CodeNotInitialized, recognition.ErrNotInitialized.Error())
		return
	}

	var req struct {
		Name   string   `json:"name"`
		Images []string `json:"images"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePayloadError(w, fmt.Errorf("invalid request body: %w", err))
		return
	}

	images := make([][]byte, len(req.Images))
	for i, raw := range req.Images {
		data, err := decodeImageString(raw)
		if err != nil {
			// left empty; the pipeline reports it as a skipped image
			log.Printf("handlers: register_person image %d unreadable: %v", i+1, err)
			continue
		}
		images[i] = data
	}

	outcome, err := rh.Service.Enroll(r.Context(), req.Name, images)
	if err != nil {
		var dup *recognition.DuplicateIdentityError
		switch {
		case errors.As(err, &dup):
			WriteAPIError(w, http.StatusConflict, CodeDuplicateIdentity, dup.Error())
		case errors.Is(err, recognition.ErrInvalidName):
			WriteAPIError(w, http.StatusBadRequest, CodeInvalidName, "Invalid person name")
		case errors.Is(err, recognition.ErrNoImages):
			WriteAPIError(w, http.StatusBadRequest, CodeNoImages, "At least one image is required")
		case errors.Is(err, recognition.ErrNoValidFaces):
			WriteAPIError(w, http.StatusBadRequest, CodeNoValidFaces, "No valid faces detected in any image")
		default:
			log.Printf("handlers: Error registering person '%s': %v", req.Name, err)
			WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Registration failed: "+err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":             true,
		"message":             fmt.Sprintf("Person '%s' registered successfully", outcome.Name),
		"person_name":         outcome.Name,
		"total_images":        outcome.TotalImages,
		"valid_faces":         outcome.ValidFaces,
		"face_detection_rate": outcome.FormattedDetectionRate(),
		"skipped":             outcome.Skipped,
	})
}

func (rh *RecognitionHandler) Reload(w http.ResponseWriter, r *http.Request) {
	n, err := rh.Service.Reload(r.Context())
	if err != nil {
		if errors.Is(err, recognition.ErrNotInitialized) {
			WriteAPIError(w, http.StatusServiceUnavailable, CodeNotInitialized, err.Error())
			return
		}
		log.Printf("handlers: Error reloading faces: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to reload faces: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Known faces reloaded successfully",
		"known_faces": n,
	})
}
