package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Error codes used in APIErrorDetail.Code.
const (
	CodeBadRequest        = "bad_request"
	CodeInvalidThreshold  = "invalid_threshold"
	CodeInvalidName       = "invalid_name"
	CodeNoImages          = "no_images"
	CodeNoValidFaces      = "no_valid_faces"
	CodeDuplicateIdentity = "duplicate_identity"
	CodeNotInitialized    = "recognizer_not_initialized"
	CodePayloadTooLarge   = "payload_too_large"
	CodeUnauthorized      = "unauthorized"
	CodeInternal          = "internal_error"
)

// APIErrorDetail represents a single error in the standardized error response.
type APIErrorDetail struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// APIErrorResponse represents the standardized error response body.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

// WriteAPIError writes a standardized error response with the given HTTP status, code, and detail.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	resp := APIErrorResponse{
		Errors: []APIErrorDetail{
			{
				Code:   code,
				Status: strconv.Itoa(httpStatus),
				Detail: detail,
			},
		},
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// NotFound answers unknown routes with the error envelope.
func NotFound(w http.ResponseWriter, r *http.Request) {
	WriteAPIError(w, http.StatusNotFound, "not_found", "Endpoint not found")
}
