package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

const multipartMemory = 32 << 20

var (
	errMissingImage  = errors.New("no image data provided")
	errNoFileChosen  = errors.New("no file selected")
	errInvalidFormat = errors.New("invalid request format, send multipart 'image' or JSON {\"image\": ...}")
)

// decodeImageString accepts plain base64 or a data URL
// ("data:image/jpeg;base64,...").
func decodeImageString(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, errors.New("malformed data URL")
		}
		s = s[comma+1:]
	}
	if s == "" {
		return nil, errMissingImage
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// some clients strip padding
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	}
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image data: %w", err)
	}
	return data, nil
}

// readImagePayload extracts the probe image from a multipart upload (field
// "image") or a JSON body {"image": "<base64 or data URL>"}.
func readImagePayload(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, err
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				return nil, errMissingImage
			}
			return nil, err
		}
		defer file.Close()
		if header.Filename == "" {
			return nil, errNoFileChosen
		}
		return io.ReadAll(file)

	case "application/json":
		var req struct {
			Image string `json:"image"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid request body: %w", err)
		}
		if req.Image == "" {
			return nil, errMissingImage
		}
		return decodeImageString(req.Image)

	default:
		return nil, errInvalidFormat
	}
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || (err != nil && strings.Contains(err.Error(), "request body too large"))
}

// writePayloadError maps a request-body failure to 413 or 400.
func writePayloadError(w http.ResponseWriter, err error) {
	if isTooLarge(err) {
		WriteAPIError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "The uploaded data exceeds the maximum size limit")
		return
	}
	WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
}
