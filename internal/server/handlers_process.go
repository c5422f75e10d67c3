package server

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/joseph-ayodele/form-extractor/internal/common"
)

// handleProcess runs the pipeline on the multipart "file" field and returns
// the Result body: 200 on success, 422 when the upload is not an image, 500
// for any other failure.
func (s *HTTPServer) handleProcess(w http.ResponseWriter, r *http.Request) {
	data, filename, contentType, err := s.readUpload(w, r)
	if err != nil {
		jsonError(w, err.Error(), statusForUpload(err))
		return
	}
	if contentType != "" && !strings.HasPrefix(contentType, "image/") && contentType != "application/octet-stream" {
		jsonError(w, "Only image files are supported.", http.StatusBadRequest)
		return
	}

	res := s.proc.Process(r.Context(), data, filename)
	code := http.StatusOK
	switch {
	case res.OK():
	case res.IsInputError():
		code = http.StatusUnprocessableEntity
	default:
		code = http.StatusInternalServerError
	}
	jsonResponse(w, code, res)
}

var errUploadTooLarge = errors.New("upload exceeds size limit")

func statusForUpload(err error) int {
	if errors.Is(err, errUploadTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// readUpload reads the "file" part of a multipart request, bounded by
// MaxUploadBytes.
func (s *HTTPServer) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxUploadBytes)+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", "", errUploadTooLarge
		}
		return nil, "", "", common.WrapError(err, "invalid multipart form")
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", "", common.WrapError(err, "file is required")
	}
	defer file.Close()

	data, err := readAllLimited(file, s.cfg.MaxUploadBytes)
	if err != nil {
		return nil, "", "", err
	}
	return data, header.Filename, header.Header.Get("Content-Type"), nil
}

func readAllLimited(f multipart.File, limit int) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(f, int64(limit)+1))
	if err != nil {
		return nil, common.WrapError(err, "read upload")
	}
	if len(data) > limit {
		return nil, errUploadTooLarge
	}
	return data, nil
}
