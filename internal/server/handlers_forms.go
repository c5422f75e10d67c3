package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/joseph-ayodele/form-extractor/internal/forms"
)

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	data, filename, contentType, err := s.readUpload(w, r)
	if err != nil {
		jsonError(w, err.Error(), statusForUpload(err))
		return
	}
	res, err := s.forms.Upload(r.Context(), filename, contentType, data)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"id":           res.Form.ID,
		"status":       res.Form.Status,
		"deduplicated": res.Deduplicated,
	})
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	list, err := s.forms.History(r.Context(), limit)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, list)
}

func (s *HTTPServer) handleResults(w http.ResponseWriter, r *http.Request) {
	ext, err := s.forms.Results(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, forms.ErrNotReady) {
		jsonResponse(w, http.StatusNotFound, map[string]string{"message": "Processing not finished"})
		return
	}
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(ext.Result)
}

func (s *HTTPServer) handleImage(w http.ResponseWriter, r *http.Request) {
	data, form, err := s.forms.Image(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", form.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", form.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	data, name, err := s.forms.Export(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(data)
}

func (s *HTTPServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.forms.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
