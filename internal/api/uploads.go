package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strings"
)

const maxUploadBytes = 50 << 20 // 50 MB

var errMissingFile = errors.New("missing 'file' field in multipart form")

// safeName validates that the filename is a plain name: no path separators,
// no traversal, not hidden.
func safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || strings.ContainsAny(cleaned, `/\`) {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	if strings.HasPrefix(cleaned, ".") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	return cleaned, nil
}

// Upload handles POST /api/upload/* (multipart/form-data, field "file").
// The file is stored verbatim in the target directory under its own name.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(errMissingFile.Error()))
		return
	}
	defer file.Close()

	name, err := safeName(header.Filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to read upload"))
		return
	}

	dir := docPath(r)
	res, err := h.svc.Upload(r.Context(), dir, name, data)
	if err != nil {
		if res != nil && statusFor(err) == http.StatusConflict {
			writeJSON(w, http.StatusConflict, WriteResponse{Path: res.Path, Outcome: res.Outcome.String()})
			return
		}
		writeError(w, r, "upload", path.Join(dir, name), err)
		return
	}

	writeJSON(w, http.StatusCreated, WriteResponse{Path: res.Path, Outcome: res.Outcome.String(), Size: res.Size})
}

func contentType(p string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(p)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
