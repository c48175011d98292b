package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	pathpkg "path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folderdb/internal/checksum"
	"github.com/starford/folderdb/internal/docservice"
	"github.com/starford/folderdb/internal/journal"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc     *docservice.Service
	journal *journal.DB
}

// NewHandler creates a new Handler. journal may be nil.
func NewHandler(svc *docservice.Service, j *journal.DB) *Handler {
	return &Handler{svc: svc, journal: j}
}

// docPath extracts the store path from the URL wildcard and cleans it, so
// every spelling of the store root ("", ".", "%2E", "a/..") comes back as "".
// Supports encoded slashes from OpenAPI clients (e.g. users%2Falice.json).
func docPath(r *http.Request) string {
	raw := strings.Trim(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}
	cleaned := pathpkg.Clean(strings.Trim(decoded, "/"))
	if cleaned == "." {
		return ""
	}
	return cleaned
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return nil, false
	}
	return body, true
}

// GetDoc handles GET /api/docs/*.
//
//	@Summary		Read a document or list a directory
//	@Tags			docs
//	@Produce		json
//	@Param			path	path		string	true	"Document or directory path"
//	@Success		200		{object}	DocumentDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/docs/{path} [get]
func (h *Handler) GetDoc(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	entry, err := h.svc.Get(r.Context(), path)
	if err != nil {
		writeError(w, r, "get", path, err)
		return
	}
	if entry.Listing != nil {
		writeJSON(w, http.StatusOK, entry.Listing)
		return
	}
	w.Header().Set("ETag", `"`+entry.Document.Checksum+`"`)
	writeJSON(w, http.StatusOK, entry.Document)
}

// PutDoc handles PUT /api/docs/*.
//
//	@Summary		Write a document, replacing any existing content
//	@Tags			docs
//	@Accept			json
//	@Produce		json
//	@Param			path		path		string	true	"Document path"
//	@Param			If-Match	header		string	false	"Checksum for optimistic concurrency"
//	@Success		200			{object}	WriteResponse
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/docs/{path} [put]
func (h *Handler) PutDoc(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	value, err := h.svc.DecodeValue(path, body)
	if err != nil {
		writeError(w, r, "put", path, err)
		return
	}
	res, err := h.svc.Put(r.Context(), path, value, r.Header.Get("If-Match"))
	if err != nil {
		writeError(w, r, "put", path, err)
		return
	}
	writeJSON(w, http.StatusOK, WriteResponse{Path: res.Path, Outcome: res.Outcome.String(), Size: res.Size})
}

// CreateDoc handles POST /api/docs/*.
//
//	@Summary		Create a document if nothing exists at the path
//	@Description	A path without a document extension is a collection; a <uuid>.json name is generated inside it.
//	@Tags			docs
//	@Accept			json
//	@Produce		json
//	@Param			path	path		string	true	"Document or collection path"
//	@Success		201		{object}	WriteResponse
//	@Failure		409		{object}	WriteResponse
//	@Security		BearerAuth
//	@Router			/docs/{path} [post]
func (h *Handler) CreateDoc(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	// Collections get generated .json names, so their bodies decode as JSON.
	target := path
	if !h.svc.Store().IsDocument(path) {
		target = path + "/new.json"
	}
	value, err := h.svc.DecodeValue(target, body)
	if err != nil {
		writeError(w, r, "create", path, err)
		return
	}
	res, err := h.svc.Create(r.Context(), path, value)
	if err != nil {
		if res != nil && statusFor(err) == http.StatusConflict {
			writeJSON(w, http.StatusConflict, WriteResponse{Path: res.Path, Outcome: res.Outcome.String()})
			return
		}
		writeError(w, r, "create", path, err)
		return
	}
	writeJSON(w, http.StatusCreated, WriteResponse{Path: res.Path, Outcome: res.Outcome.String(), Size: res.Size})
}

// PatchDoc handles PATCH /api/docs/*.
//
//	@Summary		Merge an object into a structured document
//	@Tags			docs
//	@Accept			json
//	@Produce		json
//	@Param			path	path		string	true	"Document path"
//	@Success		200		{object}	PatchResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/docs/{path} [patch]
func (h *Handler) PatchDoc(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var patch map[string]any
	if err := json.Unmarshal(body, &patch); err != nil || patch == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("body must be a JSON object"))
		return
	}
	merged, err := h.svc.Patch(r.Context(), path, patch)
	if err != nil {
		writeError(w, r, "patch", path, err)
		return
	}
	writeJSON(w, http.StatusOK, PatchResponse{Path: path, Value: merged})
}

// DeleteDoc handles DELETE /api/docs/*.
//
//	@Summary		Delete a document or a directory tree
//	@Tags			docs
//	@Param			path	path	string	true	"Document or directory path"
//	@Success		204		"Removed, or nothing existed"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/docs/{path} [delete]
func (h *Handler) DeleteDoc(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("refusing to remove the store root"))
		return
	}
	if _, err := h.svc.Delete(r.Context(), path); err != nil {
		writeError(w, r, "delete", path, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MakeDir handles POST /api/dirs/*.
//
//	@Summary		Create a directory and any missing ancestors
//	@Tags			dirs
//	@Produce		json
//	@Param			path	path		string	true	"Directory path"
//	@Success		200		{object}	ProvisionResponse	"Already existed"
//	@Success		201		{object}	ProvisionResponse	"Created"
//	@Security		BearerAuth
//	@Router			/dirs/{path} [post]
func (h *Handler) MakeDir(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	res, err := h.svc.MakeDir(r.Context(), path)
	if err != nil {
		writeError(w, r, "mkdir", path, err)
		return
	}
	status := http.StatusOK
	if len(res.Created) > 0 {
		status = http.StatusCreated
	}
	created := res.Created
	if created == nil {
		created = []string{}
	}
	writeJSON(w, status, ProvisionResponse{Path: path, Created: created})
}

// RemoveDir handles DELETE /api/dirs/*.
//
//	@Summary		Remove an empty directory
//	@Tags			dirs
//	@Param			path	path	string	true	"Directory path"
//	@Success		204		"Removed"
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse	"Not empty or not a directory"
//	@Security		BearerAuth
//	@Router			/dirs/{path} [delete]
func (h *Handler) RemoveDir(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("refusing to remove the store root"))
		return
	}
	if err := h.svc.RemoveDir(r.Context(), path); err != nil {
		writeError(w, r, "rmdir", path, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rename handles POST /api/rename.
//
//	@Summary		Move a document or directory
//	@Tags			docs
//	@Accept			json
//	@Param			body	body	RenameRequest	true	"Source and destination"
//	@Success		204		"Renamed"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rename [post]
func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err := h.svc.Rename(r.Context(), req.From, req.To); err != nil {
		writeError(w, r, "rename", req.From, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search/*.
//
//	@Summary		Filter the documents of a directory with a jq expression
//	@Tags			search
//	@Produce		json
//	@Param			path	path		string	false	"Directory to search"
//	@Param			q		query		string	true	"jq expression"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search/{path} [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	dir := docPath(r)
	hits, err := h.svc.Search(r.Context(), dir, q, limit)
	if err != nil {
		writeError(w, r, "search", dir, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: hits})
}

// Journal handles GET /api/journal.
//
//	@Summary		Recent write and delete events
//	@Tags			journal
//	@Produce		json
//	@Param			limit	query		int		false	"Max entries"
//	@Param			prefix	query		string	false	"Restrict to a path and everything below it"
//	@Success		200		{object}	JournalResponse
//	@Security		BearerAuth
//	@Router			/journal [get]
func (h *Handler) Journal(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeJSON(w, http.StatusNotFound, errorBody("journal disabled"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.journal.Recent(r.Context(), limit, r.URL.Query().Get("prefix"))
	if err != nil {
		writeError(w, r, "journal", "", err)
		return
	}
	writeJSON(w, http.StatusOK, JournalResponse{Events: entries})
}

// RawDoc handles GET /api/raw/*, returning the stored bytes with a content
// type guessed from the extension.
func (h *Handler) RawDoc(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	doc, err := h.svc.Store().Read(r.Context(), path)
	if err != nil {
		writeError(w, r, "raw", path, err)
		return
	}
	tag := checksum.ETag(doc.Raw)
	if match := r.Header.Get("If-None-Match"); match != "" && checksum.Matches(match, doc.Raw) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", tag)
	w.Header().Set("Content-Type", contentType(path, doc.Raw))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Raw)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Raw)
}
