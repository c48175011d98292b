package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/folderdb/internal/apperr"
	"github.com/starford/folderdb/internal/docservice"
	"github.com/starford/folderdb/internal/docstore"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
	Kind  string `json:"kind,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// statusFor maps service and store errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrConflict),
		errors.Is(err, apperr.ErrAlreadyExists),
		errors.Is(err, apperr.ErrOccupied):
		return http.StatusConflict
	case docservice.IsInputError(err):
		return http.StatusBadRequest
	}

	switch docstore.KindOf(err) {
	case docstore.KindNotFound:
		return http.StatusNotFound
	case docstore.KindOutsideRoot, docstore.KindPathTooDeep, docstore.KindInvalidValue,
		docstore.KindRootTarget:
		return http.StatusBadRequest
	case docstore.KindAlreadyExists, docstore.KindNotEmpty,
		docstore.KindNotADirectory, docstore.KindIsADirectory:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError logs server-side failures and answers with the mapped status.
// Client errors carry the error text; server errors do not.
func writeError(w http.ResponseWriter, r *http.Request, op, path string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), op+" failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, status, errorBody("internal error"))
		return
	}
	body := errorBody(err.Error())
	if k := docstore.KindOf(err); k != docstore.KindOther {
		body.Kind = k.String()
	}
	writeJSON(w, status, body)
}
