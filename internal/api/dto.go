package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/folderdb/internal/docservice"
	"github.com/starford/folderdb/internal/journal"
)

// DocumentDetail is the response type for a single document (aliased from the domain layer).
type DocumentDetail = docservice.DocumentDetail

// Listing is the response type for a directory (aliased from the domain layer).
type Listing = docservice.Listing

// WriteResponse is returned by PUT, POST and upload.
type WriteResponse struct {
	Path    string `json:"path" example:"users/alice.json" validate:"required"`
	Outcome string `json:"outcome" example:"written" validate:"required"`
	Size    int    `json:"size" example:"42"`
}

// PatchResponse is returned by PATCH with the merged document.
type PatchResponse struct {
	Path  string         `json:"path" example:"users/alice.json" validate:"required"`
	Value map[string]any `json:"value" validate:"required"`
}

// DeleteResponse is returned by DELETE /docs when the caller asks for a body.
type DeleteResponse struct {
	Path    string `json:"path" validate:"required"`
	Outcome string `json:"outcome" example:"removed_tree" validate:"required"`
	Files   int    `json:"files"`
	Dirs    int    `json:"dirs"`
}

// ProvisionResponse is returned by POST /dirs.
type ProvisionResponse struct {
	Path    string   `json:"path" example:"users/admins" validate:"required"`
	Created []string `json:"created" validate:"required"`
}

// RenameRequest is the request body for POST /rename.
type RenameRequest struct {
	From string `json:"from" example:"drafts/a.json" validate:"required"`
	To   string `json:"to" example:"published/a.json" validate:"required"`
}

// Validate checks that both paths are present and differ.
func (r *RenameRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.From, validation.Required),
		validation.Field(&r.To, validation.Required, validation.NotIn(r.From).Error("must differ from 'from'")),
	)
}

// SearchHit is a single search hit in the API response.
type SearchHit = docservice.SearchHit

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchHit `json:"results" validate:"required"`
}

// JournalResponse wraps recent journal entries.
type JournalResponse struct {
	Events []journal.Entry `json:"events" validate:"required"`
}
