package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/community-hub/internal/service"
)

// DirectoryHandler serves the public member and organization listings.
type DirectoryHandler struct {
	directory *service.DirectoryService
	logger    *slog.Logger
}

// NewDirectoryHandler creates a DirectoryHandler.
func NewDirectoryHandler(directory *service.DirectoryService, logger *slog.Logger) *DirectoryHandler {
	return &DirectoryHandler{directory: directory, logger: logger}
}

// HandleListLocalUsers lists local members.
//
// HTTP: GET /api/users/local?country=Jordan
func (h *DirectoryHandler) HandleListLocalUsers(w http.ResponseWriter, r *http.Request) {
	country := r.URL.Query().Get("country")
	profiles, err := h.directory.ListLocalUsers(r.Context(), country)
	if err != nil {
		h.logger.Error("listing local users failed",
			slog.String("country", country),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

// HandleListOrganizations lists approved organizations.
//
// HTTP: GET /api/organizations?country=Jordan&sector=Health
func (h *DirectoryHandler) HandleListOrganizations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	country, sector := q.Get("country"), q.Get("sector")
	profiles, err := h.directory.ListApprovedOrganizations(r.Context(), country, sector)
	if err != nil {
		h.logger.Error("listing organizations failed",
			slog.String("country", country),
			slog.String("sector", sector),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}
