package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/community-hub/internal/apperror"
	"github.com/sakif/community-hub/internal/auth"
	"github.com/sakif/community-hub/internal/service"
)

// ModerationHandler serves the admin approval queue. Routes using it sit
// behind middleware.RequireAdmin.
type ModerationHandler struct {
	moderation *service.ModerationService
	logger     *slog.Logger
}

// NewModerationHandler creates a ModerationHandler.
func NewModerationHandler(moderation *service.ModerationService, logger *slog.Logger) *ModerationHandler {
	return &ModerationHandler{moderation: moderation, logger: logger}
}

// HandleListPending lists organizations waiting for approval.
//
// HTTP: GET /api/admin/organizations/pending
func (h *ModerationHandler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.moderation.ListPending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

type approvalRequest struct {
	Approved *bool `json:"approved"`
}

// HandleSetApproval approves or un-approves an organization.
//
// HTTP: PUT /api/admin/organizations/{id}/approval
// REQUEST BODY: {"approved": true}
func (h *ModerationHandler) HandleSetApproval(w http.ResponseWriter, r *http.Request) {
	var req approvalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Approved == nil {
		writeError(w, apperror.ValidationFailed("approved", "approved must be true or false"))
		return
	}

	id := r.PathValue("id")
	if err := h.moderation.SetApproval(r.Context(), id, *req.Approved); err != nil {
		writeError(w, err)
		return
	}

	if sess, ok := auth.SessionFromContext(r.Context()); ok {
		h.logger.Info("organization approval set",
			slog.String("admin_id", sess.UserID),
			slog.String("user_id", id),
			slog.Bool("approved", *req.Approved),
		)
	}
	w.WriteHeader(http.StatusNoContent)
}
