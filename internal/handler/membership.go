package handler

import (
	"log/slog"
	"net/http"

	"cubby/internal/domain/services"
	"cubby/internal/httputil"
)

// MembershipHandler handles contributor membership HTTP requests
type MembershipHandler struct {
	membershipService services.MembershipService
	logger            *slog.Logger
}

// NewMembershipHandler creates a new membership handler
func NewMembershipHandler(membershipService services.MembershipService, logger *slog.Logger) *MembershipHandler {
	return &MembershipHandler{
		membershipService: membershipService,
		logger:            logger,
	}
}

type inviteBody struct {
	ContributorIDs []string `json:"contributor_ids"`
}

// Invite adds contributors to a folder. Owner only; the whole batch is
// accepted or rejected.
// POST /api/folders/{id}/contributors
func (h *MembershipHandler) Invite(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	if userID == "" {
		httputil.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var body inviteBody
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	folder, err := h.membershipService.Invite(r.Context(), &services.InviteRequest{
		FolderID:       r.PathValue("id"),
		ActorID:        userID,
		ContributorIDs: body.ContributorIDs,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folder)
}

// Remove removes one contributor from a folder. Owner only.
// DELETE /api/folders/{id}/contributors/{userID}
func (h *MembershipHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	if userID == "" {
		httputil.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	folder, err := h.membershipService.Remove(
		r.Context(), r.PathValue("id"), userID, r.PathValue("userID"))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folder)
}
