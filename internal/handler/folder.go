package handler

import (
	"log/slog"
	"net/http"

	"cubby/internal/domain/services"
	"cubby/internal/httputil"
)

// FolderHandler handles folder HTTP requests
type FolderHandler struct {
	folderService services.FolderService
	logger        *slog.Logger
}

// NewFolderHandler creates a new folder handler
func NewFolderHandler(folderService services.FolderService, logger *slog.Logger) *FolderHandler {
	return &FolderHandler{
		folderService: folderService,
		logger:        logger,
	}
}

// HealthCheck responds 200 when the server is up
// GET /health
func (h *FolderHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createFolderBody struct {
	Name           string   `json:"name"`
	ParentID       *string  `json:"parent_id"`
	IsPublic       bool     `json:"is_public"`
	ContributorIDs []string `json:"contributor_ids"`
}

// CreateFolder creates a new folder owned by the caller
// POST /api/folders
func (h *FolderHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	if userID == "" {
		httputil.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var body createFolderBody
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	folder, err := h.folderService.CreateFolder(r.Context(), &services.CreateFolderRequest{
		ActorID:        userID,
		Name:           body.Name,
		ParentID:       body.ParentID,
		IsPublic:       body.IsPublic,
		ContributorIDs: body.ContributorIDs,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, folder)
}

// GetFolder retrieves a folder the caller may view. Works without a
// token for public folders.
// GET /api/folders/{id}
func (h *FolderHandler) GetFolder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	folder, err := h.folderService.GetFolder(r.Context(), id, httputil.GetUserID(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folder)
}

// DeleteFolder deletes a folder. Owner only.
// DELETE /api/folders/{id}
func (h *FolderHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	if userID == "" {
		httputil.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.folderService.DeleteFolder(r.Context(), r.PathValue("id"), userID); err != nil {
		respondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type setPublicBody struct {
	IsPublic bool `json:"is_public"`
}

// SetPublic toggles public visibility. Owner only.
// PUT /api/folders/{id}/public
func (h *FolderHandler) SetPublic(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	if userID == "" {
		httputil.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var body setPublicBody
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	folder, err := h.folderService.SetPublic(r.Context(), r.PathValue("id"), userID, body.IsPublic)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folder)
}

// Lock freezes contributor writes. Owner only, idempotent.
// POST /api/folders/{id}/lock
func (h *FolderHandler) Lock(w http.ResponseWriter, r *http.Request) {
	h.setLock(w, r, true)
}

// Unlock restores contributor writes. Owner only, idempotent.
// DELETE /api/folders/{id}/lock
func (h *FolderHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	h.setLock(w, r, false)
}

func (h *FolderHandler) setLock(w http.ResponseWriter, r *http.Request, locked bool) {
	userID := httputil.GetUserID(r)
	if userID == "" {
		httputil.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var folderFn = h.folderService.Unlock
	if locked {
		folderFn = h.folderService.Lock
	}

	folder, err := folderFn(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folder)
}
