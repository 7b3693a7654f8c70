package handler

import (
	"log/slog"
	"net/http"

	"cubby/internal/domain/services"
	"cubby/internal/handler/sse"
	"cubby/internal/httputil"
)

// ViewHandler serves the per-user accessible-folder listing, both as a
// one-shot snapshot and as a live SSE stream.
type ViewHandler struct {
	viewService services.ViewService
	sseConfig   *sse.Config
	logger      *slog.Logger
}

// NewViewHandler creates a new view handler
func NewViewHandler(viewService services.ViewService, sseConfig *sse.Config, logger *slog.Logger) *ViewHandler {
	if sseConfig == nil {
		sseConfig = sse.DefaultConfig()
	}
	return &ViewHandler{
		viewService: viewService,
		sseConfig:   sseConfig,
		logger:      logger,
	}
}

// parentScope reads the optional ?parent= query parameter.
// Absent means the top level.
func parentScope(r *http.Request) *string {
	if !r.URL.Query().Has("parent") {
		return nil
	}
	parent := r.URL.Query().Get("parent")
	if parent == "" {
		return nil
	}
	return &parent
}

// List returns the folders the caller currently owns or contributes to
// at one hierarchy level.
// GET /api/folders?parent={id}
func (h *ViewHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	if userID == "" {
		httputil.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	folders, err := h.viewService.Snapshot(r.Context(), userID, parentScope(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folders)
}

// Stream pushes the caller's accessible-folder listing as SSE "view"
// events: the full current listing immediately, then again on every
// relevant change. The connection stays open until the client goes away.
// GET /api/folders/stream?parent={id}
func (h *ViewHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	if userID == "" {
		httputil.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	views, err := h.viewService.Stream(r.Context(), userID, parentScope(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	writer, err := sse.NewWriter(w)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	keepAlive := sse.NewTickerKeepAlive(h.sseConfig.KeepAliveInterval)
	keepAliveDone := keepAlive.Start(writer, h.logger)
	defer keepAlive.Stop()

	h.logger.Debug("view stream opened", "user_id", userID)
	defer h.logger.Debug("view stream closed", "user_id", userID)

	for {
		select {
		case <-r.Context().Done():
			return

		case <-keepAliveDone:
			// Connection dropped
			return

		case folders, ok := <-views:
			if !ok {
				// Upstream closed (fail policy); tell the client before
				// hanging up so it can distinguish this from a network drop.
				if r.Context().Err() == nil {
					_ = writer.WriteEvent("error", map[string]string{
						"message": "view subscription lost",
					})
				}
				return
			}
			if err := writer.WriteEvent("view", folders); err != nil {
				h.logger.Debug("view stream write failed", "user_id", userID, "error", err)
				return
			}
		}
	}
}
