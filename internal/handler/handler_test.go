package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cubby/internal/domain"
	"cubby/internal/domain/models"
	"cubby/internal/domain/repositories"
	"cubby/internal/domain/services"
	"cubby/internal/httputil"
	"cubby/internal/notify"
	"cubby/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// stubFolderService returns canned results per call.
type stubFolderService struct {
	folder *models.Folder
	err    error
}

func (s *stubFolderService) CreateFolder(ctx context.Context, req *services.CreateFolderRequest) (*models.Folder, error) {
	return s.folder, s.err
}

func (s *stubFolderService) GetFolder(ctx context.Context, folderID, actorID string) (*models.Folder, error) {
	return s.folder, s.err
}

func (s *stubFolderService) DeleteFolder(ctx context.Context, folderID, actorID string) error {
	return s.err
}

func (s *stubFolderService) SetPublic(ctx context.Context, folderID, actorID string, public bool) (*models.Folder, error) {
	return s.folder, s.err
}

func (s *stubFolderService) Lock(ctx context.Context, folderID, actorID string) (*models.Folder, error) {
	return s.folder, s.err
}

func (s *stubFolderService) Unlock(ctx context.Context, folderID, actorID string) (*models.Folder, error) {
	return s.folder, s.err
}

type stubMembershipService struct {
	folder  *models.Folder
	err     error
	lastReq *services.InviteRequest
}

func (s *stubMembershipService) Invite(ctx context.Context, req *services.InviteRequest) (*models.Folder, error) {
	s.lastReq = req
	return s.folder, s.err
}

func (s *stubMembershipService) Remove(ctx context.Context, folderID, actorID, contributorID string) (*models.Folder, error) {
	return s.folder, s.err
}

// doRequest routes through a real ServeMux so path values resolve.
func doRequest(t *testing.T, mux *http.ServeMux, method, target, userID string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if userID != "" {
		req = httputil.WithUserID(req, userID)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func folderMux(svc services.FolderService) *http.ServeMux {
	h := NewFolderHandler(svc, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/folders", h.CreateFolder)
	mux.HandleFunc("GET /api/folders/{id}", h.GetFolder)
	mux.HandleFunc("DELETE /api/folders/{id}", h.DeleteFolder)
	mux.HandleFunc("PUT /api/folders/{id}/public", h.SetPublic)
	mux.HandleFunc("POST /api/folders/{id}/lock", h.Lock)
	mux.HandleFunc("DELETE /api/folders/{id}/lock", h.Unlock)
	return mux
}

func TestCreateFolderHandler(t *testing.T) {
	folder := &models.Folder{ID: "f1", OwnerID: "alice", Name: "notes"}
	mux := folderMux(&stubFolderService{folder: folder})

	rec := doRequest(t, mux, "POST", "/api/folders", "alice", `{"name":"notes"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var got models.Folder
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "f1", got.ID)
}

func TestCreateFolderHandlerRequiresAuth(t *testing.T) {
	mux := folderMux(&stubFolderService{})

	rec := doRequest(t, mux, "POST", "/api/folders", "", `{"name":"notes"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateFolderHandlerBadJSON(t *testing.T) {
	mux := folderMux(&stubFolderService{})

	rec := doRequest(t, mux, "POST", "/api/folders", "alice", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

// pointReadRepo backs a real folder service for tests that cover the
// handler and service together. Only point reads are served.
type pointReadRepo struct {
	repositories.FolderRepository
	folders map[string]*models.Folder
}

func (r *pointReadRepo) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	folder, ok := r.folders[id]
	if !ok {
		return nil, &domain.NotFoundError{Message: "folder " + id + " not found"}
	}
	clone := *folder
	return &clone, nil
}

func TestGetFolderHandlerAnonymous(t *testing.T) {
	// Tokenless requests reach the handler with an empty user id; public
	// folders must still resolve through the real service, everything
	// else is denied. Exercises the whole read path, not a stub.
	repo := &pointReadRepo{folders: map[string]*models.Folder{
		"pub":  {ID: "pub", OwnerID: "alice", Name: "blog", IsPublic: true},
		"priv": {ID: "priv", OwnerID: "alice", Name: "diary"},
	}}
	svc := service.NewFolderService(repo, nil, nil, notify.NoopNotifier{}, testLogger())
	mux := folderMux(svc)

	rec := doRequest(t, mux, "GET", "/api/folders/pub", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var got models.Folder
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "blog", got.Name)

	rec = doRequest(t, mux, "GET", "/api/folders/priv", "", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDomainErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{&domain.InvalidArgumentError{Message: "bad"}, http.StatusBadRequest},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{&domain.PermissionDeniedError{Message: "no"}, http.StatusForbidden},
		{fmt.Errorf("folder f1: %w", domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("status_%d", tc.status), func(t *testing.T) {
			mux := folderMux(&stubFolderService{err: tc.err})
			rec := doRequest(t, mux, "GET", "/api/folders/f1", "alice", "")
			assert.Equal(t, tc.status, rec.Code)

			var problem httputil.ProblemDetail
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.Equal(t, tc.status, problem.Status)
		})
	}
}

func TestDeleteFolderHandler(t *testing.T) {
	mux := folderMux(&stubFolderService{})

	rec := doRequest(t, mux, "DELETE", "/api/folders/f1", "alice", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLockHandlers(t *testing.T) {
	folder := &models.Folder{ID: "f1", OwnerID: "alice", Name: "notes", IsLocked: true}
	mux := folderMux(&stubFolderService{folder: folder})

	rec := doRequest(t, mux, "POST", "/api/folders/f1/lock", "alice", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, mux, "DELETE", "/api/folders/f1/lock", "alice", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, mux, "POST", "/api/folders/f1/lock", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func membershipMux(svc services.MembershipService) *http.ServeMux {
	h := NewMembershipHandler(svc, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/folders/{id}/contributors", h.Invite)
	mux.HandleFunc("DELETE /api/folders/{id}/contributors/{userID}", h.Remove)
	return mux
}

func TestInviteHandler(t *testing.T) {
	folder := &models.Folder{
		ID: "f1", OwnerID: "alice", Name: "notes",
		IsShared: true, ContributorIDs: []string{"bob"},
	}
	svc := &stubMembershipService{folder: folder}
	mux := membershipMux(svc)

	rec := doRequest(t, mux, "POST", "/api/folders/f1/contributors", "alice",
		`{"contributor_ids":["bob"]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.lastReq)
	assert.Equal(t, "f1", svc.lastReq.FolderID)
	assert.Equal(t, "alice", svc.lastReq.ActorID)
	assert.Equal(t, []string{"bob"}, svc.lastReq.ContributorIDs)
}

func TestRemoveHandler(t *testing.T) {
	folder := &models.Folder{ID: "f1", OwnerID: "alice", Name: "notes", IsShared: true}
	mux := membershipMux(&stubMembershipService{folder: folder})

	rec := doRequest(t, mux, "DELETE", "/api/folders/f1/contributors/bob", "alice", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMembershipHandlersRequireAuth(t *testing.T) {
	mux := membershipMux(&stubMembershipService{})

	rec := doRequest(t, mux, "POST", "/api/folders/f1/contributors", "", `{"contributor_ids":["bob"]}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, mux, "DELETE", "/api/folders/f1/contributors/bob", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
