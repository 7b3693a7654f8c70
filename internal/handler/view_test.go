package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cubby/internal/domain/models"
	"cubby/internal/handler/sse"
	"cubby/internal/httputil"
)

type stubViewService struct {
	folders []models.Folder
	stream  chan []models.Folder
	err     error
}

func (s *stubViewService) Snapshot(ctx context.Context, userID string, parentID *string) ([]models.Folder, error) {
	return s.folders, s.err
}

func (s *stubViewService) Stream(ctx context.Context, userID string, parentID *string) (<-chan []models.Folder, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.stream, nil
}

func viewMux(svc *stubViewService) *http.ServeMux {
	h := NewViewHandler(svc, &sse.Config{KeepAliveInterval: time.Minute}, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/folders", h.List)
	mux.HandleFunc("GET /api/folders/stream", h.Stream)
	return mux
}

func TestListHandler(t *testing.T) {
	svc := &stubViewService{folders: []models.Folder{
		{ID: "f1", OwnerID: "alice", Name: "notes"},
	}}
	mux := viewMux(svc)

	rec := doRequest(t, mux, "GET", "/api/folders", "alice", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"f1"`)
}

func TestListHandlerRequiresAuth(t *testing.T) {
	mux := viewMux(&stubViewService{})

	rec := doRequest(t, mux, "GET", "/api/folders", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStreamHandlerWritesViewEvents(t *testing.T) {
	stream := make(chan []models.Folder, 1)
	stream <- []models.Folder{{ID: "f1", OwnerID: "alice", Name: "notes"}}
	svc := &stubViewService{stream: stream}
	h := NewViewHandler(svc, &sse.Config{KeepAliveInterval: time.Minute}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/api/folders/stream", nil).WithContext(ctx)
	req = httputil.WithUserID(req, "alice")
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Stream(rec, req)
	}()

	// One buffered emission, then the client disconnects.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler did not return after cancel")
	}

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	require.True(t, strings.Contains(body, "event: view"), "body: %s", body)
	assert.Contains(t, body, `"f1"`)
}

func TestStreamHandlerRequiresAuth(t *testing.T) {
	mux := viewMux(&stubViewService{})

	rec := doRequest(t, mux, "GET", "/api/folders/stream", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
