package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cubby/internal/domain/models"
)

// fakeWatcher hands out channels the test drives directly.
type fakeWatcher struct {
	owned   chan []models.Folder
	contrib chan []models.Folder
	err     error
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{
		owned:   make(chan []models.Folder, 8),
		contrib: make(chan []models.Folder, 8),
	}
}

func (w *fakeWatcher) WatchOwned(ctx context.Context, ownerID string, parentID *string) (<-chan []models.Folder, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.owned, nil
}

func (w *fakeWatcher) WatchContributing(ctx context.Context, userID string, parentID *string) (<-chan []models.Folder, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.contrib, nil
}

func receiveView(t *testing.T, ch <-chan []models.Folder) []models.Folder {
	t.Helper()
	select {
	case folders, ok := <-ch:
		require.True(t, ok, "stream closed unexpectedly")
		return folders
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for view emission")
		return nil
	}
}

func ids(folders []models.Folder) []string {
	out := make([]string, len(folders))
	for i, f := range folders {
		out[i] = f.ID
	}
	return out
}

func at(sec int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, sec, 0, time.UTC)
}

func TestSnapshotMergesBothSources(t *testing.T) {
	owned := &models.Folder{ID: "own-1", OwnerID: "alice", Name: "mine", CreatedAt: at(3)}
	both := &models.Folder{
		ID: "both-1", OwnerID: "alice", Name: "mine-shared", CreatedAt: at(2),
		IsShared: true, ContributorIDs: []string{"alice"},
	}
	contrib := &models.Folder{
		ID: "con-1", OwnerID: "bob", Name: "theirs", CreatedAt: at(1),
		IsShared: true, ContributorIDs: []string{"alice"},
	}
	repo := newFakeFolderRepo(owned, both, contrib)
	svc := NewViewService(repo, newFakeWatcher(), FailurePolicyDegrade, testLogger())

	folders, err := svc.Snapshot(context.Background(), "alice", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"own-1", "both-1", "con-1"}, ids(folders),
		"newest first, owned-and-contributing appears once")
}

func TestSnapshotScopesByParent(t *testing.T) {
	top := &models.Folder{ID: "top", OwnerID: "alice", Name: "top", CreatedAt: at(1)}
	nested := &models.Folder{
		ID: "nested", OwnerID: "alice", Name: "nested",
		ParentID: strptr("top"), CreatedAt: at(2),
	}
	repo := newFakeFolderRepo(top, nested)
	svc := NewViewService(repo, newFakeWatcher(), FailurePolicyDegrade, testLogger())

	folders, err := svc.Snapshot(context.Background(), "alice", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"top"}, ids(folders))

	folders, err = svc.Snapshot(context.Background(), "alice", strptr("top"))
	require.NoError(t, err)
	assert.Equal(t, []string{"nested"}, ids(folders))
}

func TestSnapshotEmptyUser(t *testing.T) {
	svc := NewViewService(newFakeFolderRepo(), newFakeWatcher(), FailurePolicyDegrade, testLogger())

	folders, err := svc.Snapshot(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Empty(t, folders)
}

func TestSnapshotPropagatesStoreError(t *testing.T) {
	repo := newFakeFolderRepo()
	repo.err = errors.New("connection refused")
	svc := NewViewService(repo, newFakeWatcher(), FailurePolicyDegrade, testLogger())

	_, err := svc.Snapshot(context.Background(), "alice", nil)
	assert.Error(t, err)
}

func TestStreamEmptyUserEmitsOnceAndHolds(t *testing.T) {
	svc := NewViewService(newFakeFolderRepo(), newFakeWatcher(), FailurePolicyDegrade, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := svc.Stream(ctx, "", nil)
	require.NoError(t, err)

	assert.Empty(t, receiveView(t, ch))

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "no second emission before cancel")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	_, ok := <-ch
	assert.False(t, ok, "stream closes after cancel")
}

func TestStreamWaitsForBothSources(t *testing.T) {
	watcher := newFakeWatcher()
	svc := NewViewService(newFakeFolderRepo(), watcher, FailurePolicyDegrade, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := svc.Stream(ctx, "alice", nil)
	require.NoError(t, err)

	watcher.owned <- []models.Folder{{ID: "own-1", OwnerID: "alice", CreatedAt: at(1)}}

	select {
	case <-ch:
		t.Fatal("emitted with only one source reported")
	case <-time.After(50 * time.Millisecond):
	}

	watcher.contrib <- []models.Folder{{ID: "con-1", OwnerID: "bob", CreatedAt: at(2)}}
	assert.Equal(t, []string{"con-1", "own-1"}, ids(receiveView(t, ch)))
}

func TestStreamReEmitsOnChange(t *testing.T) {
	watcher := newFakeWatcher()
	svc := NewViewService(newFakeFolderRepo(), watcher, FailurePolicyDegrade, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := svc.Stream(ctx, "alice", nil)
	require.NoError(t, err)

	watcher.owned <- []models.Folder{{ID: "own-1", CreatedAt: at(1)}}
	watcher.contrib <- nil
	assert.Equal(t, []string{"own-1"}, ids(receiveView(t, ch)))

	// A contributing-side change (e.g. alice invited to bob's folder)
	// re-emits the merged listing.
	watcher.contrib <- []models.Folder{{ID: "con-1", CreatedAt: at(5)}}
	assert.Equal(t, []string{"con-1", "own-1"}, ids(receiveView(t, ch)))

	// Removal propagates the same way.
	watcher.contrib <- nil
	assert.Equal(t, []string{"own-1"}, ids(receiveView(t, ch)))
}

func TestStreamConflatesForSlowConsumers(t *testing.T) {
	watcher := newFakeWatcher()
	svc := NewViewService(newFakeFolderRepo(), watcher, FailurePolicyDegrade, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := svc.Stream(ctx, "alice", nil)
	require.NoError(t, err)

	watcher.contrib <- nil
	watcher.owned <- []models.Folder{{ID: "v1", CreatedAt: at(1)}}
	watcher.owned <- []models.Folder{{ID: "v2", CreatedAt: at(2)}}
	watcher.owned <- []models.Folder{{ID: "v3", CreatedAt: at(3)}}

	// Without reading in between, the consumer must end up on the latest
	// state, intermediate ones may be skipped.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case folders := <-ch:
			if len(folders) == 1 && folders[0].ID == "v3" {
				return
			}
		case <-deadline:
			t.Fatal("never observed the latest state")
		}
	}
}

func TestStreamDegradePolicyKeepsGoing(t *testing.T) {
	watcher := newFakeWatcher()
	svc := NewViewService(newFakeFolderRepo(), watcher, FailurePolicyDegrade, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := svc.Stream(ctx, "alice", nil)
	require.NoError(t, err)

	watcher.owned <- []models.Folder{{ID: "own-1", CreatedAt: at(1)}}
	close(watcher.contrib)

	folders := receiveView(t, ch)
	assert.Equal(t, []string{"own-1"}, ids(folders),
		"dead contributing source degrades to empty, owned side still shows")

	watcher.owned <- []models.Folder{{ID: "own-2", CreatedAt: at(2)}}
	assert.Equal(t, []string{"own-2"}, ids(receiveView(t, ch)))
}

func TestStreamFailPolicyCloses(t *testing.T) {
	watcher := newFakeWatcher()
	svc := NewViewService(newFakeFolderRepo(), watcher, FailurePolicyFail, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := svc.Stream(ctx, "alice", nil)
	require.NoError(t, err)

	close(watcher.owned)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream did not close after source failure under fail policy")
		}
	}
}

func TestStreamWatchErrorSurfacesImmediately(t *testing.T) {
	watcher := newFakeWatcher()
	watcher.err = errors.New("listener down")
	svc := NewViewService(newFakeFolderRepo(), watcher, FailurePolicyDegrade, testLogger())

	_, err := svc.Stream(context.Background(), "alice", nil)
	assert.Error(t, err)
}

func TestStreamCancelTearsDown(t *testing.T) {
	watcher := newFakeWatcher()
	svc := NewViewService(newFakeFolderRepo(), watcher, FailurePolicyDegrade, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := svc.Stream(ctx, "alice", nil)
	require.NoError(t, err)

	watcher.owned <- nil
	watcher.contrib <- nil
	receiveView(t, ch)

	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream did not close after cancel")
		}
	}
}
