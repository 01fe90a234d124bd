package query

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toppsdigital/cardsync/cache"
	"github.com/toppsdigital/cardsync/config"
	"github.com/toppsdigital/cardsync/gateway"
	"github.com/toppsdigital/cardsync/pipeline"
)

func newTestDispatcher(t *testing.T, handler http.HandlerFunc) (*Dispatcher, *cache.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gw := gateway.NewClientWithHTTP(srv.URL, srv.Client())
	store := cache.NewStore()
	return NewDispatcher(gw, store, NewSyncer(store), config.Default()), store
}

func TestDispatchValidatesBeforeNetwork(t *testing.T) {
	called := false
	d, _ := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := d.Dispatch(context.Background(), UpdateJob{JobID: ""})
	require.Error(t, err)
	assert.False(t, called)
}

func TestDispatchFailureLeavesCacheUntouched(t *testing.T) {
	d, store := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	store.Set(DetailKey("JB_1"), pipeline.Job{JobID: "JB_1", JobStatus: pipeline.StatusUploaded}, testFreshness)
	before, _ := store.Get(DetailKey("JB_1"))

	_, err := d.Dispatch(context.Background(), UpdateJob{
		JobID: "JB_1",
		Data:  map[string]interface{}{"description": "x"},
	})
	require.Error(t, err)

	after, _ := store.Get(DetailKey("JB_1"))
	assert.Equal(t, before.Seq, after.Seq)
	assert.False(t, after.Stale(time.Now()), "failed mutation must not invalidate")
}

func TestUpdateJobInvalidatesDetailAndLists(t *testing.T) {
	d, store := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pipeline.Job{JobID: "JB_1", JobStatus: pipeline.StatusUploaded})
	})

	store.Set(DetailKey("JB_1"), pipeline.Job{JobID: "JB_1"}, testFreshness)
	store.Set("jobs|mine=false|status=", []pipeline.Job{{JobID: "JB_1"}}, testFreshness)

	_, err := d.Dispatch(context.Background(), UpdateJob{
		JobID: "JB_1",
		Data:  map[string]interface{}{"description": "x"},
	})
	require.NoError(t, err)

	now := time.Now()
	detail, _ := store.Get(DetailKey("JB_1"))
	assert.True(t, detail.Stale(now))
	list, _ := store.Get("jobs|mine=false|status=")
	assert.True(t, list.Stale(now))
}

func TestCreateJobInvalidatesListsOnly(t *testing.T) {
	d, store := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pipeline.Job{JobID: "JB_new", JobStatus: pipeline.StatusUploading})
	})

	store.Set("jobs|mine=true|status=", []pipeline.Job{}, testFreshness)
	store.Set(DetailKey("JB_other"), pipeline.Job{JobID: "JB_other"}, testFreshness)

	result, err := d.Dispatch(context.Background(), CreateJob{Data: map[string]interface{}{"description": "new"}})
	require.NoError(t, err)
	require.NotNil(t, result.Job)
	assert.Equal(t, "JB_new", result.Job.JobID)

	now := time.Now()
	list, _ := store.Get("jobs|mine=true|status=")
	assert.True(t, list.Stale(now))
	other, _ := store.Get(DetailKey("JB_other"))
	assert.False(t, other.Stale(now), "unrelated detail entries stay fresh")
}

func TestUpdateFilePatchesBothCaches(t *testing.T) {
	returned := pipeline.FileGroup{
		Filename:      "set1",
		OriginalFiles: map[string]pipeline.OriginalFile{"set1_FR.pdf": {Status: pipeline.FileStatusUploaded}},
	}
	d, store := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(gateway.FileResponse{File: &returned})
	})

	stale := pipeline.FileGroup{
		Filename:      "set1",
		OriginalFiles: map[string]pipeline.OriginalFile{"set1_FR.pdf": {Status: pipeline.FileStatusUploading}},
	}
	store.Set(FilesKey("JB_1"), []pipeline.FileGroup{stale}, testFreshness)
	store.Set(DetailKey("JB_1"), pipeline.Job{
		JobID:                "JB_1",
		ContentPipelineFiles: []pipeline.FileGroup{stale},
	}, testFreshness)

	_, err := d.Dispatch(context.Background(), UpdateFile{JobID: "JB_1", File: stale})
	require.NoError(t, err)

	filesEntry, _ := store.Get(FilesKey("JB_1"))
	files := filesEntry.Data.([]pipeline.FileGroup)
	assert.Equal(t, pipeline.FileStatusUploaded, files[0].OriginalFiles["set1_FR.pdf"].Status)

	detailEntry, _ := store.Get(DetailKey("JB_1"))
	detail := detailEntry.Data.(pipeline.Job)
	assert.Equal(t, pipeline.FileStatusUploaded, detail.ContentPipelineFiles[0].OriginalFiles["set1_FR.pdf"].Status)
	assert.False(t, detailEntry.Stale(time.Now()), "patched response avoids the refetch cascade")
}

func TestUpdateFileWithoutPayloadFallsBackToInvalidation(t *testing.T) {
	d, store := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{})
	})

	store.Set(FilesKey("JB_1"), []pipeline.FileGroup{{Filename: "set1"}}, testFreshness)
	store.Set(DetailKey("JB_1"), pipeline.Job{JobID: "JB_1"}, testFreshness)

	_, err := d.Dispatch(context.Background(), UpdateFile{
		JobID: "JB_1",
		File:  pipeline.FileGroup{Filename: "set1"},
	})
	require.NoError(t, err)

	now := time.Now()
	files, _ := store.Get(FilesKey("JB_1"))
	assert.True(t, files.Stale(now))
	detail, _ := store.Get(DetailKey("JB_1"))
	assert.True(t, detail.Stale(now))
}

func TestDeleteAssetWritesAuthoritativeEmptyMap(t *testing.T) {
	d, store := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(gateway.AssetsResponse{JobID: "JB_1", Assets: map[string]pipeline.AssetConfig{}})
	})

	store.Set(AssetsKey("JB_1"), map[string]pipeline.AssetConfig{
		"as_1": {AssetID: "as_1", Type: pipeline.AssetTypeWP},
	}, testFreshness)
	store.Set(DetailKey("JB_1"), pipeline.Job{
		JobID:  "JB_1",
		Assets: map[string]pipeline.AssetConfig{"as_1": {AssetID: "as_1", Type: pipeline.AssetTypeWP}},
	}, testFreshness)

	_, err := d.Dispatch(context.Background(), DeleteAsset{JobID: "JB_1", AssetID: "as_1"})
	require.NoError(t, err)

	assetsEntry, _ := store.Get(AssetsKey("JB_1"))
	assert.Empty(t, assetsEntry.Data.(map[string]pipeline.AssetConfig))
	assert.False(t, assetsEntry.Stale(time.Now()), "empty map is a committed result, not an invalidation")

	detailEntry, _ := store.Get(DetailKey("JB_1"))
	assert.Empty(t, detailEntry.Data.(pipeline.Job).Assets)
}

func TestGenerateAssetsInvalidatesForStatusChange(t *testing.T) {
	d, store := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	store.Set(AssetsKey("JB_1"), map[string]pipeline.AssetConfig{}, testFreshness)
	store.Set(DetailKey("JB_1"), pipeline.Job{JobID: "JB_1", JobStatus: pipeline.StatusExtracted}, testFreshness)
	store.Set("jobs|mine=false|status=", []pipeline.Job{{JobID: "JB_1"}}, testFreshness)

	_, err := d.Dispatch(context.Background(), GenerateAssets{
		JobID:   "JB_1",
		PSDFile: "set1.psd",
	})
	require.NoError(t, err)

	now := time.Now()
	for _, key := range []cache.Key{AssetsKey("JB_1"), DetailKey("JB_1"), "jobs|mine=false|status="} {
		entry, _ := store.Get(key)
		assert.True(t, entry.Stale(now), "generation must invalidate %s", key)
	}
}

func TestUpdateJobStatusOptimisticApply(t *testing.T) {
	d, store := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pipeline.Job{JobID: "JB_1", JobStatus: pipeline.StatusExtracting})
	})

	store.Set(DetailKey("JB_1"), pipeline.Job{JobID: "JB_1", JobStatus: pipeline.StatusUploaded}, testFreshness)

	_, err := d.UpdateJobStatus(context.Background(), "JB_1", pipeline.StatusExtracting)
	require.NoError(t, err)
}

func TestUpdateJobStatusRollbackOnFailure(t *testing.T) {
	d, store := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": "invalid transition"})
	})

	store.Set(DetailKey("JB_1"), pipeline.Job{JobID: "JB_1", JobStatus: pipeline.StatusUploaded}, testFreshness)

	_, err := d.UpdateJobStatus(context.Background(), "JB_1", pipeline.StatusCompleted)
	require.Error(t, err)

	entry, _ := store.Get(DetailKey("JB_1"))
	assert.Equal(t, pipeline.StatusUploaded, entry.Data.(pipeline.Job).JobStatus,
		"rejected transition rolls the optimistic patch back")
}
