package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toppsdigital/cardsync/cache"
	"github.com/toppsdigital/cardsync/pipeline"
)

var testFreshness = cache.Freshness{Stale: time.Minute, Evict: time.Hour}

func seedDetail(s *cache.Store, job pipeline.Job) {
	s.Set(DetailKey(job.JobID), job, testFreshness)
}

func seedList(s *cache.Store, key cache.Key, jobs []pipeline.Job) {
	s.Set(key, jobs, testFreshness)
}

func TestSyncListToDetailsPatchesStatus(t *testing.T) {
	store := cache.NewStore()
	syncer := NewSyncer(store)

	seedDetail(store, pipeline.Job{
		JobID:     "JB_1",
		JobStatus: pipeline.StatusExtracting,
		Assets:    map[string]pipeline.AssetConfig{"as_1": {Type: pipeline.AssetTypeWP}},
		ContentPipelineFiles: []pipeline.FileGroup{{Filename: "set1"}},
	})

	patched := syncer.SyncListToDetails([]pipeline.Job{
		{JobID: "JB_1", JobStatus: pipeline.StatusExtracted},
		{JobID: "JB_2", JobStatus: pipeline.StatusUploading}, // not cached; skipped
	})
	assert.Equal(t, 1, patched)

	entry, ok := store.Get(DetailKey("JB_1"))
	require.True(t, ok)
	detail := entry.Data.(pipeline.Job)
	assert.Equal(t, pipeline.StatusExtracted, detail.JobStatus)

	// Detail-only fields survive the patch.
	assert.Len(t, detail.Assets, 1)
	assert.Len(t, detail.ContentPipelineFiles, 1)

	// No phantom entry for the uncached job.
	_, ok = store.Get(DetailKey("JB_2"))
	assert.False(t, ok)
}

func TestSyncListToDetailsNoopWhenUnchanged(t *testing.T) {
	store := cache.NewStore()
	syncer := NewSyncer(store)

	job := pipeline.Job{JobID: "JB_1", JobStatus: pipeline.StatusGenerating}
	seedDetail(store, job)
	before, _ := store.Get(DetailKey("JB_1"))

	patched := syncer.SyncListToDetails([]pipeline.Job{{JobID: "JB_1", JobStatus: pipeline.StatusGenerating}})
	assert.Equal(t, 0, patched)

	after, _ := store.Get(DetailKey("JB_1"))
	assert.Equal(t, before.Seq, after.Seq, "identical data must not bump seq")
}

func TestSyncDetailToListsPatchesMatchingRowOnly(t *testing.T) {
	store := cache.NewStore()
	syncer := NewSyncer(store)

	rows := []pipeline.Job{
		{JobID: "JB_1", JobStatus: pipeline.StatusGenerating, LastUpdated: "t1"},
		{JobID: "JB_2", JobStatus: pipeline.StatusUploading, LastUpdated: "t1"},
	}
	seedList(store, "jobs|mine=false|status=", rows)
	seedList(store, "jobs|mine=true|status=", rows)

	patched := syncer.SyncDetailToLists(pipeline.Job{
		JobID: "JB_1", JobStatus: pipeline.StatusCompleted, LastUpdated: "t2",
	})
	assert.Equal(t, 2, patched, "every cached list variant is patched")

	for _, key := range []cache.Key{"jobs|mine=false|status=", "jobs|mine=true|status="} {
		entry, _ := store.Get(key)
		list := entry.Data.([]pipeline.Job)
		assert.Equal(t, pipeline.StatusCompleted, list[0].JobStatus)
		assert.Equal(t, "t2", list[0].LastUpdated)
		assert.Equal(t, pipeline.StatusUploading, list[1].JobStatus, "other rows untouched")
	}

	// Original slices were not mutated in place.
	assert.Equal(t, pipeline.StatusGenerating, rows[0].JobStatus)
}

func TestSyncDetailToListsAbsentRowIsNoop(t *testing.T) {
	store := cache.NewStore()
	syncer := NewSyncer(store)

	seedList(store, "jobs|mine=false|status=", []pipeline.Job{{JobID: "JB_1", JobStatus: pipeline.StatusUploading}})

	patched := syncer.SyncDetailToLists(pipeline.Job{JobID: "JB_unknown", JobStatus: pipeline.StatusCompleted})
	assert.Equal(t, 0, patched)
}

func TestReplaceFileGroupDualWrite(t *testing.T) {
	store := cache.NewStore()
	syncer := NewSyncer(store)

	group := pipeline.FileGroup{
		Filename:      "set1",
		OriginalFiles: map[string]pipeline.OriginalFile{"set1_FR.pdf": {Status: pipeline.FileStatusUploading}},
	}
	store.Set(FilesKey("JB_1"), []pipeline.FileGroup{group}, testFreshness)
	seedDetail(store, pipeline.Job{
		JobID:                "JB_1",
		JobStatus:            pipeline.StatusUploading,
		ContentPipelineFiles: []pipeline.FileGroup{group},
	})

	updated := pipeline.FileGroup{
		Filename:      "set1",
		OriginalFiles: map[string]pipeline.OriginalFile{"set1_FR.pdf": {Status: pipeline.FileStatusUploaded}},
	}
	syncer.ReplaceFileGroup("JB_1", updated)

	filesEntry, _ := store.Get(FilesKey("JB_1"))
	files := filesEntry.Data.([]pipeline.FileGroup)
	assert.Equal(t, pipeline.FileStatusUploaded, files[0].OriginalFiles["set1_FR.pdf"].Status)

	detailEntry, _ := store.Get(DetailKey("JB_1"))
	detail := detailEntry.Data.(pipeline.Job)
	assert.Equal(t, pipeline.FileStatusUploaded,
		detail.ContentPipelineFiles[0].OriginalFiles["set1_FR.pdf"].Status,
		"embedded copy must match the files entry")
}

func TestReplaceFileGroupUnknownFilename(t *testing.T) {
	store := cache.NewStore()
	syncer := NewSyncer(store)

	store.Set(FilesKey("JB_1"), []pipeline.FileGroup{{Filename: "set1"}}, testFreshness)
	before, _ := store.Get(FilesKey("JB_1"))

	syncer.ReplaceFileGroup("JB_1", pipeline.FileGroup{Filename: "set99"})

	after, _ := store.Get(FilesKey("JB_1"))
	assert.Equal(t, before.Seq, after.Seq)
}

func TestWriteAssetsUpdatesBothViews(t *testing.T) {
	store := cache.NewStore()
	syncer := NewSyncer(store)

	seedDetail(store, pipeline.Job{JobID: "JB_1", JobStatus: pipeline.StatusExtracted})

	assets := map[string]pipeline.AssetConfig{
		"as_1": {AssetID: "as_1", Type: pipeline.AssetTypeBase, Layer: "base"},
	}
	syncer.WriteAssets("JB_1", assets, testFreshness)

	assetsEntry, ok := store.Get(AssetsKey("JB_1"))
	require.True(t, ok)
	assert.Len(t, assetsEntry.Data.(map[string]pipeline.AssetConfig), 1)

	detailEntry, _ := store.Get(DetailKey("JB_1"))
	assert.Len(t, detailEntry.Data.(pipeline.Job).Assets, 1)
}

func TestWriteAssetsEmptyMapIsAuthoritative(t *testing.T) {
	store := cache.NewStore()
	syncer := NewSyncer(store)

	seedDetail(store, pipeline.Job{
		JobID:     "JB_1",
		JobStatus: pipeline.StatusCompleted,
		Assets:    map[string]pipeline.AssetConfig{"as_1": {Type: pipeline.AssetTypeWP}},
	})

	syncer.WriteAssets("JB_1", map[string]pipeline.AssetConfig{}, testFreshness)

	detailEntry, _ := store.Get(DetailKey("JB_1"))
	assert.Empty(t, detailEntry.Data.(pipeline.Job).Assets, "all assets deleted")
}
