package query

import (
	"go.uber.org/zap"

	"github.com/toppsdigital/cardsync/cache"
	"github.com/toppsdigital/cardsync/logger"
	"github.com/toppsdigital/cardsync/pipeline"
)

// Syncer propagates field-level changes between the jobs-list aggregate
// entries and individual job-detail entries, in both directions.
//
// Synchronization only patches already-cached data: it never fetches and
// never removes entries. Patches are field-compared, so re-applying the
// same data is a no-op.
type Syncer struct {
	store *cache.Store
	log   *zap.SugaredLogger
}

// NewSyncer creates a syncer over the given store.
func NewSyncer(store *cache.Store) *Syncer {
	return &Syncer{store: store, log: logger.Logger}
}

// SyncListToDetails patches cached detail entries from a fresh jobs-list
// result. Detail-only fields (content_pipeline_files, assets) are
// preserved. Returns the number of detail entries patched.
func (s *Syncer) SyncListToDetails(jobs []pipeline.Job) int {
	patched := 0
	for _, row := range jobs {
		row := row
		changed := s.store.Update(DetailKey(row.JobID), func(data interface{}) (interface{}, bool) {
			detail, ok := data.(pipeline.Job)
			if !ok {
				return data, false
			}
			return patchTrackedFields(detail, row)
		})
		if changed {
			patched++
			s.log.Debugw("Synced list row into job detail",
				"job_id", row.JobID,
				"job_status", row.JobStatus)
		}
	}
	return patched
}

// SyncDetailToLists patches the matching row of every cached jobs-list
// entry from a fresh detail result. Only the matching row is replaced;
// every other row keeps its identity. Returns the number of list
// entries patched.
func (s *Syncer) SyncDetailToLists(job pipeline.Job) int {
	patched := 0
	for _, kv := range s.store.EntriesByPrefix(PrefixJobsList) {
		changed := s.store.Update(kv.Key, func(data interface{}) (interface{}, bool) {
			list, ok := data.([]pipeline.Job)
			if !ok {
				return data, false
			}
			return patchListRow(list, job)
		})
		if changed {
			patched++
		}
	}
	if patched > 0 {
		s.log.Debugw("Synced job detail into jobs lists",
			"job_id", job.JobID,
			"lists_patched", patched)
	}
	return patched
}

// ReplaceFileGroup writes an updated file group into both the
// job-scoped file list entry and the matching slot of the job detail's
// embedded file array. This dual write keeps the two views of one file
// consistent after a file-status mutation.
func (s *Syncer) ReplaceFileGroup(jobID string, group pipeline.FileGroup) {
	s.store.Update(FilesKey(jobID), func(data interface{}) (interface{}, bool) {
		files, ok := data.([]pipeline.FileGroup)
		if !ok {
			return data, false
		}
		return replaceGroup(files, group)
	})

	s.store.Update(DetailKey(jobID), func(data interface{}) (interface{}, bool) {
		detail, ok := data.(pipeline.Job)
		if !ok {
			return data, false
		}
		replaced, changed := replaceGroup(detail.ContentPipelineFiles, group)
		if !changed {
			return data, false
		}
		out := detail.Clone()
		out.ContentPipelineFiles = replaced
		return out, true
	})
}

// trackedFieldsDiffer compares the list-visible fields of two jobs.
func trackedFieldsDiffer(a, b pipeline.Job) bool {
	return a.JobStatus != b.JobStatus ||
		a.SourceFolder != b.SourceFolder ||
		a.Description != b.Description ||
		a.CreatedAt != b.CreatedAt ||
		a.DownloadURL != b.DownloadURL ||
		a.DownloadURLExpires != b.DownloadURLExpires ||
		a.DownloadURLCreated != b.DownloadURLCreated
}

// patchTrackedFields copies the tracked fields of row onto detail when
// they differ, preserving detail-only fields.
func patchTrackedFields(detail, row pipeline.Job) (pipeline.Job, bool) {
	if !trackedFieldsDiffer(detail, row) {
		return detail, false
	}
	out := detail.Clone()
	out.JobStatus = row.JobStatus
	out.SourceFolder = row.SourceFolder
	out.Description = row.Description
	out.CreatedAt = row.CreatedAt
	out.DownloadURL = row.DownloadURL
	out.DownloadURLExpires = row.DownloadURLExpires
	out.DownloadURLCreated = row.DownloadURLCreated
	return out, true
}

// patchListRow replaces the row matching job's id when its status or
// last_updated differ. Rows other than the match are reused as-is.
func patchListRow(list []pipeline.Job, job pipeline.Job) ([]pipeline.Job, bool) {
	for i, row := range list {
		if row.JobID != job.JobID {
			continue
		}
		if row.JobStatus == job.JobStatus && row.LastUpdated == job.LastUpdated {
			return list, false
		}
		out := make([]pipeline.Job, len(list))
		copy(out, list)
		patched := row.Clone()
		patched.JobStatus = job.JobStatus
		patched.LastUpdated = job.LastUpdated
		out[i] = patched
		return out, true
	}
	return list, false
}

// replaceGroup swaps the group with a matching filename, replacing the
// whole object rather than mutating in place.
func replaceGroup(files []pipeline.FileGroup, group pipeline.FileGroup) ([]pipeline.FileGroup, bool) {
	for i, existing := range files {
		if existing.Filename != group.Filename {
			continue
		}
		out := make([]pipeline.FileGroup, len(files))
		copy(out, files)
		out[i] = group.Clone()
		return out, true
	}
	return files, false
}

// WriteAssets writes an assets mapping into both the assets entry and
// the job detail's assets field. The mutation dispatcher uses it when a
// response already carries the resulting assets, sparing the
// job+files+assets refetch cascade a detail invalidation would trigger.
func (s *Syncer) WriteAssets(jobID string, assets map[string]pipeline.AssetConfig, freshness cache.Freshness) {
	cloned := cloneAssets(assets)
	s.store.Set(AssetsKey(jobID), cloned, freshness)

	s.store.Update(DetailKey(jobID), func(data interface{}) (interface{}, bool) {
		detail, ok := data.(pipeline.Job)
		if !ok {
			return data, false
		}
		out := detail.Clone()
		out.Assets = cloneAssets(assets)
		return out, true
	})
}

func cloneAssets(assets map[string]pipeline.AssetConfig) map[string]pipeline.AssetConfig {
	out := make(map[string]pipeline.AssetConfig, len(assets))
	for id, a := range assets {
		out[id] = a.Clone()
	}
	return out
}
