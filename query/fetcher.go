package query

import (
	"context"
	"sort"
	"time"

	"github.com/toppsdigital/cardsync/cache"
	"github.com/toppsdigital/cardsync/errors"
	"github.com/toppsdigital/cardsync/gateway"
	"github.com/toppsdigital/cardsync/pipeline"
)

// downloadURLReuseWindow is how much validity a cached download URL must
// have left to be reused instead of refreshed.
const downloadURLReuseWindow = 5 * time.Minute

// Fetcher executes the fetch procedure bound to a resolved request.
// It reads the cache only to avoid redundant round trips (jobFiles,
// downloadUrl); committing results is the engine's job.
type Fetcher struct {
	gw    *gateway.Client
	store *cache.Store
}

// NewFetcher creates a fetcher over the given gateway and cache.
func NewFetcher(gw *gateway.Client, store *cache.Store) *Fetcher {
	return &Fetcher{gw: gw, store: store}
}

// Fetch runs the request's fetch procedure and returns the value to
// commit under the request's cache key.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (interface{}, error) {
	switch req.Selector {
	case SelectorJobs:
		return f.fetchJobs(ctx, req.Options)
	case SelectorJobDetails:
		return f.fetchJobDetails(ctx, req.Options)
	case SelectorJobFiles:
		return f.fetchJobFiles(ctx, req.Options)
	case SelectorJobAssets:
		return f.fetchJobAssets(ctx, req.Options)
	case SelectorDownloadURL:
		return f.fetchDownloadURL(ctx, req)
	case SelectorBatchJobs:
		return f.fetchBatchJobs(ctx, req.Options)
	default:
		return nil, errors.NewInvalidRequestError("no fetch procedure for selector %q", req.Selector)
	}
}

// fetchJobs lists jobs and sorts them by created_at descending.
// The sort is stable so same-timestamp rows keep arrival order.
func (f *Fetcher) fetchJobs(ctx context.Context, opts Options) ([]pipeline.Job, error) {
	resp, err := f.gw.ListJobs(ctx, gateway.ListJobsParams{
		MyJobs: opts.Mine,
		Status: opts.StatusFilter,
	})
	if err != nil {
		return nil, err
	}

	jobs := resp.Jobs
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt > jobs[j].CreatedAt
	})
	return jobs, nil
}

// fetchJobDetails fetches one job, plus its files and assets when the
// options and the job's status call for them. Assets are only requested
// once the job is assets-ready; earlier statuses would just produce
// not-found noise from the gateway.
func (f *Fetcher) fetchJobDetails(ctx context.Context, opts Options) (pipeline.Job, error) {
	job, err := f.gw.GetJob(ctx, opts.JobID)
	if err != nil {
		return pipeline.Job{}, err
	}

	if opts.IncludeFiles && len(job.Files) > 0 && len(job.ContentPipelineFiles) == 0 {
		files, err := f.gw.GetJobFiles(ctx, opts.JobID)
		if err != nil {
			return pipeline.Job{}, errors.Wrapf(err, "failed to load files for job %s", opts.JobID)
		}
		job.ContentPipelineFiles = files.Files
	}

	if opts.IncludeAssets && job.JobStatus.AssetsReady() {
		assets, err := f.gw.ListAssets(ctx, opts.JobID)
		if err != nil {
			return pipeline.Job{}, errors.Wrapf(err, "failed to load assets for job %s", opts.JobID)
		}
		job.Assets = assets.Assets
	}

	return *job, nil
}

// fetchJobFiles fetches a job's file groups, preferring the cached
// detail entry's file-id list over a redundant job fetch.
func (f *Fetcher) fetchJobFiles(ctx context.Context, opts Options) ([]pipeline.FileGroup, error) {
	if entry, ok := f.store.Get(DetailKey(opts.JobID)); ok {
		if job, isJob := entry.Data.(pipeline.Job); isJob && len(job.Files) > 0 {
			resp, err := f.gw.BatchGetFiles(ctx, job.Files)
			if err != nil {
				return nil, err
			}
			return resp.Files, nil
		}
	}

	resp, err := f.gw.GetJobFiles(ctx, opts.JobID)
	if err != nil {
		return nil, err
	}
	return resp.Files, nil
}

// fetchJobAssets fetches a job's assets mapping. Callers are responsible
// for not requesting assets before the job reaches an eligible status.
func (f *Fetcher) fetchJobAssets(ctx context.Context, opts Options) (map[string]pipeline.AssetConfig, error) {
	resp, err := f.gw.ListAssets(ctx, opts.JobID)
	if err != nil {
		return nil, err
	}
	return resp.Assets, nil
}

// fetchDownloadURL reuses a cached URL with more than five minutes of
// validity left; otherwise it requests a fresh grant.
func (f *Fetcher) fetchDownloadURL(ctx context.Context, req Request) (pipeline.DownloadURLInfo, error) {
	if entry, ok := f.store.Get(req.Key); ok {
		if info, isInfo := entry.Data.(pipeline.DownloadURLInfo); isInfo &&
			info.FreshFor(time.Now(), downloadURLReuseWindow) {
			return info, nil
		}
	}

	info, err := f.gw.FolderDownloadURL(ctx, req.Options.JobID)
	if err != nil {
		return pipeline.DownloadURLInfo{}, err
	}
	return *info, nil
}

// fetchBatchJobs fetches many jobs in one round trip.
func (f *Fetcher) fetchBatchJobs(ctx context.Context, opts Options) (gateway.BatchJobsResponse, error) {
	resp, err := f.gw.BatchGetJobs(ctx, opts.JobIDs)
	if err != nil {
		return gateway.BatchJobsResponse{}, err
	}
	return *resp, nil
}
