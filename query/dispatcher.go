package query

import (
	"context"

	"go.uber.org/zap"

	"github.com/toppsdigital/cardsync/cache"
	"github.com/toppsdigital/cardsync/config"
	"github.com/toppsdigital/cardsync/errors"
	"github.com/toppsdigital/cardsync/gateway"
	"github.com/toppsdigital/cardsync/logger"
	"github.com/toppsdigital/cardsync/pipeline"
)

// Result carries whatever a mutation's response contained. Fields not
// relevant to the dispatched kind are zero.
type Result struct {
	Job         *pipeline.Job
	File        *pipeline.FileGroup
	Files       []pipeline.FileGroup
	Assets      map[string]pipeline.AssetConfig
	HasAssets   bool // distinguishes "empty map returned" from "no assets payload"
	DownloadURL *pipeline.DownloadURLInfo
}

// Dispatcher executes mutations against the gateway and applies the
// per-kind cache patch or invalidation policy afterwards. A failed
// mutation leaves the cache untouched and surfaces the error.
type Dispatcher struct {
	gw     *gateway.Client
	store  *cache.Store
	syncer *Syncer
	cfg    *config.Config
	log    *zap.SugaredLogger
}

// NewDispatcher creates a mutation dispatcher.
func NewDispatcher(gw *gateway.Client, store *cache.Store, syncer *Syncer, cfg *config.Config) *Dispatcher {
	return &Dispatcher{
		gw:     gw,
		store:  store,
		syncer: syncer,
		cfg:    cfg,
		log:    logger.Logger,
	}
}

// Dispatch validates, executes, and applies the cache policy of one
// mutation.
func (d *Dispatcher) Dispatch(ctx context.Context, m Mutation) (*Result, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	result, err := d.execute(ctx, m)
	if err != nil {
		d.log.Errorw("Mutation failed",
			"kind", m.Kind(),
			"error", err)
		return nil, errors.Wrapf(err, "mutation %s failed", m.Kind())
	}

	d.applyCachePolicy(m, result)

	d.log.Infow("Mutation applied",
		"kind", m.Kind())
	return result, nil
}

// execute performs the gateway call for one mutation kind.
func (d *Dispatcher) execute(ctx context.Context, m Mutation) (*Result, error) {
	switch mut := m.(type) {
	case CreateJob:
		job, err := d.gw.CreateJob(ctx, mut.Data)
		return &Result{Job: job}, err

	case RerunJob:
		job, err := d.gw.RerunJob(ctx, mut.JobID, mut.Data)
		return &Result{Job: job}, err

	case UpdateJob:
		job, err := d.gw.UpdateJob(ctx, mut.JobID, mut.Data)
		return &Result{Job: job}, err

	case CreateFiles:
		resp, err := d.gw.CreateFiles(ctx, mut.JobID, mut.Files)
		if err != nil {
			return nil, err
		}
		return &Result{Files: resp.Files}, nil

	case BatchGetFiles:
		resp, err := d.gw.BatchGetFiles(ctx, mut.Filenames)
		if err != nil {
			return nil, err
		}
		return &Result{Files: resp.Files}, nil

	case UpdateFile:
		resp, err := d.gw.UpdateFile(ctx, mut.File)
		if err != nil {
			return nil, err
		}
		return &Result{File: resp.File}, nil

	case UpdatePDFFileStatus:
		resp, err := d.gw.UpdatePDFStatus(ctx, mut.JobID, mut.Filename, mut.PDFFilename, mut.Status)
		if err != nil {
			return nil, err
		}
		return &Result{File: resp.File}, nil

	case BatchUpdatePDFFileStatus:
		resp, err := d.gw.BatchUpdatePDFStatus(ctx, mut.JobID, mut.Updates)
		if err != nil {
			return nil, err
		}
		return &Result{Files: resp.Files}, nil

	case CreateAsset:
		resp, err := d.gw.CreateAsset(ctx, mut.JobID, mut.Asset)
		if err != nil {
			return nil, err
		}
		return &Result{Assets: resp.Assets, HasAssets: resp.Assets != nil}, nil

	case UpdateAsset:
		resp, err := d.gw.UpdateAsset(ctx, mut.JobID, mut.AssetID, mut.Asset)
		if err != nil {
			return nil, err
		}
		return &Result{Assets: resp.Assets, HasAssets: resp.Assets != nil}, nil

	case DeleteAsset:
		resp, err := d.gw.DeleteAsset(ctx, mut.JobID, mut.AssetID)
		if err != nil {
			return nil, err
		}
		return &Result{Assets: resp.Assets, HasAssets: true}, nil

	case BulkUpdateAssets:
		resp, err := d.gw.BulkUpdateAssets(ctx, mut.JobID, mut.Assets)
		if err != nil {
			return nil, err
		}
		return &Result{Assets: resp.Assets, HasAssets: resp.Assets != nil}, nil

	case GenerateAssets:
		return &Result{}, d.gw.GenerateAssets(ctx, mut.JobID, mut.Assets, mut.PSDFile)

	case RegenerateAssets:
		return &Result{}, d.gw.RegenerateAssets(ctx, mut.JobID)

	case ExtractPDFData:
		payload := mut.Payload
		if payload == nil {
			payload = map[string]interface{}{}
		}
		payload["job_id"] = mut.JobID
		return &Result{}, d.gw.ExtractPDFData(ctx, payload)

	case RefreshDownloadURL:
		info, err := d.gw.FolderDownloadURL(ctx, mut.JobID)
		if err != nil {
			return nil, err
		}
		return &Result{DownloadURL: info}, nil

	default:
		return nil, errors.NewInvalidRequestError("unknown mutation kind %q", m.Kind())
	}
}

// applyCachePolicy applies the post-success cache policy for one
// mutation kind.
func (d *Dispatcher) applyCachePolicy(m Mutation, result *Result) {
	switch mut := m.(type) {
	case CreateJob, RerunJob:
		// New row must appear in every list variant.
		d.store.InvalidatePrefix(PrefixJobsList)

	case UpdateJob:
		d.store.Invalidate(DetailKey(mut.JobID))
		d.store.InvalidatePrefix(PrefixJobsList)

	case CreateFiles:
		d.store.Invalidate(FilesKey(mut.JobID))
		d.store.Invalidate(DetailKey(mut.JobID))

	case BatchGetFiles:
		// Read-only; nothing to patch.

	case UpdateFile:
		d.applyFilePolicy(mut.JobID, result.File)

	case UpdatePDFFileStatus:
		d.applyFilePolicy(mut.JobID, result.File)

	case BatchUpdatePDFFileStatus:
		if len(result.Files) > 0 {
			for _, group := range result.Files {
				d.syncer.ReplaceFileGroup(mut.JobID, group)
			}
		} else {
			d.store.Invalidate(FilesKey(mut.JobID))
			d.store.Invalidate(DetailKey(mut.JobID))
		}

	case CreateAsset:
		d.applyAssetsPolicy(mut.JobID, result)
	case UpdateAsset:
		d.applyAssetsPolicy(mut.JobID, result)
	case DeleteAsset:
		d.applyAssetsPolicy(mut.JobID, result)
	case BulkUpdateAssets:
		d.applyAssetsPolicy(mut.JobID, result)

	case GenerateAssets:
		d.invalidateForGeneration(mut.JobID)
	case RegenerateAssets:
		d.invalidateForGeneration(mut.JobID)

	case ExtractPDFData:
		d.store.Invalidate(FilesKey(mut.JobID))
		d.store.Invalidate(DetailKey(mut.JobID))

	case RefreshDownloadURL:
		d.store.Invalidate(DownloadKey(mut.JobID))
		d.store.Invalidate(DetailKey(mut.JobID))
	}
}

// applyFilePolicy patches the returned file object into both caches, or
// falls back to invalidation when the response omitted it.
func (d *Dispatcher) applyFilePolicy(jobID string, file *pipeline.FileGroup) {
	if file != nil {
		d.syncer.ReplaceFileGroup(jobID, *file)
		return
	}
	d.store.Invalidate(FilesKey(jobID))
	d.store.Invalidate(DetailKey(jobID))
}

// applyAssetsPolicy writes the returned assets mapping directly into the
// caches; even an empty map is authoritative ("all deleted"). Only when
// the response carried no assets payload at all does it fall back to
// invalidating the assets entry alone.
func (d *Dispatcher) applyAssetsPolicy(jobID string, result *Result) {
	if result.HasAssets {
		req := Request{Selector: SelectorJobAssets}
		d.syncer.WriteAssets(jobID, result.Assets, req.Freshness(d.cfg.Cache))
		return
	}
	d.store.Invalidate(AssetsKey(jobID))
}

// invalidateForGeneration forces a full refetch: generation changes job
// status server-side, so assets, detail, and lists are all stale.
func (d *Dispatcher) invalidateForGeneration(jobID string) {
	d.store.Invalidate(AssetsKey(jobID))
	d.store.Invalidate(DetailKey(jobID))
	d.store.InvalidatePrefix(PrefixJobsList)
}

// UpdateJobStatus is a convenience wrapper that patches the cached
// detail optimistically, then rolls the snapshot back if the gateway
// rejects the transition.
func (d *Dispatcher) UpdateJobStatus(ctx context.Context, jobID string, status pipeline.JobStatus) (*Result, error) {
	if jobID == "" {
		return nil, errors.NewInvalidRequestError("updateJobStatus requires a job id")
	}

	key := DetailKey(jobID)
	snapshot, hadSnapshot := d.store.Get(key)

	d.store.Update(key, func(data interface{}) (interface{}, bool) {
		job, ok := data.(pipeline.Job)
		if !ok || job.JobStatus == status {
			return data, false
		}
		out := job.Clone()
		out.JobStatus = status
		return out, true
	})

	result, err := d.Dispatch(ctx, UpdateJob{
		JobID: jobID,
		Data:  map[string]interface{}{"job_status": status},
	})
	if err != nil {
		if hadSnapshot {
			d.store.Update(key, func(interface{}) (interface{}, bool) {
				return snapshot.Data, true
			})
		}
		return nil, err
	}
	return result, nil
}
