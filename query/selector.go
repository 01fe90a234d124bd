// Package query implements the data-synchronization core of the
// console: selector resolution, the polling scheduler, cross-entity
// cache synchronization, mutation dispatch, and the polling engine
// views subscribe to.
package query

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/toppsdigital/cardsync/cache"
	"github.com/toppsdigital/cardsync/config"
	"github.com/toppsdigital/cardsync/errors"
)

// Selector is the logical name of a data request category.
type Selector string

const (
	SelectorJobs        Selector = "jobs"
	SelectorJobDetails  Selector = "jobDetails"
	SelectorJobFiles    Selector = "jobFiles"
	SelectorJobAssets   Selector = "jobAssets"
	SelectorDownloadURL Selector = "downloadUrl"
	SelectorBatchJobs   Selector = "batchJobs"
)

// Cache key prefixes per category. The syncer and mutation dispatcher
// scan these to cover every filter variant of a category.
const (
	PrefixJobsList    = "jobs|"
	PrefixJobDetail   = "job|"
	PrefixFiles       = "files|"
	PrefixAssets      = "assets|"
	PrefixDownloadURL = "download|"
	PrefixBatchJobs   = "batch|"
)

// StatusFilter values accepted by the jobs selector.
const (
	StatusFilterInProgress = "in-progress"
	StatusFilterCompleted  = "completed"
)

// Options is the option bag accompanying a selector.
type Options struct {
	JobID         string
	JobIDs        []string
	Mine          bool
	StatusFilter  string // "in-progress" | "completed" | ""
	IncludeFiles  bool
	IncludeAssets bool
	Page          string // console route requesting the data; gates polling
	NoPolling     bool   // disable background refresh for this query only
}

// Request is a resolved selector: a canonical cache key plus everything
// the fetch procedure needs.
type Request struct {
	Selector Selector
	Options  Options
	Key      cache.Key
}

// Resolve maps a selector and options to a canonical request.
// List-valued options are sorted and deduplicated so equivalent requests
// share one cache entry. Missing required options fail fast, before any
// network activity.
func Resolve(sel Selector, opts Options) (Request, error) {
	switch sel {
	case SelectorJobs:
		if opts.StatusFilter != "" &&
			opts.StatusFilter != StatusFilterInProgress &&
			opts.StatusFilter != StatusFilterCompleted {
			return Request{}, errors.NewInvalidRequestError(
				"jobs selector: unknown status filter %q", opts.StatusFilter)
		}
		key := PrefixJobsList + "mine=" + strconv.FormatBool(opts.Mine) + "|status=" + opts.StatusFilter
		return Request{Selector: sel, Options: opts, Key: cache.Key(key)}, nil

	case SelectorJobDetails:
		if opts.JobID == "" {
			return Request{}, errors.NewInvalidRequestError("jobDetails selector requires a job id")
		}
		// Include flags shape the fetch, not the identity: all views of
		// one job share a single detail entry.
		return Request{Selector: sel, Options: opts, Key: cache.Key(PrefixJobDetail + opts.JobID)}, nil

	case SelectorJobFiles:
		if opts.JobID == "" {
			return Request{}, errors.NewInvalidRequestError("jobFiles selector requires a job id")
		}
		return Request{Selector: sel, Options: opts, Key: cache.Key(PrefixFiles + opts.JobID)}, nil

	case SelectorJobAssets:
		if opts.JobID == "" {
			return Request{}, errors.NewInvalidRequestError("jobAssets selector requires a job id")
		}
		return Request{Selector: sel, Options: opts, Key: cache.Key(PrefixAssets + opts.JobID)}, nil

	case SelectorDownloadURL:
		if opts.JobID == "" {
			return Request{}, errors.NewInvalidRequestError("downloadUrl selector requires a job id")
		}
		return Request{Selector: sel, Options: opts, Key: cache.Key(PrefixDownloadURL + opts.JobID)}, nil

	case SelectorBatchJobs:
		if len(opts.JobIDs) == 0 {
			return Request{}, errors.NewInvalidRequestError("batchJobs selector requires at least one job id")
		}
		normalized := normalizeIDs(opts.JobIDs)
		opts.JobIDs = normalized
		key := PrefixBatchJobs + strings.Join(normalized, ",")
		return Request{Selector: sel, Options: opts, Key: cache.Key(key)}, nil

	default:
		return Request{}, errors.NewInvalidRequestError("unknown selector %q", sel)
	}
}

// DetailKey returns the cache key of a job's detail entry.
func DetailKey(jobID string) cache.Key {
	return cache.Key(PrefixJobDetail + jobID)
}

// FilesKey returns the cache key of a job's file-group entry.
func FilesKey(jobID string) cache.Key {
	return cache.Key(PrefixFiles + jobID)
}

// AssetsKey returns the cache key of a job's assets entry.
func AssetsKey(jobID string) cache.Key {
	return cache.Key(PrefixAssets + jobID)
}

// DownloadKey returns the cache key of a job's download-url entry.
func DownloadKey(jobID string) cache.Key {
	return cache.Key(PrefixDownloadURL + jobID)
}

// normalizeIDs sorts and deduplicates a job-id list so order and
// repetition never produce distinct cache entries.
func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Freshness returns the stale/evict windows for the request's category.
func (r Request) Freshness(cfg config.CacheConfig) cache.Freshness {
	seconds := func(stale, evict int) cache.Freshness {
		return cache.Freshness{
			Stale: secondsDuration(stale),
			Evict: secondsDuration(evict),
		}
	}

	switch r.Selector {
	case SelectorJobs:
		return seconds(cfg.JobsListStaleSeconds, cfg.JobsListEvictSeconds)
	case SelectorJobDetails:
		return seconds(cfg.JobDetailStaleSeconds, cfg.JobDetailEvictSeconds)
	case SelectorJobFiles:
		return seconds(cfg.FilesStaleSeconds, cfg.FilesEvictSeconds)
	case SelectorJobAssets:
		return seconds(cfg.AssetsStaleSeconds, cfg.AssetsEvictSeconds)
	case SelectorDownloadURL:
		return seconds(cfg.DownloadURLStaleSeconds, cfg.DownloadURLEvictSeconds)
	case SelectorBatchJobs:
		// Always stale: batch polling exists to refetch every cycle.
		return seconds(0, cfg.BatchJobsEvictSeconds)
	default:
		return cache.Freshness{}
	}
}

func secondsDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}
