package query

import (
	"math"
	"time"

	"github.com/toppsdigital/cardsync/config"
	"github.com/toppsdigital/cardsync/gateway"
	"github.com/toppsdigital/cardsync/pipeline"
)

// NextInterval decides whether and when a query should refetch, given
// the latest committed value. Returns (interval, true) to schedule
// another fetch, or (0, false) to stop polling.
//
// Rules, in priority order:
//  1. Polling disabled globally, disabled for this query, or the
//     requesting page is not on the allow-list: stop.
//  2. jobs list: always the configured list interval; list polling is
//     status-independent.
//  3. jobDetails: terminal job stops permanently; assets requested but
//     still empty backs off to reduce not-found round trips; otherwise
//     the base job interval.
//  4. batchJobs: stop once every job in the batch is terminal.
//  5. anything else: no polling.
func NextInterval(req Request, latest interface{}, cfg *config.Config) (time.Duration, bool) {
	polling := cfg.Polling
	if !polling.Enabled || req.Options.NoPolling || !polling.PageAllowed(req.Options.Page) {
		return 0, false
	}

	switch req.Selector {
	case SelectorJobs:
		return polling.JobsListInterval(), true

	case SelectorJobDetails:
		job, ok := latest.(pipeline.Job)
		if !ok {
			return polling.JobInterval(), true
		}
		if job.JobStatus.IsTerminal() {
			return 0, false
		}
		if req.Options.IncludeAssets && job.JobStatus.AssetsReady() && len(job.Assets) == 0 {
			return polling.EmptyAssetsBackoff(), true
		}
		return polling.JobInterval(), true

	case SelectorBatchJobs:
		batch, ok := latest.(gateway.BatchJobsResponse)
		if !ok {
			return polling.JobInterval(), true
		}
		if len(batch.Jobs) > 0 && allTerminal(batch.Jobs) {
			return 0, false
		}
		return polling.JobInterval(), true

	default:
		return 0, false
	}
}

func allTerminal(jobs []pipeline.Job) bool {
	for _, job := range jobs {
		if !job.JobStatus.IsTerminal() {
			return false
		}
	}
	return true
}

// RetryDelay computes the exponential backoff delay for a failed fetch:
// min(base * multiplier^attempt, max). Attempt counts from zero.
func RetryDelay(attempt int, cfg config.RetryConfig) time.Duration {
	base := float64(cfg.BaseDelayMS)
	if base <= 0 {
		base = 1000
	}
	multiplier := cfg.Multiplier
	if multiplier <= 0 {
		multiplier = 1.5
	}
	maxDelay := float64(cfg.MaxDelayMS)
	if maxDelay <= 0 {
		maxDelay = 30000
	}

	delay := base * math.Pow(multiplier, float64(attempt))
	if delay > maxDelay {
		delay = maxDelay
	}
	return time.Duration(delay) * time.Millisecond
}
