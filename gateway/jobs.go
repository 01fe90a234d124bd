package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/toppsdigital/cardsync/errors"
	"github.com/toppsdigital/cardsync/pipeline"
)

// ListJobsParams filters the jobs listing.
type ListJobsParams struct {
	MyJobs bool
	Status string // "in-progress" | "completed" | ""
	Page   int
	Limit  int
}

// ListJobsResponse is the jobs listing envelope.
type ListJobsResponse struct {
	Jobs  []pipeline.Job `json:"jobs"`
	Total int            `json:"total,omitempty"`
}

// ListJobs returns jobs matching the given filters.
func (c *Client) ListJobs(ctx context.Context, params ListJobsParams) (*ListJobsResponse, error) {
	query := url.Values{}
	if params.MyJobs {
		query.Set("my_jobs", "true")
	}
	if params.Status != "" {
		query.Set("status", params.Status)
	}
	if params.Page > 0 {
		query.Set("page", strconv.Itoa(params.Page))
	}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}

	var out ListJobsResponse
	if err := c.do(ctx, http.MethodGet, "/jobs", query, nil, &out); err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	return &out, nil
}

// GetJob fetches one job by id, with its embedded file groups.
func (c *Client) GetJob(ctx context.Context, jobID string) (*pipeline.Job, error) {
	if jobID == "" {
		return nil, errors.NewInvalidRequestError("get job requires a job id")
	}

	var out pipeline.Job
	if err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID), nil, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to get job %s", jobID)
	}
	return &out, nil
}

// CreateJob creates a new job. The server assigns the job id and the
// initial "uploading" status.
func (c *Client) CreateJob(ctx context.Context, payload map[string]interface{}) (*pipeline.Job, error) {
	var out pipeline.Job
	if err := c.do(ctx, http.MethodPost, "/jobs", nil, payload, &out); err != nil {
		return nil, errors.Wrap(err, "failed to create job")
	}
	return &out, nil
}

// UpdateJob applies a partial update to a job.
func (c *Client) UpdateJob(ctx context.Context, jobID string, patch map[string]interface{}) (*pipeline.Job, error) {
	if jobID == "" {
		return nil, errors.NewInvalidRequestError("update job requires a job id")
	}

	var out pipeline.Job
	if err := c.do(ctx, http.MethodPatch, "/jobs/"+url.PathEscape(jobID), nil, patch, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to update job %s", jobID)
	}
	return &out, nil
}

// RerunJob restarts the pipeline for an existing job.
func (c *Client) RerunJob(ctx context.Context, jobID string, payload map[string]interface{}) (*pipeline.Job, error) {
	if jobID == "" {
		return nil, errors.NewInvalidRequestError("rerun job requires a job id")
	}

	var out pipeline.Job
	if err := c.do(ctx, http.MethodPost, "/jobs/"+url.PathEscape(jobID)+"/rerun", nil, payload, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to rerun job %s", jobID)
	}
	return &out, nil
}

// BatchJobsResponse reports the jobs found in one batch round trip.
type BatchJobsResponse struct {
	Jobs           []pipeline.Job `json:"jobs"`
	FoundCount     int            `json:"found_count"`
	NotFoundJobIDs []string       `json:"not_found_job_ids,omitempty"`
}

// BatchGetJobs fetches many jobs by id in a single round trip.
func (c *Client) BatchGetJobs(ctx context.Context, jobIDs []string) (*BatchJobsResponse, error) {
	if len(jobIDs) == 0 {
		return nil, errors.NewInvalidRequestError("batch get jobs requires at least one job id")
	}

	body := map[string]interface{}{"job_ids": jobIDs}
	var out BatchJobsResponse
	if err := c.do(ctx, http.MethodPost, "/jobs/batch", nil, body, &out); err != nil {
		return nil, errors.Wrap(err, "failed to batch get jobs")
	}
	return &out, nil
}
