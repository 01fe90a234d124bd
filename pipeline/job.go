// Package pipeline defines the domain model of the physical-to-digital
// content pipeline: jobs, their file groups, and generated asset
// configurations.
package pipeline

import (
	"strings"
	"time"
)

// JobStatus represents the lifecycle state of a pipeline job.
// Status strings are case-insensitive on the wire; use ParseStatus.
type JobStatus string

const (
	StatusUploading        JobStatus = "uploading"
	StatusUploaded         JobStatus = "uploaded"
	StatusUploadFailed     JobStatus = "upload-failed"
	StatusExtracting       JobStatus = "extracting"
	StatusExtracted        JobStatus = "extracted"
	StatusExtractionFailed JobStatus = "extraction-failed"
	StatusGenerating       JobStatus = "generating"
	StatusGenerationFailed JobStatus = "generation-failed"
	StatusCompleted        JobStatus = "completed"
)

// ParseStatus normalizes a wire status string to a JobStatus.
// Unknown statuses are returned lowercased rather than rejected, so a
// newly introduced backend status degrades to pollable instead of
// breaking list rendering.
func ParseStatus(s string) JobStatus {
	return JobStatus(strings.ToLower(strings.TrimSpace(s)))
}

// IsValidStatus returns true if the status string is a known JobStatus
func IsValidStatus(s string) bool {
	switch ParseStatus(s) {
	case StatusUploading, StatusUploaded, StatusUploadFailed,
		StatusExtracting, StatusExtracted, StatusExtractionFailed,
		StatusGenerating, StatusGenerationFailed, StatusCompleted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further change is expected for this
// status. Only completed jobs are terminal: failed statuses may recover
// or be retried, so they remain eligible for polling.
func (s JobStatus) IsTerminal() bool {
	return ParseStatus(string(s)) == StatusCompleted
}

// IsFailed reports whether the status is one of the failure branches.
func (s JobStatus) IsFailed() bool {
	switch ParseStatus(string(s)) {
	case StatusUploadFailed, StatusExtractionFailed, StatusGenerationFailed:
		return true
	default:
		return false
	}
}

// AssetsReady reports whether generated assets may exist for a job in
// this status. Asset lookups before extraction finishes produce spurious
// not-found errors, so callers gate on this predicate.
func (s JobStatus) AssetsReady() bool {
	switch ParseStatus(string(s)) {
	case StatusExtracted, StatusGenerating, StatusGenerationFailed, StatusCompleted:
		return true
	default:
		return false
	}
}

// Job represents a unit of work tracked through
// upload -> extraction -> generation -> completion.
//
// The gateway embeds the job's file groups in the detail response as
// content_pipeline_files; the assets map is populated separately once
// the job reaches an assets-ready status.
type Job struct {
	JobID                string                 `json:"job_id"`
	JobStatus            JobStatus              `json:"job_status"`
	CreatedAt            string                 `json:"created_at"`
	LastUpdated          string                 `json:"last_updated,omitempty"`
	Description          string                 `json:"description,omitempty"`
	SourceFolder         string                 `json:"source_folder,omitempty"`
	Files                []string               `json:"files,omitempty"`
	Assets               map[string]AssetConfig `json:"assets,omitempty"`
	ContentPipelineFiles []FileGroup            `json:"content_pipeline_files,omitempty"`
	DownloadURL          string                 `json:"download_url,omitempty"`
	DownloadURLExpires   string                 `json:"download_url_expires,omitempty"`
	DownloadURLCreated   string                 `json:"download_url_created,omitempty"`
	UserID               string                 `json:"user_id,omitempty"`
	UserName             string                 `json:"user_name,omitempty"`
}

// Clone returns a deep copy of the job. Cache writes replace whole
// objects, never mutate in place, so patches operate on clones.
func (j Job) Clone() Job {
	out := j
	if j.Files != nil {
		out.Files = append([]string(nil), j.Files...)
	}
	if j.Assets != nil {
		out.Assets = make(map[string]AssetConfig, len(j.Assets))
		for id, a := range j.Assets {
			out.Assets[id] = a.Clone()
		}
	}
	if j.ContentPipelineFiles != nil {
		out.ContentPipelineFiles = make([]FileGroup, len(j.ContentPipelineFiles))
		for i, f := range j.ContentPipelineFiles {
			out.ContentPipelineFiles[i] = f.Clone()
		}
	}
	return out
}

// DownloadURLInfo is a time-limited S3 folder download link.
type DownloadURLInfo struct {
	JobID     string    `json:"job_id"`
	URL       string    `json:"download_url"`
	CreatedAt time.Time `json:"download_url_created"`
	ExpiresAt time.Time `json:"download_url_expires"`
}

// FreshFor reports whether the URL remains valid for at least d beyond now.
func (u DownloadURLInfo) FreshFor(now time.Time, d time.Duration) bool {
	return u.URL != "" && u.ExpiresAt.After(now.Add(d))
}
