package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/toppsdigital/cardsync/errors"
	"github.com/toppsdigital/cardsync/pipeline"
)

// FilesResponse is the file-group listing envelope.
type FilesResponse struct {
	Files []pipeline.FileGroup `json:"files"`
}

// GetJobFiles fetches all file groups belonging to a job.
func (c *Client) GetJobFiles(ctx context.Context, jobID string) (*FilesResponse, error) {
	if jobID == "" {
		return nil, errors.NewInvalidRequestError("get job files requires a job id")
	}

	var out FilesResponse
	if err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID)+"/files", nil, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to get files for job %s", jobID)
	}
	return &out, nil
}

// BatchGetFiles fetches file groups by group key in one round trip.
func (c *Client) BatchGetFiles(ctx context.Context, filenames []string) (*FilesResponse, error) {
	if len(filenames) == 0 {
		return nil, errors.NewInvalidRequestError("batch get files requires at least one filename")
	}

	body := map[string]interface{}{"filenames": filenames}
	var out FilesResponse
	if err := c.do(ctx, http.MethodPost, "/files/batch", nil, body, &out); err != nil {
		return nil, errors.Wrap(err, "failed to batch get files")
	}
	return &out, nil
}

// CreateFiles registers file groups for a job ahead of upload.
func (c *Client) CreateFiles(ctx context.Context, jobID string, files []pipeline.FileGroup) (*FilesResponse, error) {
	if jobID == "" {
		return nil, errors.NewInvalidRequestError("create files requires a job id")
	}
	if len(files) == 0 {
		return nil, errors.NewInvalidRequestError("create files requires at least one file group")
	}

	body := map[string]interface{}{"files": files}
	var out FilesResponse
	if err := c.do(ctx, http.MethodPost, "/jobs/"+url.PathEscape(jobID)+"/files", nil, body, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to create files for job %s", jobID)
	}
	return &out, nil
}

// FileResponse carries a single updated file group. File may be nil when
// the backend omits the updated object, in which case callers fall back
// to invalidation.
type FileResponse struct {
	File *pipeline.FileGroup `json:"file,omitempty"`
}

// UpdateFile replaces one file group.
func (c *Client) UpdateFile(ctx context.Context, group pipeline.FileGroup) (*FileResponse, error) {
	if group.Filename == "" {
		return nil, errors.NewInvalidRequestError("update file requires a filename")
	}

	var out FileResponse
	if err := c.do(ctx, http.MethodPut, "/files/"+url.PathEscape(group.Filename), nil, group, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to update file %s", group.Filename)
	}
	return &out, nil
}

// UpdatePDFStatus updates the status of one physical PDF inside a group.
func (c *Client) UpdatePDFStatus(ctx context.Context, jobID, filename, pdfFilename string, status pipeline.FileStatus) (*FileResponse, error) {
	if jobID == "" || filename == "" || pdfFilename == "" {
		return nil, errors.NewInvalidRequestError("update pdf status requires job id, filename, and pdf filename")
	}

	body := map[string]interface{}{
		"job_id":       jobID,
		"filename":     filename,
		"pdf_filename": pdfFilename,
		"status":       status,
	}
	var out FileResponse
	if err := c.do(ctx, http.MethodPost, "/files/pdf-status", nil, body, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to update pdf status for %s", pdfFilename)
	}
	return &out, nil
}

// PDFStatusUpdate is one entry of a batch PDF status update.
type PDFStatusUpdate struct {
	Filename    string              `json:"filename"`
	PDFFilename string              `json:"pdf_filename"`
	Status      pipeline.FileStatus `json:"status"`
}

// BatchUpdatePDFStatus applies many PDF status updates in one call.
func (c *Client) BatchUpdatePDFStatus(ctx context.Context, jobID string, updates []PDFStatusUpdate) (*FilesResponse, error) {
	if jobID == "" {
		return nil, errors.NewInvalidRequestError("batch update pdf status requires a job id")
	}
	if len(updates) == 0 {
		return nil, errors.NewInvalidRequestError("batch update pdf status requires at least one update")
	}

	body := map[string]interface{}{
		"job_id":  jobID,
		"updates": updates,
	}
	var out FilesResponse
	if err := c.do(ctx, http.MethodPost, "/files/pdf-status/batch", nil, body, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to batch update pdf status for job %s", jobID)
	}
	return &out, nil
}

// ExtractPDFData asks the pipeline to (re-)extract layers from uploaded PDFs.
func (c *Client) ExtractPDFData(ctx context.Context, payload map[string]interface{}) error {
	if err := c.do(ctx, http.MethodPost, "/extract", nil, payload, nil); err != nil {
		return errors.Wrap(err, "failed to request pdf extraction")
	}
	return nil
}
