package gateway

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/toppsdigital/cardsync/errors"
	"github.com/toppsdigital/cardsync/pipeline"
)

// downloadURLResponse is the raw wire shape of a folder-download grant.
type downloadURLResponse struct {
	DownloadURL string `json:"download_url"`
	ExpiresIn   int    `json:"expires_in"` // seconds
}

// FolderDownloadURL requests a fresh time-limited S3 download URL for a
// job's output folder. Expiry is computed client-side from the
// server-supplied TTL.
func (c *Client) FolderDownloadURL(ctx context.Context, jobID string) (*pipeline.DownloadURLInfo, error) {
	if jobID == "" {
		return nil, errors.NewInvalidRequestError("folder download requires a job id")
	}

	var out downloadURLResponse
	if err := c.do(ctx, http.MethodPost, "/jobs/"+url.PathEscape(jobID)+"/download", nil, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to get download url for job %s", jobID)
	}
	if out.DownloadURL == "" {
		return nil, errors.Newf("gateway returned empty download url for job %s", jobID)
	}

	now := time.Now()
	return &pipeline.DownloadURLInfo{
		JobID:     jobID,
		URL:       out.DownloadURL,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(out.ExpiresIn) * time.Second),
	}, nil
}
