package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/toppsdigital/cardsync/errors"
	"github.com/toppsdigital/cardsync/pipeline"
)

// AssetsResponse is the assets envelope. An empty Assets map is a valid
// result: it means the job has no generated assets (yet, or all deleted).
type AssetsResponse struct {
	JobID  string                          `json:"job_id"`
	Assets map[string]pipeline.AssetConfig `json:"assets"`
}

// ListAssets returns all asset configurations for a job.
//
// A 404 whose message contains "No assets found" is the backend's way of
// saying the job simply has none; it is reclassified as a success with an
// empty map rather than surfaced as an error.
func (c *Client) ListAssets(ctx context.Context, jobID string) (*AssetsResponse, error) {
	if jobID == "" {
		return nil, errors.NewInvalidRequestError("list assets requires a job id")
	}

	var out AssetsResponse
	err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID)+"/assets", nil, nil, &out)
	if err != nil {
		if errors.IsNoAssetsFound(err) {
			return &AssetsResponse{JobID: jobID, Assets: map[string]pipeline.AssetConfig{}}, nil
		}
		return nil, errors.Wrapf(err, "failed to list assets for job %s", jobID)
	}
	if out.Assets == nil {
		out.Assets = map[string]pipeline.AssetConfig{}
	}
	if out.JobID == "" {
		out.JobID = jobID
	}
	return &out, nil
}

// CreateAsset adds an asset configuration to a job. The server assigns
// the asset id and returns the job's full resulting assets map.
func (c *Client) CreateAsset(ctx context.Context, jobID string, asset pipeline.AssetConfig) (*AssetsResponse, error) {
	if jobID == "" {
		return nil, errors.NewInvalidRequestError("create asset requires a job id")
	}
	if err := asset.Validate(); err != nil {
		return nil, err
	}

	var out AssetsResponse
	if err := c.do(ctx, http.MethodPost, "/jobs/"+url.PathEscape(jobID)+"/assets", nil, asset, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to create asset for job %s", jobID)
	}
	return &out, nil
}

// UpdateAsset replaces one asset configuration.
func (c *Client) UpdateAsset(ctx context.Context, jobID, assetID string, asset pipeline.AssetConfig) (*AssetsResponse, error) {
	if jobID == "" || assetID == "" {
		return nil, errors.NewInvalidRequestError("update asset requires job id and asset id")
	}
	if err := asset.Validate(); err != nil {
		return nil, err
	}

	var out AssetsResponse
	path := "/jobs/" + url.PathEscape(jobID) + "/assets/" + url.PathEscape(assetID)
	if err := c.do(ctx, http.MethodPut, path, nil, asset, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to update asset %s", assetID)
	}
	return &out, nil
}

// DeleteAsset removes one asset configuration. The returned assets map
// reflects the job after deletion and may be empty.
func (c *Client) DeleteAsset(ctx context.Context, jobID, assetID string) (*AssetsResponse, error) {
	if jobID == "" || assetID == "" {
		return nil, errors.NewInvalidRequestError("delete asset requires job id and asset id")
	}

	var out AssetsResponse
	path := "/jobs/" + url.PathEscape(jobID) + "/assets/" + url.PathEscape(assetID)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to delete asset %s", assetID)
	}
	if out.Assets == nil {
		out.Assets = map[string]pipeline.AssetConfig{}
	}
	return &out, nil
}

// BulkUpdateAssets replaces a job's entire assets mapping.
func (c *Client) BulkUpdateAssets(ctx context.Context, jobID string, assets map[string]pipeline.AssetConfig) (*AssetsResponse, error) {
	if jobID == "" {
		return nil, errors.NewInvalidRequestError("bulk update assets requires a job id")
	}
	for id, asset := range assets {
		if err := asset.Validate(); err != nil {
			return nil, errors.Wrapf(err, "asset %s invalid", id)
		}
	}

	body := map[string]interface{}{"assets": assets}
	var out AssetsResponse
	if err := c.do(ctx, http.MethodPut, "/jobs/"+url.PathEscape(jobID)+"/assets", nil, body, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to bulk update assets for job %s", jobID)
	}
	return &out, nil
}

// GenerateAssets kicks off generation of the configured assets from the
// given PSD. This transitions the job's status server-side.
func (c *Client) GenerateAssets(ctx context.Context, jobID string, assets map[string]pipeline.AssetConfig, psdFile string) error {
	if jobID == "" {
		return errors.NewInvalidRequestError("generate assets requires a job id")
	}
	if psdFile == "" {
		return errors.NewInvalidRequestError("generate assets requires a psd file")
	}

	body := map[string]interface{}{
		"assets":   assets,
		"psd_file": psdFile,
	}
	if err := c.do(ctx, http.MethodPost, "/jobs/"+url.PathEscape(jobID)+"/generate", nil, body, nil); err != nil {
		return errors.Wrapf(err, "failed to generate assets for job %s", jobID)
	}
	return nil
}

// RegenerateAssets re-runs generation with the job's stored configuration.
func (c *Client) RegenerateAssets(ctx context.Context, jobID string) error {
	if jobID == "" {
		return errors.NewInvalidRequestError("regenerate assets requires a job id")
	}

	if err := c.do(ctx, http.MethodPost, "/jobs/"+url.PathEscape(jobID)+"/regenerate", nil, nil, nil); err != nil {
		return errors.Wrapf(err, "failed to regenerate assets for job %s", jobID)
	}
	return nil
}
