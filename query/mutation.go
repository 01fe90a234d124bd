package query

import (
	"github.com/toppsdigital/cardsync/errors"
	"github.com/toppsdigital/cardsync/gateway"
	"github.com/toppsdigital/cardsync/pipeline"
)

// Mutation is the sealed set of write operations the dispatcher
// executes. Each kind carries exactly its required fields and validates
// them before any network call.
type Mutation interface {
	Kind() string
	Validate() error
}

// CreateJob creates a new pipeline job.
type CreateJob struct {
	Data map[string]interface{}
}

func (CreateJob) Kind() string { return "createJob" }
func (m CreateJob) Validate() error {
	if len(m.Data) == 0 {
		return errors.NewInvalidRequestError("createJob requires job data")
	}
	return nil
}

// RerunJob restarts the pipeline for an existing job.
type RerunJob struct {
	JobID string
	Data  map[string]interface{}
}

func (RerunJob) Kind() string { return "rerunJob" }
func (m RerunJob) Validate() error {
	if m.JobID == "" {
		return errors.NewInvalidRequestError("rerunJob requires a job id")
	}
	return nil
}

// UpdateJob applies a partial update to a job.
type UpdateJob struct {
	JobID string
	Data  map[string]interface{}
}

func (UpdateJob) Kind() string { return "updateJob" }
func (m UpdateJob) Validate() error {
	if m.JobID == "" {
		return errors.NewInvalidRequestError("updateJob requires a job id")
	}
	if len(m.Data) == 0 {
		return errors.NewInvalidRequestError("updateJob requires patch data")
	}
	return nil
}

// CreateFiles registers file groups for a job ahead of upload.
type CreateFiles struct {
	JobID string
	Files []pipeline.FileGroup
}

func (CreateFiles) Kind() string { return "createFiles" }
func (m CreateFiles) Validate() error {
	if m.JobID == "" {
		return errors.NewInvalidRequestError("createFiles requires a job id")
	}
	if len(m.Files) == 0 {
		return errors.NewInvalidRequestError("createFiles requires at least one file group")
	}
	return nil
}

// BatchGetFiles fetches file groups by group key. Read-only; carried as
// a mutation because callers dispatch it alongside the write flows.
type BatchGetFiles struct {
	Filenames []string
}

func (BatchGetFiles) Kind() string { return "batchGetFiles" }
func (m BatchGetFiles) Validate() error {
	if len(m.Filenames) == 0 {
		return errors.NewInvalidRequestError("batchGetFiles requires at least one filename")
	}
	return nil
}

// UpdateFile replaces one file group.
type UpdateFile struct {
	JobID string
	File  pipeline.FileGroup
}

func (UpdateFile) Kind() string { return "updateFile" }
func (m UpdateFile) Validate() error {
	if m.JobID == "" {
		return errors.NewInvalidRequestError("updateFile requires a job id")
	}
	if m.File.Filename == "" {
		return errors.NewInvalidRequestError("updateFile requires a filename")
	}
	return nil
}

// UpdatePDFFileStatus updates the status of one physical PDF.
type UpdatePDFFileStatus struct {
	JobID       string
	Filename    string
	PDFFilename string
	Status      pipeline.FileStatus
}

func (UpdatePDFFileStatus) Kind() string { return "updatePdfFileStatus" }
func (m UpdatePDFFileStatus) Validate() error {
	if m.JobID == "" || m.Filename == "" || m.PDFFilename == "" {
		return errors.NewInvalidRequestError("updatePdfFileStatus requires job id, filename, and pdf filename")
	}
	if m.Status == "" {
		return errors.NewInvalidRequestError("updatePdfFileStatus requires a status")
	}
	return nil
}

// BatchUpdatePDFFileStatus applies many PDF status updates at once.
type BatchUpdatePDFFileStatus struct {
	JobID   string
	Updates []gateway.PDFStatusUpdate
}

func (BatchUpdatePDFFileStatus) Kind() string { return "batchUpdatePdfFileStatus" }
func (m BatchUpdatePDFFileStatus) Validate() error {
	if m.JobID == "" {
		return errors.NewInvalidRequestError("batchUpdatePdfFileStatus requires a job id")
	}
	if len(m.Updates) == 0 {
		return errors.NewInvalidRequestError("batchUpdatePdfFileStatus requires at least one update")
	}
	return nil
}

// CreateAsset adds an asset configuration to a job.
type CreateAsset struct {
	JobID string
	Asset pipeline.AssetConfig
}

func (CreateAsset) Kind() string { return "createAsset" }
func (m CreateAsset) Validate() error {
	if m.JobID == "" {
		return errors.NewInvalidRequestError("createAsset requires a job id")
	}
	return m.Asset.Validate()
}

// UpdateAsset replaces one asset configuration.
type UpdateAsset struct {
	JobID   string
	AssetID string
	Asset   pipeline.AssetConfig
}

func (UpdateAsset) Kind() string { return "updateAsset" }
func (m UpdateAsset) Validate() error {
	if m.JobID == "" || m.AssetID == "" {
		return errors.NewInvalidRequestError("updateAsset requires job id and asset id")
	}
	return m.Asset.Validate()
}

// DeleteAsset removes one asset configuration.
type DeleteAsset struct {
	JobID   string
	AssetID string
}

func (DeleteAsset) Kind() string { return "deleteAsset" }
func (m DeleteAsset) Validate() error {
	if m.JobID == "" || m.AssetID == "" {
		return errors.NewInvalidRequestError("deleteAsset requires job id and asset id")
	}
	return nil
}

// BulkUpdateAssets replaces a job's entire assets mapping.
type BulkUpdateAssets struct {
	JobID  string
	Assets map[string]pipeline.AssetConfig
}

func (BulkUpdateAssets) Kind() string { return "bulkUpdateAssets" }
func (m BulkUpdateAssets) Validate() error {
	if m.JobID == "" {
		return errors.NewInvalidRequestError("bulkUpdateAssets requires a job id")
	}
	return nil
}

// GenerateAssets starts asset generation from a PSD.
type GenerateAssets struct {
	JobID   string
	Assets  map[string]pipeline.AssetConfig
	PSDFile string
}

func (GenerateAssets) Kind() string { return "generateAssets" }
func (m GenerateAssets) Validate() error {
	if m.JobID == "" {
		return errors.NewInvalidRequestError("generateAssets requires a job id")
	}
	if m.PSDFile == "" {
		return errors.NewInvalidRequestError("generateAssets requires a psd file")
	}
	return nil
}

// RegenerateAssets re-runs generation with stored configuration.
type RegenerateAssets struct {
	JobID string
}

func (RegenerateAssets) Kind() string { return "regenerateAssets" }
func (m RegenerateAssets) Validate() error {
	if m.JobID == "" {
		return errors.NewInvalidRequestError("regenerateAssets requires a job id")
	}
	return nil
}

// ExtractPDFData requests layer extraction for a job's uploaded PDFs.
type ExtractPDFData struct {
	JobID   string
	Payload map[string]interface{}
}

func (ExtractPDFData) Kind() string { return "extractPdfData" }
func (m ExtractPDFData) Validate() error {
	if m.JobID == "" {
		return errors.NewInvalidRequestError("extractPdfData requires a job id")
	}
	return nil
}

// RefreshDownloadURL requests a fresh folder-download grant.
type RefreshDownloadURL struct {
	JobID string
}

func (RefreshDownloadURL) Kind() string { return "refreshDownloadUrl" }
func (m RefreshDownloadURL) Validate() error {
	if m.JobID == "" {
		return errors.NewInvalidRequestError("refreshDownloadUrl requires a job id")
	}
	return nil
}
