package pipeline

// FileStatus tracks the processing state of one physical or derived file.
type FileStatus string

const (
	FileStatusUploading  FileStatus = "uploading"
	FileStatusUploaded   FileStatus = "uploaded"
	FileStatusFailed     FileStatus = "upload-failed"
	FileStatusExtracting FileStatus = "extracting"
	FileStatusExtracted  FileStatus = "extracted"
	FileStatusGenerated  FileStatus = "generated"
)

// OriginalFile is one physical scan within a file group (e.g. the front
// or back PDF of a card).
type OriginalFile struct {
	CardType string     `json:"card_type,omitempty"` // "front" | "back"
	Status   FileStatus `json:"status"`
}

// ExtractedFile is one layer produced by PDF extraction.
type ExtractedFile struct {
	LayerType string     `json:"layer_type,omitempty"`
	Status    FileStatus `json:"status"`
	FilePath  string     `json:"file_path,omitempty"`
}

// FireflyAsset is one generated digital asset file.
type FireflyAsset struct {
	Status   FileStatus `json:"status"`
	CardType string     `json:"card_type,omitempty"`
	FilePath string     `json:"file_path,omitempty"`
}

// FileGroup is the unit the pipeline tracks per card: the physical
// scans sharing one group key (the card name), the layers extracted
// from them, and the assets generated from those layers.
//
// A group belongs to exactly one job. Updates replace the whole group
// object in every cache that embeds it.
type FileGroup struct {
	Filename       string                   `json:"filename"` // group key
	JobID          string                   `json:"job_id,omitempty"`
	LastUpdated    string                   `json:"last_updated,omitempty"`
	OriginalFiles  map[string]OriginalFile  `json:"original_files,omitempty"`
	ExtractedFiles map[string]ExtractedFile `json:"extracted_files,omitempty"`
	FireflyAssets  map[string]FireflyAsset  `json:"firefly_assets,omitempty"`
}

// Clone returns a deep copy of the file group.
func (f FileGroup) Clone() FileGroup {
	out := f
	if f.OriginalFiles != nil {
		out.OriginalFiles = make(map[string]OriginalFile, len(f.OriginalFiles))
		for k, v := range f.OriginalFiles {
			out.OriginalFiles[k] = v
		}
	}
	if f.ExtractedFiles != nil {
		out.ExtractedFiles = make(map[string]ExtractedFile, len(f.ExtractedFiles))
		for k, v := range f.ExtractedFiles {
			out.ExtractedFiles[k] = v
		}
	}
	if f.FireflyAssets != nil {
		out.FireflyAssets = make(map[string]FireflyAsset, len(f.FireflyAssets))
		for k, v := range f.FireflyAssets {
			out.FireflyAssets[k] = v
		}
	}
	return out
}
