package ingest

import (
	"context"

	"github.com/joseph-ayodele/tradedocs/constants"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string            `json:"source_path"`
	JobID        string            `json:"job_id,omitempty"`
	DocType      constants.DocType `json:"doc_type,omitempty"`
	Deduplicated bool              `json:"deduplicated"`
	HashHex      string            `json:"hash,omitempty"`
	Err          string            `json:"error,omitempty"`
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor queues documents found on disk for validation.
type Ingestor interface {
	// IngestPath queues a single file. An empty docType is inferred from the path.
	IngestPath(ctx context.Context, path string, docType constants.DocType) (IngestionResult, error)
	// IngestDirectory queues all matching files under root.
	IngestDirectory(ctx context.Context, root string, docType constants.DocType, skipHidden bool) ([]IngestionResult, DirStats, error)
}
