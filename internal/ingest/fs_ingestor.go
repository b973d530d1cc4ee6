package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/tradedocs/constants"
	"github.com/joseph-ayodele/tradedocs/internal/async"
	"github.com/joseph-ayodele/tradedocs/internal/common"
)

// FSIngestor reads from the local filesystem and queues validation jobs.
// Files are deduplicated by content hash for the lifetime of the ingestor.
type FSIngestor struct {
	Queue  async.Queue
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]string // sha256 hex -> job id
}

func NewFSIngestor(q async.Queue, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{
		Queue:  q,
		logger: logger,
		seen:   make(map[string]string),
	}
}

func (i *FSIngestor) IngestPath(ctx context.Context, path string, docType constants.DocType) (IngestionResult, error) {
	var out IngestionResult

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext) {
		return out, common.UnsupportedFormatError(fmt.Sprintf("unsupported or missing extension: %q", ext))
	}

	if docType == "" {
		dt, ok := DocTypeFromPath(abs)
		if !ok {
			return out, common.InvalidInputError("cannot infer document type from " + abs)
		}
		docType = dt
	}

	sum, err := hashFile(abs)
	if err != nil {
		return out, err
	}
	hexHash := hex.EncodeToString(sum)

	out = IngestionResult{SourcePath: abs, DocType: docType, HashHex: hexHash}

	i.mu.Lock()
	if id, dup := i.seen[hexHash]; dup {
		i.mu.Unlock()
		out.JobID = id
		out.Deduplicated = true
		i.logger.Debug("ingest.dedup", "path", abs, "job_id", id)
		return out, nil
	}
	id := uuid.NewString()
	i.seen[hexHash] = id
	i.mu.Unlock()

	job := async.Job{
		ID:          id,
		Path:        abs,
		DocType:     docType,
		HashHex:     hexHash,
		SubmittedAt: time.Now().UTC(),
		TraceID:     common.RequestIDFromContext(ctx),
	}
	if err := i.Queue.Enqueue(ctx, job); err != nil {
		i.forget(hexHash)
		return out, fmt.Errorf("enqueue: %w", err)
	}
	out.JobID = id
	return out, nil
}

func (i *FSIngestor) forget(hexHash string) {
	i.mu.Lock()
	delete(i.seen, hexHash)
	i.mu.Unlock()
}

// IngestDirectory walks root, skips hidden if requested,
// and calls IngestPath for each file. Returns per-file results + aggregate stats.
func (i *FSIngestor) IngestDirectory(
	ctx context.Context,
	root string,
	docType constants.DocType,
	skipHidden bool,
) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path, docType)
		if err != nil {
			i.logger.Warn("ingest.failed", "path", path, "error", err)
			results = append(results, IngestionResult{SourcePath: path, Err: err.Error()})
			stats.Failed++
			return nil
		}

		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})

	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	i.logger.Info("ingest.directory",
		"root", root,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return results, stats, nil
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("hash: %w", err)
	}
	return h.Sum(nil), nil
}
