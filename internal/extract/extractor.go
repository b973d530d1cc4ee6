package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/tradedocs/constants"
	"github.com/joseph-ayodele/tradedocs/internal/common"
)

// Extractor validates a raw document and runs it through one Backend.
// No retries are attempted; upstream failures surface as ExtractionServiceError.
type Extractor struct {
	backend   Backend
	logger    *slog.Logger
	pageCount func([]byte) (int, error)
}

func NewExtractor(backend Backend, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{backend: backend, logger: logger, pageCount: pdfPageCount}
}

// Extract turns document bytes into a Document. Unsupported MIME types or
// document types and empty payloads are rejected before any upstream call.
func (e *Extractor) Extract(ctx context.Context, req Request) (Document, error) {
	start := time.Now()
	mt := constants.NormalizeMIME(req.MIMEType)

	if !constants.IsSupportedMIME(mt) {
		e.logger.Warn("extract.unsupported_format", "mime_type", req.MIMEType, "filename", req.Filename)
		return Document{}, common.UnsupportedFormatError(fmt.Sprintf("unsupported MIME type %q: expected pdf, jpeg, png or tiff", req.MIMEType))
	}
	if _, ok := constants.Canonicalize(string(req.DocType)); !ok {
		e.logger.Warn("extract.unsupported_doc_type", "doc_type", req.DocType)
		return Document{}, common.UnsupportedFormatError(fmt.Sprintf("unsupported document type %q", req.DocType))
	}
	if len(req.Data) == 0 {
		e.logger.Warn("extract.empty_document", "filename", req.Filename)
		return Document{}, common.EmptyDocumentError("the uploaded document is empty")
	}
	docType, _ := constants.Canonicalize(string(req.DocType))
	req.DocType = docType
	req.MIMEType = mt

	pages := 0
	if mt == constants.MIMEPDF {
		n, err := e.pageCount(req.Data)
		if err != nil {
			// the upstream service is authoritative on PDF validity
			e.logger.Warn("extract.pdf_inspect_failed", "filename", req.Filename, "error", err)
		} else {
			pages = n
		}
	}

	e.logger.Info("extract.start",
		"backend", e.backend.Name(),
		"doc_type", docType,
		"mime_type", mt,
		"bytes", len(req.Data),
		"pages", pages,
	)

	res, err := e.backend.Analyze(ctx, req)
	if err != nil {
		e.logger.Error("extract.backend_failed",
			"backend", e.backend.Name(),
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		var ae *common.AppError
		if errors.As(err, &ae) {
			return Document{}, err
		}
		return Document{}, common.ExtractionServiceError(err)
	}

	if res.Pages > 0 {
		pages = res.Pages
	}
	doc := Document{
		DocType:  docType,
		MIMEType: mt,
		Filename: req.Filename,
		Fields:   BuildFields(res.Pairs),
		Lines:    res.Lines,
		Pages:    pages,
		Backend:  e.backend.Name(),
		Duration: time.Since(start),
	}
	e.logger.Info("extract.ok",
		"backend", doc.Backend,
		"fields", len(doc.Fields),
		"lines", len(doc.Lines),
		"pages", doc.Pages,
		"elapsed_ms", doc.Duration.Milliseconds(),
	)
	return doc, nil
}
