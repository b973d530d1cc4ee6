package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/tradedocs/constants"
	"github.com/joseph-ayodele/tradedocs/internal/ocr"
)

// Recognizer is the local OCR engine the adapter drives.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (ocr.Result, error)
}

// OCRAdapter is a Backend that runs local tesseract OCR on images and reads
// "Label: value" lines as fields. It cannot rasterize PDFs.
type OCRAdapter struct {
	engine Recognizer
	logger *slog.Logger
}

func NewOCRAdapter(engine Recognizer, logger *slog.Logger) *OCRAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRAdapter{engine: engine, logger: logger}
}

func (a *OCRAdapter) Name() string { return "tesseract" }

func (a *OCRAdapter) Analyze(ctx context.Context, req Request) (Analysis, error) {
	if constants.NormalizeMIME(req.MIMEType) == constants.MIMEPDF {
		return Analysis{}, fmt.Errorf("local OCR backend does not rasterize PDFs; use the azure backend")
	}
	res, err := a.engine.Recognize(ctx, req.Data)
	if err != nil {
		return Analysis{}, err
	}
	a.logger.Debug("extract.ocr.recognized", "chars", len(res.Text), "confidence", res.Confidence)
	return Analysis{
		Pairs: ParseKeyValueLines(res.Text),
		Lines: SplitLines(res.Text),
		Pages: 1,
	}, nil
}
