package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/otiai10/gosseract/v2"
)

type Config struct {
	TessdataDir string   // optional; gosseract reads TESSDATA_PREFIX when empty
	Languages   []string // default ["eng"]
	PSM         int      // page segmentation mode; 0 keeps tesseract's default
}

type Result struct {
	Text       string
	Confidence float32 // blend of word confidence and text heuristics, 0..1
	Language   string
	Duration   time.Duration
}

// Client is the slice of *gosseract.Client the engine uses.
type Client interface {
	SetImageFromBytes(data []byte) error
	SetLanguage(langs ...string) error
	SetTessdataPrefix(prefix string) error
	SetPageSegMode(mode gosseract.PageSegMode) error
	Text() (string, error)
	GetBoundingBoxes(level gosseract.PageIteratorLevel) ([]gosseract.BoundingBox, error)
	Close() error
}

// Engine runs local OCR on single images through tesseract.
type Engine struct {
	cfg           Config
	clientFactory func() Client
	logger        *slog.Logger
}

func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng"}
	}
	return &Engine{
		cfg:           cfg,
		clientFactory: func() Client { return gosseract.NewClient() },
		logger:        logger,
	}
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize OCRs one encoded image (png, jpeg, tiff).
func (e *Engine) Recognize(ctx context.Context, image []byte) (Result, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	c := e.clientFactory()
	defer func() {
		if err := c.Close(); err != nil {
			e.logger.Warn("ocr.client_close_error", "error", err)
		}
	}()

	if e.cfg.TessdataDir != "" {
		if err := c.SetTessdataPrefix(e.cfg.TessdataDir); err != nil {
			return Result{}, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := c.SetLanguage(e.cfg.Languages...); err != nil {
		return Result{}, fmt.Errorf("set languages: %w", err)
	}
	if e.cfg.PSM > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(e.cfg.PSM)); err != nil {
			return Result{}, fmt.Errorf("set psm %d: %w", e.cfg.PSM, err)
		}
	}
	if err := c.SetImageFromBytes(image); err != nil {
		return Result{}, fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		e.logger.Error("ocr.recognize_failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return Result{}, fmt.Errorf("recognize text: %w", err)
	}
	text = Normalize(text)

	wordConf := averageWordConfidence(c)
	conf := blendConfidence(wordConf, heuristicConfidence(text))

	res := Result{
		Text:       text,
		Confidence: conf,
		Language:   e.cfg.Languages[0],
		Duration:   time.Since(start),
	}
	e.logger.Debug("ocr.recognize_ok",
		"chars", len(text),
		"confidence", conf,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func averageWordConfidence(c Client) float32 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence / 100.0
	}
	return float32(sum / float64(len(boxes)))
}
