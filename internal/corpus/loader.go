package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// Chunk is one retrievable piece of a reference document.
type Chunk struct {
	ID      string    `json:"id"`
	Source  string    `json:"source"`
	Index   int       `json:"index"`
	Content string    `json:"content"`
	Vector  []float32 `json:"vector,omitempty"`
}

// Loader reads every document of a Source in parallel and chunks it.
type Loader struct {
	src         Source
	chunker     *Chunker
	logger      *slog.Logger
	concurrency int
}

func NewLoader(src Source, chunker *Chunker, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{src: src, chunker: chunker, logger: logger, concurrency: runtime.NumCPU()}
}

// Load runs one goroutine per document. Each goroutine fills only its own
// slot; chunks come back in listing order. Unreadable documents are skipped.
func (l *Loader) Load(ctx context.Context) ([]Chunk, error) {
	start := time.Now()
	names, err := l.src.List(ctx)
	if err != nil {
		return nil, err
	}

	perDoc := make([][]Chunk, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(l.concurrency, 1))
	for i, name := range names {
		g.Go(func() error {
			data, err := l.src.Open(gctx, name)
			if err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
			text, err := ExtractText(name, data)
			if err != nil {
				l.logger.Warn("corpus.load.skip", "source", name, "error", err)
				return nil
			}
			pieces := l.chunker.Split(text)
			chunks := make([]Chunk, len(pieces))
			for j, p := range pieces {
				chunks[j] = Chunk{ID: fmt.Sprintf("%s#%d", name, j), Source: name, Index: j, Content: p}
			}
			perDoc[i] = chunks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Chunk
	for _, cs := range perDoc {
		out = append(out, cs...)
	}
	l.logger.Info("corpus.load.ok",
		"documents", len(names),
		"chunks", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
