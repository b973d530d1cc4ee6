package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

const indexFile = "index.json"

// Index holds embedded chunks for similarity search.
type Index struct {
	Embedder string  `json:"embedder"`
	Dim      int     `json:"dim"`
	Chunks   []Chunk `json:"chunks"`

	embed Embedder
}

// Hit is one search result.
type Hit struct {
	Chunk Chunk
	Score float64
}

// BuildIndex embeds every chunk.
func BuildIndex(chunks []Chunk, embed Embedder) *Index {
	idx := &Index{Embedder: embed.Name(), Chunks: make([]Chunk, len(chunks)), embed: embed}
	for i, c := range chunks {
		c.Vector = embed.Embed(c.Content)
		idx.Chunks[i] = c
		idx.Dim = len(c.Vector)
	}
	return idx
}

// Save writes the index into dir, creating it if needed.
func (idx *Index) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	data, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	tmp := filepath.Join(dir, indexFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return os.Rename(tmp, filepath.Join(dir, indexFile))
}

// LoadIndex reads an index previously written by Save.
func LoadIndex(dir string, embed Embedder) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(dir, indexFile))
	if err != nil {
		return nil, err
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	if idx.Embedder != embed.Name() {
		return nil, fmt.Errorf("index built with %q, configured embedder is %q", idx.Embedder, embed.Name())
	}
	idx.embed = embed
	return &idx, nil
}

// OpenOrBuild loads the index when dir exists; otherwise it loads the corpus,
// builds the index and persists it. built reports which path was taken.
func OpenOrBuild(ctx context.Context, dir string, loader *Loader, embed Embedder, logger *slog.Logger) (idx *Index, built bool, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := os.Stat(dir); err == nil {
		idx, err := LoadIndex(dir, embed)
		if err != nil {
			return nil, false, err
		}
		logger.Info("corpus.index.loaded", "dir", dir, "chunks", len(idx.Chunks))
		return idx, false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("stat index dir: %w", err)
	}

	chunks, err := loader.Load(ctx)
	if err != nil {
		return nil, false, err
	}
	idx = BuildIndex(chunks, embed)
	if err := idx.Save(dir); err != nil {
		return nil, false, err
	}
	logger.Info("corpus.index.built", "dir", dir, "chunks", len(idx.Chunks))
	return idx, true, nil
}

// Search returns the k chunks most similar to query, best first.
func (idx *Index) Search(query string, k int) []Hit {
	if k <= 0 || len(idx.Chunks) == 0 {
		return nil
	}
	q := idx.embed.Embed(query)
	hits := make([]Hit, 0, len(idx.Chunks))
	for _, c := range idx.Chunks {
		hits = append(hits, Hit{Chunk: c, Score: cosine(q, c.Vector)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}
