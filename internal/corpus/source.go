package corpus

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/bmatcuk/doublestar/v4"
	"google.golang.org/api/iterator"
)

// Source lists and reads reference documents.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, name string) ([]byte, error)
}

// DirSource reads files under Root matching a doublestar Pattern.
type DirSource struct {
	Root    string
	Pattern string
	fsys    fs.FS
}

func NewDirSource(root, pattern string) *DirSource {
	if pattern == "" {
		pattern = "**/*.pdf"
	}
	return &DirSource{Root: root, Pattern: pattern, fsys: os.DirFS(root)}
}

func (d *DirSource) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches, err := doublestar.Glob(d.fsys, d.Pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %s in %s: %w", d.Pattern, d.Root, err)
	}
	sort.Strings(matches)
	return matches, nil
}

func (d *DirSource) Open(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fs.ReadFile(d.fsys, filepath.ToSlash(name))
}

// GCSSource reads objects under Prefix in Bucket whose names match Pattern.
type GCSSource struct {
	client  *storage.Client
	Bucket  string
	Prefix  string
	Pattern string
}

func NewGCSSource(client *storage.Client, bucket, prefix, pattern string) *GCSSource {
	if pattern == "" {
		pattern = "**/*.pdf"
	}
	return &GCSSource{client: client, Bucket: bucket, Prefix: prefix, Pattern: pattern}
}

func (g *GCSSource) List(ctx context.Context) ([]string, error) {
	it := g.client.Bucket(g.Bucket).Objects(ctx, &storage.Query{Prefix: g.Prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", g.Bucket, g.Prefix, err)
		}
		if strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(attrs.Name, g.Prefix), "/")
		if ok, _ := doublestar.Match(g.Pattern, rel); ok {
			names = append(names, attrs.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (g *GCSSource) Open(ctx context.Context, name string) ([]byte, error) {
	r, err := g.client.Bucket(g.Bucket).Object(name).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open gs://%s/%s: %w", g.Bucket, name, err)
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}
