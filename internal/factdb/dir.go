package factdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// FileExt is the extension of fact database files.
const FileExt = ".json"

// maxParallelLoads bounds concurrent decoding in LoadDir.
const maxParallelLoads = 8

// File is a fact database together with the file it was read from.
type File struct {
	Path string
	DB   *Database
}

// Name returns the base name of the file.
func (f File) Name() string { return filepath.Base(f.Path) }

// ListDir returns the fact database files in dir, sorted by name.
func ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), FileExt) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	slices.Sort(paths)
	return paths, nil
}

// LoadDir loads every fact database in dir in parallel. Files are returned
// sorted by name. When schema is non-nil each database is validated
// against it; the first failure cancels the remaining loads.
func LoadDir(ctx context.Context, dir string, schema *Schema) ([]File, error) {
	paths, err := ListDir(dir)
	if err != nil {
		return nil, err
	}
	return LoadFiles(ctx, paths, schema)
}

// LoadFiles loads the given files in parallel, preserving their order.
func LoadFiles(ctx context.Context, paths []string, schema *Schema) ([]File, error) {
	files := make([]File, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLoads)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			db, err := Load(path)
			if err != nil {
				return err
			}
			if schema != nil {
				if err := schema.Validate(db); err != nil {
					return withPath(err, path)
				}
			}
			files[i] = File{Path: path, DB: db}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}
