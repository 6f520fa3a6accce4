package dataset

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/storage"
)

// IgnoreFile lists gitignore-style patterns excluded by PutItemsFromDirectory
const IgnoreFile = ".dtoolignore"

// IgnoreChecker matches relative paths against ignore patterns
type IgnoreChecker interface {
	MatchesPath(path string) bool
}

// LoadIgnore compiles dir/.dtoolignore. It returns nil when the file does not exist.
func LoadIgnore(dir string) (IgnoreChecker, error) {
	ignorePath := filepath.Join(dir, IgnoreFile)

	if _, err := os.Stat(ignorePath); err == nil {
		ignored, err := ignore.CompileIgnoreFile(ignorePath)
		if err != nil {
			return nil, fmt.Errorf("error reading %s file: %w", IgnoreFile, err)
		}
		return ignored, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("error checking for %s file: %w", IgnoreFile, err)
	}

	return nil, nil
}

// PutItemsFromDirectory adds every regular file under dir to ds, using paths
// relative to dir as relpaths. It returns the identifiers of the added items.
func PutItemsFromDirectory(ctx context.Context, ds Dataset, dir string) ([]string, error) {
	ignored, err := LoadIgnore(dir)
	if err != nil {
		return nil, err
	}

	var ids []string
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if ignored != nil && ignored.MatchesPath(rel) {
			slog.Debug("Ignoring path", "relpath", rel)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() || rel == IgnoreFile {
			return nil
		}

		id, err := ds.PutItem(ctx, p, rel)
		if err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return ids, err
	}
	slog.Info("Added items from directory", "dir", dir, "uri", ds.Info().URI, "items", len(ids))
	return ids, nil
}

// DownloadItem places a copy of the item in dir/<item id>/<file name> and returns
// its path. An existing copy of the same size is reused.
func DownloadItem(ctx context.Context, ds Dataset, itemID, dir string) (string, error) {
	items, err := ds.Manifest(ctx)
	if err != nil {
		return "", err
	}
	var item *Item
	for i := range items {
		if items[i].ID == itemID {
			item = &items[i]
			break
		}
	}
	if item == nil {
		return "", fmt.Errorf("%w: item %s in %s", common.ErrNotFound, itemID, ds.Info().URI)
	}

	dst := filepath.Join(dir, itemID, path.Base(item.RelPath))
	if fi, err := os.Stat(dst); err == nil && fi.Size() == item.SizeInBytes {
		slog.Debug("Reusing downloaded item", "path", dst)
		return dst, nil
	}

	src, err := ds.GetItem(ctx, itemID)
	if err != nil {
		return "", err
	}
	if _, err := storage.CopyFile(ctx, src, dst); err != nil {
		return "", err
	}
	slog.Info("Downloaded item", "uri", ds.Info().URI, "relpath", item.RelPath, "path", dst)
	return dst, nil
}
