package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
)

// CopyEvent reports one item that reached the destination
type CopyEvent struct {
	ItemID   string
	RelPath  string
	Bytes    int64
	Duration time.Duration
	// Resumed is set when the item was already present and not transferred again
	Resumed bool
}

// CopyOptions configures Copy
type CopyOptions struct {
	Workers int
	// OnStart receives the number of items before the first one is copied
	OnStart func(items int, resume bool)
	// OnItem is called from worker goroutines
	OnItem func(CopyEvent)
}

// CopyResult summarises a finished copy
type CopyResult struct {
	URI     string
	Resume  bool
	Items   int
	Resumed int
	Bytes   int64
}

// Copy copies the frozen dataset src below destBaseURI.
//
// If the destination already holds a dataset with the same admin metadata the copy
// resumes: items already present with matching size and hash are not transferred.
// Any other existing destination path is a resource conflict.
func Copy(ctx context.Context, src *Handle, destBaseURI string, opts CopyOptions) (*CopyResult, error) {
	if !src.IsFrozen() {
		return nil, common.NewValidationError("dataset", src.URI(), "only frozen datasets can be copied")
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}

	srcAdmin := src.Admin()
	manifest, err := src.Manifest(ctx)
	if err != nil {
		return nil, err
	}

	base, err := LocalPath(destBaseURI)
	if err != nil {
		return nil, err
	}
	destPath := filepath.Join(base, srcAdmin.Name)

	dest, resume, err := prepareDestination(destBaseURI, destPath, srcAdmin)
	if err != nil {
		return nil, err
	}

	entries := manifest.Entries()
	if opts.OnStart != nil {
		opts.OnStart(len(entries), resume)
	}
	result := &CopyResult{URI: dest.URI(), Resume: resume, Items: len(entries)}

	if dest.IsFrozen() {
		// a finished earlier copy: everything is in place already
		for _, e := range entries {
			result.Resumed++
			if opts.OnItem != nil {
				opts.OnItem(CopyEvent{ItemID: e.ID, RelPath: e.RelPath, Resumed: true})
			}
		}
		slog.Info("Destination already holds frozen copy", "uuid", srcAdmin.UUID, "dest", dest.URI())
		return result, nil
	}

	if err := copyMetadata(src, dest); err != nil {
		return nil, err
	}

	var bytes, resumed atomic.Int64
	p := pool.New().WithMaxGoroutines(opts.Workers).WithContext(ctx).WithCancelOnError()
	for _, e := range entries {
		e := e
		p.Go(func(ctx context.Context) error {
			start := time.Now()
			from := filepath.Join(src.Path(), dataDir, filepath.FromSlash(e.RelPath))
			to := filepath.Join(dest.Path(), dataDir, filepath.FromSlash(e.RelPath))

			if resume && itemPresent(to, e.ManifestItem) {
				resumed.Add(1)
				if opts.OnItem != nil {
					opts.OnItem(CopyEvent{ItemID: e.ID, RelPath: e.RelPath, Resumed: true, Duration: time.Since(start)})
				}
				return nil
			}

			n, err := copyFile(ctx, from, to, nil)
			if err != nil {
				return fmt.Errorf("item %s: %w", e.RelPath, err)
			}
			bytes.Add(n)
			if opts.OnItem != nil {
				opts.OnItem(CopyEvent{ItemID: e.ID, RelPath: e.RelPath, Bytes: n, Duration: time.Since(start)})
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("copy of %s to %s failed: %w", srcAdmin.Name, destBaseURI, err)
	}
	result.Bytes = bytes.Load()
	result.Resumed = int(resumed.Load())

	frozenAt := unixSeconds(time.Now())
	if srcAdmin.FrozenAt != nil {
		frozenAt = *srcAdmin.FrozenAt
	}
	if err := dest.freezeWith(manifest, frozenAt); err != nil {
		return nil, err
	}

	slog.Info("Copied dataset",
		"uuid", srcAdmin.UUID,
		"dest", result.URI,
		"items", result.Items,
		"resumed", result.Resumed,
		"bytes", result.Bytes)
	return result, nil
}

// prepareDestination opens a resumable destination or creates a fresh proto copy.
func prepareDestination(destBaseURI, destPath string, srcAdmin AdminMetadata) (*Handle, bool, error) {
	_, err := os.Stat(destPath)
	if errors.Is(err, os.ErrNotExist) {
		dest, err := createFromAdmin(destBaseURI, srcAdmin)
		return dest, false, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to inspect %s: %w", destPath, err)
	}

	existing, err := Open(FileURI(destPath))
	if err != nil || !existing.Admin().SameDataset(srcAdmin) {
		return nil, false, fmt.Errorf("%w: %s already exists", common.ErrResourceConflict, destPath)
	}
	slog.Info("Resuming copy", "uuid", srcAdmin.UUID, "dest", destPath)
	return existing, true, nil
}

func copyMetadata(src, dest *Handle) error {
	readme, err := src.Readme()
	if err != nil {
		return err
	}
	if err := dest.PutReadme(readme); err != nil {
		return err
	}

	tags, err := src.Tags()
	if err != nil {
		return err
	}
	for _, t := range tags {
		if err := dest.PutTag(t); err != nil {
			return err
		}
	}

	annotations, err := src.Annotations()
	if err != nil {
		return err
	}
	for k, v := range annotations {
		if err := dest.PutAnnotation(k, v); err != nil {
			return err
		}
	}
	return nil
}

func itemPresent(path string, item ManifestItem) bool {
	info, err := os.Stat(path)
	if err != nil || info.Size() != item.SizeInBytes {
		return false
	}
	hash, err := FileHash(path)
	return err == nil && hash == item.Hash
}
