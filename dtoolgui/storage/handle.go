package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
)

// Handle gives access to one dataset directory on a local base URI
type Handle struct {
	mu    sync.RWMutex
	path  string
	admin AdminMetadata
}

// CreateProto allocates a new proto dataset called name under baseURI.
func CreateProto(baseURI, name, creator string) (*Handle, error) {
	if err := common.ValidateDatasetName(name); err != nil {
		return nil, err
	}
	admin := AdminMetadata{
		UUID:             uuid.NewString(),
		DtoolcoreVersion: DtoolcoreVersion,
		Name:             name,
		Type:             TypeProto,
		CreatorUsername:  creator,
		CreatedAt:        unixSeconds(time.Now()),
	}
	return createFromAdmin(baseURI, admin)
}

// createFromAdmin creates a proto dataset directory carrying admin
func createFromAdmin(baseURI string, admin AdminMetadata) (*Handle, error) {
	base, err := LocalPath(baseURI)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(base)
	if err != nil {
		return nil, fmt.Errorf("base URI %s is not accessible: %w", baseURI, err)
	}
	if !info.IsDir() {
		return nil, common.NewValidationError("base URI", baseURI, "not a directory")
	}

	path := filepath.Join(base, admin.Name)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s already exists", common.ErrResourceConflict, path)
	}

	for _, dir := range []string{
		filepath.Join(path, adminDir, tagsDir),
		filepath.Join(path, adminDir, annotationsDir),
		filepath.Join(path, dataDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	admin.Type = TypeProto
	admin.FrozenAt = nil
	if err := writeJSON(filepath.Join(path, adminDir, adminFile), admin); err != nil {
		return nil, err
	}
	structure := map[string]any{
		"dtoolcore_version":      DtoolcoreVersion,
		"data_directory":         []string{dataDir},
		"dataset_readme_relpath": []string{readmeFile},
	}
	if err := writeJSON(filepath.Join(path, adminDir, structureFile), structure); err != nil {
		return nil, err
	}
	if err := writeFileAtomic(filepath.Join(path, readmeFile), []byte{}, 0o644); err != nil {
		return nil, err
	}

	slog.Info("Created proto dataset", "name", admin.Name, "uuid", admin.UUID, "path", path)
	return &Handle{path: path, admin: admin}, nil
}

// Open reads the dataset at uri
func Open(uri string) (*Handle, error) {
	path, err := LocalPath(uri)
	if err != nil {
		return nil, err
	}
	var admin AdminMetadata
	if err := readJSON(filepath.Join(path, adminDir, adminFile), &admin); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: no dataset at %s", common.ErrNotFound, uri)
		}
		return nil, err
	}
	if admin.UUID == "" {
		return nil, fmt.Errorf("%w: admin metadata at %s has no uuid", common.ErrMalformedResponse, uri)
	}
	return &Handle{path: path, admin: admin}, nil
}

// IsDataset reports whether path holds dtool admin metadata
func IsDataset(path string) bool {
	_, err := os.Stat(filepath.Join(path, adminDir, adminFile))
	return err == nil
}

// List returns the URIs of all datasets directly below the local base URI, sorted by name
func List(baseURI string) ([]string, error) {
	base, err := LocalPath(baseURI)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", baseURI, err)
	}
	var uris []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p := filepath.Join(base, e.Name())
		if IsDataset(p) {
			uris = append(uris, FileURI(p))
		}
	}
	sort.Strings(uris)
	return uris, nil
}

// URI returns the file URI of the dataset
func (h *Handle) URI() string {
	return FileURI(h.path)
}

// BaseURI returns the file URI of the directory holding the dataset
func (h *Handle) BaseURI() string {
	return FileURI(filepath.Dir(h.path))
}

// Path returns the dataset directory
func (h *Handle) Path() string {
	return h.path
}

// Admin returns a copy of the admin metadata
func (h *Handle) Admin() AdminMetadata {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.admin
}

// IsFrozen reports whether the dataset has been frozen
func (h *Handle) IsFrozen() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.admin.Type == TypeFrozen
}

// Readme returns the README.yml content
func (h *Handle) Readme() (string, error) {
	data, err := os.ReadFile(filepath.Join(h.path, readmeFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read readme: %w", err)
	}
	return string(data), nil
}

// PutReadme replaces README.yml. Allowed on frozen datasets.
func (h *Handle) PutReadme(text string) error {
	return writeFileAtomic(filepath.Join(h.path, readmeFile), []byte(text), 0o644)
}

// Tags returns the sorted tags
func (h *Handle) Tags() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(h.path, adminDir, tagsDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}
	tags := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			tags = append(tags, e.Name())
		}
	}
	sort.Strings(tags)
	return tags, nil
}

// PutTag adds a tag. Allowed on frozen datasets.
func (h *Handle) PutTag(tag string) error {
	if !common.IsValidDatasetName(tag) {
		return common.NewValidationError("tag", tag, "invalid characters or too long")
	}
	return writeFileAtomic(filepath.Join(h.path, adminDir, tagsDir, tag), []byte{}, 0o644)
}

// DeleteTag removes a tag; missing tags are ignored
func (h *Handle) DeleteTag(tag string) error {
	err := os.Remove(filepath.Join(h.path, adminDir, tagsDir, tag))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete tag %s: %w", tag, err)
	}
	return nil
}

// Annotations returns all annotations keyed by name
func (h *Handle) Annotations() (map[string]any, error) {
	dir := filepath.Join(h.path, adminDir, annotationsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("failed to read annotations: %w", err)
	}
	out := make(map[string]any, len(entries))
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".json")
		if e.IsDir() || !ok {
			continue
		}
		var v any
		if err := readJSON(filepath.Join(dir, e.Name()), &v); err != nil {
			slog.Warn("Skipping unreadable annotation", "dataset", h.path, "annotation", name, "error", err)
			continue
		}
		out[name] = v
	}
	return out, nil
}

// PutAnnotation stores a JSON-serialisable value. Allowed on frozen datasets.
func (h *Handle) PutAnnotation(name string, value any) error {
	if !common.IsValidDatasetName(name) {
		return common.NewValidationError("annotation", name, "invalid characters or too long")
	}
	if err := writeJSON(filepath.Join(h.path, adminDir, annotationsDir, name+".json"), value); err != nil {
		return fmt.Errorf("%w: %w", common.NewValidationError("annotation", name, "unsupported value type"), err)
	}
	return nil
}

// DeleteAnnotation removes an annotation; missing annotations are ignored
func (h *Handle) DeleteAnnotation(name string) error {
	err := os.Remove(filepath.Join(h.path, adminDir, annotationsDir, name+".json"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete annotation %s: %w", name, err)
	}
	return nil
}

// PutItem copies the file at localPath into the dataset as relpath. Proto only.
func (h *Handle) PutItem(ctx context.Context, localPath, relpath string) (string, error) {
	if h.IsFrozen() {
		return "", fmt.Errorf("%w: cannot add items to %s", common.ErrFrozen, h.Admin().Name)
	}
	relpath = filepath.ToSlash(filepath.Clean(relpath))
	if relpath == "." || relpath == ".." || strings.HasPrefix(relpath, "../") || filepath.IsAbs(relpath) {
		return "", common.NewValidationError("relpath", relpath, "must stay inside the dataset")
	}

	dst := filepath.Join(h.path, dataDir, filepath.FromSlash(relpath))
	if _, err := copyFile(ctx, localPath, dst, nil); err != nil {
		return "", err
	}
	return ItemIdentifier(relpath), nil
}

// ItemPath returns the local path of the item with the given identifier
func (h *Handle) ItemPath(id string) (string, error) {
	m, err := h.Manifest(context.Background())
	if err != nil {
		return "", err
	}
	item, ok := m.Items[id]
	if !ok {
		return "", fmt.Errorf("%w: item %s", common.ErrNotFound, id)
	}
	return filepath.Join(h.path, dataDir, filepath.FromSlash(item.RelPath)), nil
}

// Manifest returns the stored manifest of a frozen dataset, or computes one for a proto dataset.
func (h *Handle) Manifest(ctx context.Context) (*Manifest, error) {
	if h.IsFrozen() {
		var m Manifest
		if err := readJSON(filepath.Join(h.path, adminDir, manifestFile), &m); err != nil {
			return nil, fmt.Errorf("failed to read manifest: %w", err)
		}
		if m.Items == nil {
			m.Items = map[string]ManifestItem{}
		}
		return &m, nil
	}
	return h.computeManifest(ctx)
}

// computeManifest hashes every file below data/ on a pool of two workers.
func (h *Handle) computeManifest(ctx context.Context) (*Manifest, error) {
	root := filepath.Join(h.path, dataDir)
	var relpaths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		relpaths = append(relpaths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	p := pool.NewWithResults[ManifestEntry]().WithMaxGoroutines(2).WithContext(ctx).WithCancelOnError()
	for _, rel := range relpaths {
		rel := rel
		p.Go(func(ctx context.Context) (ManifestEntry, error) {
			if err := ctx.Err(); err != nil {
				return ManifestEntry{}, err
			}
			full := filepath.Join(root, filepath.FromSlash(rel))
			info, err := os.Stat(full)
			if err != nil {
				return ManifestEntry{}, err
			}
			hash, err := FileHash(full)
			if err != nil {
				return ManifestEntry{}, err
			}
			return ManifestEntry{
				ID: ItemIdentifier(rel),
				ManifestItem: ManifestItem{
					RelPath:      rel,
					SizeInBytes:  info.Size(),
					UTCTimestamp: unixSeconds(info.ModTime()),
					Hash:         hash,
				},
			}, nil
		})
	}
	entries, err := p.Wait()
	if err != nil {
		return nil, fmt.Errorf("failed to build manifest: %w", err)
	}

	m := &Manifest{
		DtoolcoreVersion: DtoolcoreVersion,
		HashFunction:     hashFunctionMD5,
		Items:            make(map[string]ManifestItem, len(entries)),
	}
	for _, e := range entries {
		m.Items[e.ID] = e.ManifestItem
	}
	return m, nil
}

// Freeze writes the manifest and marks the dataset frozen. Freezing a frozen dataset is a no-op.
func (h *Handle) Freeze(ctx context.Context) error {
	if h.IsFrozen() {
		return nil
	}
	m, err := h.computeManifest(ctx)
	if err != nil {
		return err
	}
	return h.freezeWith(m, unixSeconds(time.Now()))
}

func (h *Handle) freezeWith(m *Manifest, frozenAt float64) error {
	if err := writeJSON(filepath.Join(h.path, adminDir, manifestFile), m); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	admin := h.admin
	admin.Type = TypeFrozen
	admin.FrozenAt = &frozenAt
	if err := writeJSON(filepath.Join(h.path, adminDir, adminFile), admin); err != nil {
		return err
	}
	h.admin = admin
	slog.Info("Froze dataset", "name", admin.Name, "uuid", admin.UUID, "items", len(m.Items))
	return nil
}

// SizeInBytes returns the summed item size of a frozen dataset; nil for proto datasets
func (h *Handle) SizeInBytes() *int64 {
	if !h.IsFrozen() {
		return nil
	}
	m, err := h.Manifest(context.Background())
	if err != nil {
		slog.Warn("Unable to determine dataset size", "path", h.path, "error", err)
		return nil
	}
	size := m.TotalSize()
	return &size
}

// CopyFile copies src to dst, creating parent directories. A failed copy leaves no partial dst.
func CopyFile(ctx context.Context, src, dst string) (int64, error) {
	return copyFile(ctx, src, dst, nil)
}

// copyFile copies src to dst, reporting written bytes to progress.
func copyFile(ctx context.Context, src, dst string, progress func(int64)) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open source file: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create destination directory: %w", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("failed to create destination file: %w", err)
	}

	n, err := copyWithProgress(ctx, out, in, progress)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return n, fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return n, nil
}

func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, progress func(int64)) (int64, error) {
	buffer := make([]byte, 32*1024)
	var totalBytes int64

	for {
		select {
		case <-ctx.Done():
			return totalBytes, ctx.Err()
		default:
		}

		n, readErr := src.Read(buffer)
		if n > 0 {
			if _, writeErr := dst.Write(buffer[:n]); writeErr != nil {
				return totalBytes, writeErr
			}
			totalBytes += int64(n)
			if progress != nil {
				progress(int64(n))
			}
		}

		if readErr != nil {
			if readErr == io.EOF {
				return totalBytes, nil
			}
			return totalBytes, readErr
		}
	}
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
