package storage

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/bytedance/sonic"
)

// DtoolcoreVersion is written into admin metadata and manifests
const DtoolcoreVersion = "3.18.2"

// Dataset lifecycle types as stored in admin metadata
const (
	TypeProto  = "protodataset"
	TypeFrozen = "dataset"
)

// On-disk layout of a dataset directory
const (
	adminDir        = ".dtool"
	adminFile       = "dtool"
	manifestFile    = "manifest.json"
	structureFile   = "structure.json"
	tagsDir         = "tags"
	annotationsDir  = "annotations"
	readmeFile      = "README.yml"
	dataDir         = "data"
	hashFunctionMD5 = "md5sum_hexdigest"
)

// AdminMetadata identifies a dataset and records its lifecycle state
type AdminMetadata struct {
	UUID             string   `json:"uuid"`
	DtoolcoreVersion string   `json:"dtoolcore_version"`
	Name             string   `json:"name"`
	Type             string   `json:"type"`
	CreatorUsername  string   `json:"creator_username"`
	CreatedAt        float64  `json:"created_at"`
	FrozenAt         *float64 `json:"frozen_at,omitempty"`
}

// SameDataset reports whether two admin records describe the same dataset,
// ignoring lifecycle fields that change on freeze.
func (a AdminMetadata) SameDataset(b AdminMetadata) bool {
	return a.UUID == b.UUID &&
		a.Name == b.Name &&
		a.CreatorUsername == b.CreatorUsername &&
		a.CreatedAt == b.CreatedAt
}

// ManifestItem describes one item of a dataset
type ManifestItem struct {
	RelPath      string  `json:"relpath"`
	SizeInBytes  int64   `json:"size_in_bytes"`
	UTCTimestamp float64 `json:"utc_timestamp"`
	Hash         string  `json:"hash"`
}

// Manifest maps item identifiers to items
type Manifest struct {
	DtoolcoreVersion string                  `json:"dtoolcore_version"`
	HashFunction     string                  `json:"hash_function"`
	Items            map[string]ManifestItem `json:"items"`
}

// ManifestEntry is a manifest item together with its identifier
type ManifestEntry struct {
	ID string
	ManifestItem
}

// Entries returns the items ordered by relpath
func (m *Manifest) Entries() []ManifestEntry {
	out := make([]ManifestEntry, 0, len(m.Items))
	for id, item := range m.Items {
		out = append(out, ManifestEntry{ID: id, ManifestItem: item})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out
}

// TotalSize sums the item sizes
func (m *Manifest) TotalSize() int64 {
	var total int64
	for _, item := range m.Items {
		total += item.SizeInBytes
	}
	return total
}

// ItemIdentifier derives the identifier of the item at relpath (sha1 hex digest of the relpath)
func ItemIdentifier(relpath string) string {
	sum := sha1.Sum([]byte(filepath.ToSlash(relpath)))
	return hex.EncodeToString(sum[:])
}

// FileHash returns the md5 hex digest of the file at path
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := sonic.ConfigStd.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	return writeFileAtomic(path, data, 0o644)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
