package dataset

import (
	"context"
	"fmt"
	"time"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/storage"
)

// Kind is the lifecycle and origin of a dataset
type Kind int

const (
	// Proto datasets live on local storage and accept new items
	Proto Kind = iota
	// Frozen datasets live on local storage; only readme, tags and annotations change
	Frozen
	// Remote datasets come from the lookup server and are read-only
	Remote
)

func (k Kind) String() string {
	switch k {
	case Proto:
		return "proto"
	case Frozen:
		return "frozen"
	case Remote:
		return "remote"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Info holds the identity fields of a dataset
type Info struct {
	UUID        string
	Name        string
	BaseURI     string
	URI         string
	Creator     string
	CreatedAt   time.Time
	FrozenAt    *time.Time
	SizeInBytes *int64 // nil when unknown
}

// Item is one manifest entry
type Item struct {
	ID           string
	RelPath      string
	SizeInBytes  int64
	UTCTimestamp float64
	Hash         string
}

// Dataset is the uniform view over local and catalog datasets
type Dataset interface {
	Kind() Kind
	Info() Info

	Readme(ctx context.Context) (string, error)
	Manifest(ctx context.Context) ([]Item, error)
	Tags(ctx context.Context) ([]string, error)
	Annotations(ctx context.Context) (map[string]any, error)

	PutReadme(ctx context.Context, text string) error
	PutTag(ctx context.Context, tag string) error
	DeleteTag(ctx context.Context, tag string) error
	PutAnnotation(ctx context.Context, name string, value any) error
	DeleteAnnotation(ctx context.Context, name string) error
	Freeze(ctx context.Context) error

	// PutItem adds the file at localPath as relpath and returns the item identifier
	PutItem(ctx context.Context, localPath, relpath string) (string, error)
	// GetItem returns a local path holding the item's content
	GetItem(ctx context.Context, itemID string) (string, error)
}

// FromURI opens the dataset at uri. The kind follows its admin metadata.
func FromURI(ctx context.Context, uri string) (Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scheme, _, err := storage.ParseURI(uri)
	if err != nil {
		return nil, err
	}
	if scheme != storage.SchemeFile {
		return nil, fmt.Errorf("%w: %s", common.ErrUnsupportedScheme, scheme)
	}
	h, err := storage.Open(uri)
	if err != nil {
		return nil, err
	}
	return NewLocal(h), nil
}

// Create allocates a new proto dataset on a local base URI
func Create(baseURI, name, creator string) (Dataset, error) {
	h, err := storage.CreateProto(baseURI, name, creator)
	if err != nil {
		return nil, err
	}
	return NewLocal(h), nil
}

func itemsFromManifest(m *storage.Manifest) []Item {
	entries := m.Entries()
	out := make([]Item, 0, len(entries))
	for _, e := range entries {
		out = append(out, Item{
			ID:           e.ID,
			RelPath:      e.RelPath,
			SizeInBytes:  e.SizeInBytes,
			UTCTimestamp: e.UTCTimestamp,
			Hash:         e.Hash,
		})
	}
	return out
}
