package dataset

import (
	"context"
	"time"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/storage"
)

// Local is a proto or frozen dataset on local storage
type Local struct {
	handle *storage.Handle
}

// NewLocal wraps a storage handle
func NewLocal(h *storage.Handle) *Local {
	return &Local{handle: h}
}

// Handle returns the underlying storage handle
func (l *Local) Handle() *storage.Handle {
	return l.handle
}

func (l *Local) Kind() Kind {
	if l.handle.IsFrozen() {
		return Frozen
	}
	return Proto
}

func (l *Local) Info() Info {
	admin := l.handle.Admin()
	info := Info{
		UUID:        admin.UUID,
		Name:        admin.Name,
		BaseURI:     l.handle.BaseURI(),
		URI:         l.handle.URI(),
		Creator:     admin.CreatorUsername,
		CreatedAt:   secondsToTime(admin.CreatedAt),
		SizeInBytes: l.handle.SizeInBytes(),
	}
	if admin.FrozenAt != nil {
		t := secondsToTime(*admin.FrozenAt)
		info.FrozenAt = &t
	}
	return info
}

func (l *Local) Readme(ctx context.Context) (string, error) {
	return l.handle.Readme()
}

func (l *Local) Manifest(ctx context.Context) ([]Item, error) {
	m, err := l.handle.Manifest(ctx)
	if err != nil {
		return nil, err
	}
	return itemsFromManifest(m), nil
}

func (l *Local) Tags(ctx context.Context) ([]string, error) {
	return l.handle.Tags()
}

func (l *Local) Annotations(ctx context.Context) (map[string]any, error) {
	return l.handle.Annotations()
}

func (l *Local) PutReadme(ctx context.Context, text string) error {
	return l.handle.PutReadme(text)
}

func (l *Local) PutTag(ctx context.Context, tag string) error {
	return l.handle.PutTag(tag)
}

func (l *Local) DeleteTag(ctx context.Context, tag string) error {
	return l.handle.DeleteTag(tag)
}

func (l *Local) PutAnnotation(ctx context.Context, name string, value any) error {
	return l.handle.PutAnnotation(name, value)
}

func (l *Local) DeleteAnnotation(ctx context.Context, name string) error {
	return l.handle.DeleteAnnotation(name)
}

// Freeze is a no-op on frozen datasets
func (l *Local) Freeze(ctx context.Context) error {
	return l.handle.Freeze(ctx)
}

// PutItem fails with ErrFrozen on frozen datasets
func (l *Local) PutItem(ctx context.Context, localPath, relpath string) (string, error) {
	return l.handle.PutItem(ctx, localPath, relpath)
}

// GetItem returns the item's path inside the dataset; local items need no fetching
func (l *Local) GetItem(ctx context.Context, itemID string) (string, error) {
	return l.handle.ItemPath(itemID)
}

func secondsToTime(s float64) time.Time {
	sec := int64(s)
	return time.Unix(sec, int64((s-float64(sec))*1e9)).UTC()
}
