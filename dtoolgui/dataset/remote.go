package dataset

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/lookup"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/storage"
)

// Catalog fetches dataset bodies from the lookup server
type Catalog interface {
	RawReadme(ctx context.Context, uri string) ([]byte, error)
	RawManifest(ctx context.Context, uri string) ([]byte, error)
}

// BodyCache persists fetched bodies between sessions
type BodyCache interface {
	Get(ctx context.Context, uri, kind string) ([]byte, bool, error)
	Put(ctx context.Context, uri, kind string, body []byte) error
}

// Cache kinds, matching the cache package
const (
	cacheKindReadme   = "readme"
	cacheKindManifest = "manifest"
)

// RemoteDataset is a catalog record. Readme and manifest are fetched on first use.
type RemoteDataset struct {
	info    lookup.DatasetInfo
	catalog Catalog
	cache   BodyCache

	mu       sync.Mutex
	readme   *string
	manifest []Item
}

// FromLookup builds a read-only dataset from a lookup record. cache may be nil.
func FromLookup(info lookup.DatasetInfo, catalog Catalog, cache BodyCache) *RemoteDataset {
	return &RemoteDataset{info: info, catalog: catalog, cache: cache}
}

// Record returns the lookup record the dataset was built from
func (r *RemoteDataset) Record() lookup.DatasetInfo {
	return r.info
}

func (r *RemoteDataset) Kind() Kind {
	return Remote
}

func (r *RemoteDataset) Info() Info {
	info := Info{
		UUID:        r.info.UUID,
		Name:        r.info.Name,
		BaseURI:     r.info.BaseURI,
		URI:         r.info.URI,
		Creator:     r.info.Creator,
		SizeInBytes: r.info.SizeInBytes,
	}
	if ts, err := common.ParseTimestamp(r.info.CreatedAt); err == nil {
		info.CreatedAt = ts
	}
	if ts, err := common.ParseTimestamp(r.info.FrozenAt); err == nil {
		info.FrozenAt = &ts
	}
	return info
}

func (r *RemoteDataset) Readme(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readme != nil {
		return *r.readme, nil
	}

	body, err := r.fetch(ctx, cacheKindReadme, r.catalog.RawReadme)
	if err != nil {
		return "", err
	}
	text, err := readmeText(body)
	if err != nil {
		return "", err
	}
	r.readme = &text
	return text, nil
}

func (r *RemoteDataset) Manifest(ctx context.Context) ([]Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.manifest != nil {
		return r.manifest, nil
	}

	body, err := r.fetch(ctx, cacheKindManifest, r.catalog.RawManifest)
	if err != nil {
		return nil, err
	}
	items, err := parseManifest(body)
	if err != nil {
		return nil, err
	}
	r.manifest = items
	return items, nil
}

func (r *RemoteDataset) Tags(ctx context.Context) ([]string, error) {
	out := append([]string(nil), r.info.Tags...)
	sort.Strings(out)
	return out, nil
}

func (r *RemoteDataset) Annotations(ctx context.Context) (map[string]any, error) {
	out := make(map[string]any, len(r.info.Annotations))
	for k, v := range r.info.Annotations {
		out[k] = v
	}
	return out, nil
}

func (r *RemoteDataset) readOnly(op string) error {
	return fmt.Errorf("%w: cannot %s catalog dataset %s", common.ErrReadOnly, op, r.info.UUID)
}

func (r *RemoteDataset) PutReadme(ctx context.Context, text string) error {
	return r.readOnly("edit readme of")
}

func (r *RemoteDataset) PutTag(ctx context.Context, tag string) error {
	return r.readOnly("tag")
}

func (r *RemoteDataset) DeleteTag(ctx context.Context, tag string) error {
	return r.readOnly("untag")
}

func (r *RemoteDataset) PutAnnotation(ctx context.Context, name string, value any) error {
	return r.readOnly("annotate")
}

func (r *RemoteDataset) DeleteAnnotation(ctx context.Context, name string) error {
	return r.readOnly("remove annotation from")
}

func (r *RemoteDataset) Freeze(ctx context.Context) error {
	return r.readOnly("freeze")
}

func (r *RemoteDataset) PutItem(ctx context.Context, localPath, relpath string) (string, error) {
	return "", r.readOnly("add items to")
}

// GetItem resolves items of catalog datasets that live on a local base URI.
// Items on object stores need a storage broker this client does not carry.
func (r *RemoteDataset) GetItem(ctx context.Context, itemID string) (string, error) {
	scheme, _, err := storage.ParseURI(r.info.URI)
	if err != nil {
		return "", err
	}
	if scheme != storage.SchemeFile {
		return "", fmt.Errorf("%w: %s", common.ErrUnsupportedScheme, scheme)
	}
	local, err := FromURI(ctx, r.info.URI)
	if err != nil {
		return "", err
	}
	return local.GetItem(ctx, itemID)
}

// fetch consults the cache before asking the catalog; catalog datasets are frozen so entries stay valid.
func (r *RemoteDataset) fetch(ctx context.Context, kind string, get func(context.Context, string) ([]byte, error)) ([]byte, error) {
	if r.cache != nil {
		body, ok, err := r.cache.Get(ctx, r.info.URI, kind)
		if err != nil {
			slog.Warn("Cache lookup failed", "uri", r.info.URI, "kind", kind, "error", err)
		} else if ok {
			return body, nil
		}
	}

	start := time.Now()
	body, err := get(ctx, r.info.URI)
	if err != nil {
		return nil, err
	}
	slog.Debug("Fetched dataset body", "uri", r.info.URI, "kind", kind, "duration", time.Since(start))

	if r.cache != nil {
		if err := r.cache.Put(ctx, r.info.URI, kind, body); err != nil {
			slog.Warn("Cache write failed", "uri", r.info.URI, "kind", kind, "error", err)
		}
	}
	return body, nil
}

// readmeText turns a readme response into YAML text. Servers send the readme either
// as raw YAML, as a JSON string or as a JSON object.
func readmeText(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", nil
	}

	var decoded any
	if err := yaml.Unmarshal(trimmed, &decoded); err != nil {
		// not parseable as YAML: show it as is so the user can fix it
		return string(body), nil
	}
	switch v := decoded.(type) {
	case string:
		if trimmed[0] == '"' {
			return v, nil
		}
	case map[string]any:
		if trimmed[0] == '{' {
			out, err := yaml.Marshal(v)
			if err != nil {
				return "", fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
			}
			return string(out), nil
		}
	}
	return string(body), nil
}

// parseManifest accepts {items: {id: {...}}} or the bare items mapping.
func parseManifest(body []byte) ([]Item, error) {
	var decoded map[string]any
	if err := yaml.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", common.ErrMalformedResponse, err)
	}
	items := decoded
	if nested, ok := decoded["items"].(map[string]any); ok {
		items = nested
	}

	out := make([]Item, 0, len(items))
	for id, raw := range items {
		m, ok := raw.(map[string]any)
		if !ok {
			slog.Warn("Dropping malformed manifest entry", "id", id)
			continue
		}
		relpath, _ := m["relpath"].(string)
		hash, _ := m["hash"].(string)
		if relpath == "" {
			slog.Warn("Dropping manifest entry without relpath", "id", id)
			continue
		}
		out = append(out, Item{
			ID:           id,
			RelPath:      relpath,
			SizeInBytes:  int64(toFloat(m["size_in_bytes"])),
			UTCTimestamp: toFloat(m["utc_timestamp"]),
			Hash:         hash,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out, nil
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}
