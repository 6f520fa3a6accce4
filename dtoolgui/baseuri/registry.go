package baseuri

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strings"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/config"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/dataset"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/storage"
)

// Schemes of enumerated base URIs
const (
	SchemeFile   = storage.SchemeFile
	SchemeS3     = "s3"
	SchemeSMB    = "smb"
	SchemeLookup = "lookup"
)

// BaseURI is a storage endpoint. Name is the path for file endpoints and
// the endpoint name (bucket, share) otherwise.
type BaseURI struct {
	Scheme string
	Name   string
}

// URI renders the base URI in dtool's scheme://name form
func (b BaseURI) URI() string {
	if b.Scheme == SchemeFile {
		return storage.FileURI(b.Name)
	}
	return b.Scheme + "://" + b.Name
}

func (b BaseURI) String() string {
	return b.URI()
}

// Parse splits uri into a BaseURI. Bare paths are local endpoints.
func Parse(uri string) (BaseURI, error) {
	scheme, path, err := storage.ParseURI(uri)
	if err != nil {
		return BaseURI{}, err
	}
	return BaseURI{Scheme: scheme, Name: path}, nil
}

// UserInfoSource reports the user record holding search permissions
type UserInfoSource interface {
	UserInfo(ctx context.Context, username string) (map[string]any, error)
}

// Registry enumerates base URIs from app settings, the dtool config and the lookup server
type Registry struct {
	store    *config.Store
	settings *config.SettingsStore
	users    UserInfoSource
	creator  string
}

// NewRegistry creates a registry. users may be nil when no lookup server is configured.
func NewRegistry(store *config.Store, settings *config.SettingsStore, users UserInfoSource) *Registry {
	creator := "unknown"
	if u, err := user.Current(); err == nil && u.Username != "" {
		creator = u.Username
	}
	return &Registry{store: store, settings: settings, users: users, creator: creator}
}

// All returns local endpoints (settings order), then s3 and smb endpoints
// (each sorted by name), then lookup-reported endpoints not already listed.
func (r *Registry) All(ctx context.Context, includeLocal bool, lookupUsername string) ([]BaseURI, error) {
	var out []BaseURI
	seen := make(map[string]struct{})
	add := func(b BaseURI) {
		key := b.URI()
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, b)
	}

	if includeLocal {
		for _, p := range r.settings.LocalBaseURIs() {
			add(BaseURI{Scheme: SchemeFile, Name: p})
		}
	}
	for _, name := range r.S3Names() {
		add(BaseURI{Scheme: SchemeS3, Name: name})
	}
	for _, name := range r.SMBNames() {
		add(BaseURI{Scheme: SchemeSMB, Name: name})
	}

	if lookupUsername == "" || r.users == nil {
		return out, nil
	}
	info, err := r.users.UserInfo(ctx, lookupUsername)
	if err != nil {
		return out, err
	}
	for _, uri := range searchPermissions(info) {
		b, err := Parse(uri)
		if err != nil {
			slog.Warn("Ignoring malformed base URI from lookup server", "uri", uri, "error", err)
			continue
		}
		add(b)
	}
	return out, nil
}

func searchPermissions(info map[string]any) []string {
	raw, _ := info["search_permissions_on_base_uris"].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok || s == "" {
			slog.Warn("Ignoring non-string base URI permission", "value", v)
			continue
		}
		out = append(out, s)
	}
	return out
}

// S3Names returns the distinct endpoint names configured for S3
func (r *Registry) S3Names() []string {
	return r.names(config.PrefixS3Endpoint, config.PrefixS3AccessKeyID, config.PrefixS3SecretAccessKey)
}

// SMBNames returns the distinct endpoint names configured for SMB
func (r *Registry) SMBNames() []string {
	return r.names(config.PrefixSMBServerName)
}

func (r *Registry) names(prefixes ...string) []string {
	set := make(map[string]struct{})
	for _, prefix := range prefixes {
		for _, key := range r.store.KeysWithPrefix(prefix) {
			if name := strings.TrimPrefix(key, prefix); name != "" {
				set[name] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// AddLocal registers an existing directory as local base URI
func (r *Registry) AddLocal(path string) (BaseURI, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return BaseURI{}, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return BaseURI{}, common.NewValidationError("base URI", path, "not an existing directory")
	}
	if err := r.settings.AddLocalBaseURI(abs); err != nil {
		return BaseURI{}, err
	}
	slog.Info("Added local base URI", "path", abs)
	return BaseURI{Scheme: SchemeFile, Name: abs}, nil
}

// RemoveLocal forgets a local base URI. Other schemes live in the dtool config and cannot be removed here.
func (r *Registry) RemoveLocal(b BaseURI) error {
	if b.Scheme != SchemeFile {
		return common.NewValidationError("base URI", b.URI(), "only local base URIs can be removed")
	}
	removed, err := r.settings.RemoveLocalBaseURI(b.Name)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: local base URI %s", common.ErrNotFound, b.Name)
	}
	slog.Info("Removed local base URI", "path", b.Name)
	return nil
}

// CreateDataset allocates a proto dataset called name on a local base URI
func (r *Registry) CreateDataset(ctx context.Context, b BaseURI, name string) (dataset.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.Scheme != SchemeFile {
		return nil, fmt.Errorf("%w: cannot create datasets on %s", common.ErrUnsupportedScheme, b.URI())
	}
	if err := common.ValidateDatasetName(name); err != nil {
		return nil, err
	}
	return dataset.Create(b.URI(), name, r.creator)
}
