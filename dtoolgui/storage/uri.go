package storage

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
)

// SchemeFile is the only scheme with a storage broker in this package
const SchemeFile = "file"

// ParseURI splits a dataset or base URI into scheme and path.
// Bare paths are treated as file URIs.
func ParseURI(uri string) (scheme, path string, err error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return "", "", common.NewValidationError("uri", uri, "empty URI")
	}
	if !strings.Contains(uri, "://") {
		abs, err := filepath.Abs(uri)
		if err != nil {
			return "", "", fmt.Errorf("failed to resolve %s: %w", uri, err)
		}
		return SchemeFile, abs, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", common.NewValidationError("uri", uri, "unparsable URI"), err)
	}
	if u.Scheme != SchemeFile {
		return u.Scheme, strings.TrimPrefix(u.Host+u.Path, "/"), nil
	}
	return SchemeFile, filepath.Clean(u.Path), nil
}

// LocalPath resolves a file URI or bare path; other schemes are unsupported.
func LocalPath(uri string) (string, error) {
	scheme, path, err := ParseURI(uri)
	if err != nil {
		return "", err
	}
	if scheme != SchemeFile {
		return "", fmt.Errorf("%w: %s", common.ErrUnsupportedScheme, scheme)
	}
	return path, nil
}

// FileURI renders an absolute path as a file URI
func FileURI(path string) string {
	return "file://" + filepath.ToSlash(filepath.Clean(path))
}

// JoinURI appends a dataset name to a base URI
func JoinURI(baseURI, name string) string {
	return strings.TrimRight(baseURI, "/") + "/" + name
}
