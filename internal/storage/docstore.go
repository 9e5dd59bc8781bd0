package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DocumentStore holds uploaded source files on disk.
type DocumentStore struct {
	dir        string
	allowedExt map[string]bool
}

// NewDocumentStore creates the upload directory if needed.
func NewDocumentStore(dir string, allowedExtensions []string) (*DocumentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	allowed := make(map[string]bool, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		allowed[strings.ToLower(ext)] = true
	}
	return &DocumentStore{dir: dir, allowedExt: allowed}, nil
}

// Dir returns the upload directory path.
func (ds *DocumentStore) Dir() string {
	return ds.dir
}

// Allowed reports whether the filename has a permitted extension.
func (ds *DocumentStore) Allowed(filename string) bool {
	return ds.allowedExt[strings.ToLower(filepath.Ext(filename))]
}

// AllowedExtensions returns the permitted extensions, for error messages.
func (ds *DocumentStore) AllowedExtensions() []string {
	exts := make([]string, 0, len(ds.allowedExt))
	for ext := range ds.allowedExt {
		exts = append(exts, ext)
	}
	return exts
}

// Save streams r into the store under filename and returns the stored path.
// Any directory components in filename are stripped.
func (ds *DocumentStore) Save(filename string, r io.Reader) (string, error) {
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "", fmt.Errorf("invalid filename: %q", filename)
	}

	path := filepath.Join(ds.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return path, nil
}

// Resolve returns the absolute path for a stored or user-supplied path,
// reporting whether the file exists.
func (ds *DocumentStore) Resolve(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path, false
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return abs, false
	}
	return abs, true
}
