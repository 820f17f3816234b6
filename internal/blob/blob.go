// Package blob abstracts screenshot image storage.
//
// The Store interface is the blob-store boundary the screenshot orchestrator
// and the bookmark delete flow talk to; FSStore implements it on a local
// directory served over HTTP. A hosted object store would slot in behind the
// same interface.
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Store writes, checks, deletes, and addresses screenshot blobs by key.
//
// Keys are slash-separated relative paths like
// "screenshots/<userID>/<randomID>.jpg".
type Store interface {
	// Put writes data under key, creating parent directories/prefixes.
	Put(ctx context.Context, key string, data []byte) error
	// Exists reports whether a blob is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes the blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// URL returns the publicly resolvable address for key.
	URL(key string) string
}

// FSStore stores blobs as files under a root directory and issues URLs under
// a base URL (the server mounts the root at /screenshots/... in development;
// in production BaseURL points at whatever serves the directory).
type FSStore struct {
	root    string
	baseURL string
}

// NewFSStore creates the root directory if needed.
// baseURL must not end in a slash, e.g. "http://localhost:8080".
func NewFSStore(root, baseURL string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blob: creating root %s: %w", root, err)
	}
	return &FSStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

var _ Store = (*FSStore)(nil)

// Put writes the blob atomically enough for our purposes: failed partial
// writes are overwritten by the next attempt under a fresh key anyway.
func (s *FSStore) Put(_ context.Context, key string, data []byte) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("blob: creating directory for %s: %w", key, err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("blob: writing %s: %w", key, err)
	}
	return nil
}

func (s *FSStore) Exists(_ context.Context, key string) (bool, error) {
	p, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("blob: stat %s: %w", key, err)
}

func (s *FSStore) Delete(_ context.Context, key string) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("blob: deleting %s: %w", key, err)
	}
	return nil
}

func (s *FSStore) URL(key string) string {
	return s.baseURL + "/" + key
}

// Root returns the directory blobs live under, for mounting a file server.
func (s *FSStore) Root() string {
	return s.root
}

// resolve maps a key to a filesystem path, rejecting anything that would
// escape the root (keys are built from IDs we generate, but the delete flow
// feeds back a stored path, so don't trust it blindly).
func (s *FSStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("blob: invalid key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}
