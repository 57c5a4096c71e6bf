// Package artifacts stores run artifacts (failure screenshots) and returns a
// URL a report can link to. DirStore keeps them on disk; S3Store uploads them
// to an S3-compatible bucket.
package artifacts

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kuitang/streamcheck/internal/errs"
)

// ContentTypePNG is the content type of Playwright screenshots.
const ContentTypePNG = "image/png"

// Store persists an artifact under key and returns where it can be fetched.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Key joins a run id and a file name into an object key.
func Key(runID, name string) string {
	name = path.Base(filepath.ToSlash(name))
	if runID == "" {
		return name
	}
	return runID + "/" + name
}

func validateKey(key string) error {
	if key == "" {
		return errs.New(errs.InvalidArgument, "artifact key must not be empty")
	}
	if strings.HasSuffix(key, "/") || path.Clean("/"+key) != "/"+key {
		return errs.Newf(errs.InvalidArgument, "artifact key %q is not a clean relative path", key)
	}
	return nil
}

// DirStore writes artifacts below a local directory.
type DirStore struct {
	root string
}

func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

// Put writes data to root/key and returns a file:// URL for it.
func (s *DirStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	dst := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", errs.Wrap(errs.Unavailable, fmt.Sprintf("create directory for %q", key), err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", errs.Wrap(errs.Unavailable, fmt.Sprintf("write artifact %q", key), err)
	}
	abs, err := filepath.Abs(dst)
	if err != nil {
		abs = dst
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}
