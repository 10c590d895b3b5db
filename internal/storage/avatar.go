// Package storage abstracts where uploaded avatar images live. The rest
// of the application only sees URLs; swapping the disk implementation for
// an object store touches nothing else.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileStore saves uploaded files and deletes previously stored ones.
type FileStore interface {
	// Save persists the file content and returns its public URL. ext is
	// the original filename extension including the dot.
	Save(ext string, r io.Reader) (string, error)
	// Delete removes a previously stored file by its public URL. The
	// default avatar sentinel is never deleted.
	Delete(url string) error
}

// DiskStore keeps avatar files under <Root>/uploads/avatars with random
// names, served statically from Root.
type DiskStore struct {
	Root string // e.g. "public"
}

const avatarURLPrefix = "/uploads/avatars/"

func NewDiskStore(root string) *DiskStore { return &DiskStore{Root: root} }

func (s *DiskStore) Save(ext string, r io.Reader) (string, error) {
	dir := filepath.Join(s.Root, "uploads", "avatars")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create avatar dir: %w", err)
	}
	name := uuid.NewString() + strings.ToLower(ext)
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("create avatar file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write avatar file: %w", err)
	}
	return avatarURLPrefix + name, nil
}

// Delete removes the file behind a stored URL. Unknown or default URLs
// are ignored so callers can pass whatever is currently in the row.
func (s *DiskStore) Delete(url string) error {
	if url == "" || strings.Contains(url, "default.jpg") {
		return nil
	}
	if !strings.HasPrefix(url, avatarURLPrefix) {
		return nil
	}
	path := filepath.Join(s.Root, filepath.FromSlash(strings.TrimPrefix(url, "/")))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
