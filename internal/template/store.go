package template

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
)

// ErrTemplateNotFound is returned when no template exists for a key. For a
// campaign step this means the contact has received every email.
var ErrTemplateNotFound = errors.New("template not found")

// Store loads raw template text by key.
type Store interface {
	Load(ctx context.Context, key string) (string, error)
}

// FileStore reads templates named "<key><ext>" from a filesystem.
type FileStore struct {
	fsys fs.FS
	ext  string
}

// NewFileStore creates a FileStore rooted at dir on disk.
func NewFileStore(dir, ext string) *FileStore {
	return NewFSStore(os.DirFS(dir), ext)
}

// NewFSStore creates a FileStore over an arbitrary fs.FS.
func NewFSStore(fsys fs.FS, ext string) *FileStore {
	return &FileStore{fsys: fsys, ext: ext}
}

// Load returns the template text stored under key.
func (s *FileStore) Load(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := key + s.ext
	if !fs.ValidPath(name) || path.Base(name) != name {
		return "", fmt.Errorf("template: invalid key %q", key)
	}

	b, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
		}
		return "", fmt.Errorf("template: failed to read %s: %w", name, err)
	}
	return string(b), nil
}
