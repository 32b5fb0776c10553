// Package storage keeps request attachments outside the database.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ErrInvalidName is returned for names that could escape the store
var ErrInvalidName = errors.New("invalid attachment name")

// Object is an opened attachment. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// FileStore saves, opens and removes attachments by stored filename.
// Open returns models.ErrNotFound for a missing file.
type FileStore interface {
	Save(ctx context.Context, name string, content io.Reader) error
	Open(ctx context.Context, name string) (*Object, error)
	Delete(ctx context.Context, name string) error
}

// validateName accepts a single path element only
func validateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.ContainsAny(name, `/\`) || filepath.Base(name) != name || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
