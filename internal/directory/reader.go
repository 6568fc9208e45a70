package directory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Reader supplies the raw phone directory document text. Implementations
// wrap whatever store holds the directory; the service only needs the text.
type Reader interface {
	DirectoryText(ctx context.Context) (string, error)
}

// ReaderFunc adapts a plain function to the Reader interface.
type ReaderFunc func(ctx context.Context) (string, error)

// DirectoryText implements Reader.
func (f ReaderFunc) DirectoryText(ctx context.Context) (string, error) {
	return f(ctx)
}

// FileReader reads the directory document from a local file on every call,
// so edits to the file take effect without a restart.
type FileReader struct {
	Path string
}

// DirectoryText implements Reader.
func (r FileReader) DirectoryText(_ context.Context) (string, error) {
	if strings.TrimSpace(r.Path) == "" {
		return "", errors.New("directory reader: file path is not configured")
	}
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return "", fmt.Errorf("directory reader: read %s: %w", r.Path, err)
	}
	return string(data), nil
}

// StaticReader serves a fixed directory text. Used in tests and for
// deployments that inject the directory through configuration.
type StaticReader struct {
	Text string
}

// DirectoryText implements Reader.
func (r StaticReader) DirectoryText(_ context.Context) (string, error) {
	return r.Text, nil
}
