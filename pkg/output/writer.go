// Package output writes generated documents. LocalWriter writes under a
// directory on this host; SFTPWriter publishes to a TFTP or DHCP server
// over SFTP. Tee fans one document out to several writers.
package output

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Writer stores a finished document. Writes are not atomic.
type Writer interface {
	WriteFile(ctx context.Context, path string, data []byte) error
	Close() error
}

// LocalWriter writes documents below Root.
type LocalWriter struct {
	Root string
	Mode os.FileMode
}

// NewLocalWriter creates a LocalWriter that writes files with mode 0644.
func NewLocalWriter(root string) *LocalWriter {
	return &LocalWriter{Root: root, Mode: 0644}
}

// WriteFile writes data to path, relative to Root, creating parent
// directories. Paths that would leave Root are rejected.
func (w *LocalWriter) WriteFile(_ context.Context, path string, data []byte) error {
	full, err := resolve(w.Root, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	mode := w.Mode
	if mode == 0 {
		mode = 0644
	}
	if err := os.WriteFile(full, data, mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Close implements Writer.
func (w *LocalWriter) Close() error { return nil }

func resolve(root, path string) (string, error) {
	if !filepath.IsLocal(path) {
		return "", fmt.Errorf("refusing to write outside output root: %s", path)
	}
	return filepath.Join(root, path), nil
}

type tee []Writer

// Tee returns a Writer that writes every document to each of ws in turn.
// A failing writer does not stop the others; the errors are joined.
func Tee(ws ...Writer) Writer {
	return tee(ws)
}

func (t tee) WriteFile(ctx context.Context, path string, data []byte) error {
	var errs []error
	for _, w := range t {
		if err := w.WriteFile(ctx, path, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t tee) Close() error {
	var errs []error
	for _, w := range t {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Memory keeps documents in a map. It is used for dry runs and tests.
// Read Files and Order only once writing is done.
type Memory struct {
	mu    sync.Mutex
	Files map[string][]byte
	Order []string
}

// NewMemory creates an empty Memory writer.
func NewMemory() *Memory {
	return &Memory{Files: make(map[string][]byte)}
}

// WriteFile implements Writer.
func (m *Memory) WriteFile(_ context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Files[path]; !ok {
		m.Order = append(m.Order, path)
	}
	m.Files[path] = append([]byte(nil), data...)
	return nil
}

// Close implements Writer.
func (m *Memory) Close() error { return nil }
