package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// FileStore persists the ordered name list as a flat UTF-8 text file, one
// name per line. The line number (1-based) is the id, which is why every
// write is a full rewrite: the file must always reproduce the complete
// allocation history in order.
//
// This is the default backend and matches the on-disk "indices.enum"
// format: no header, no delimiters, no checksum.
type FileStore struct {
	path   string
	logger *slog.Logger
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithFileLogger sets the logger used to report store resets.
// Defaults to slog.Default().
func WithFileLogger(logger *slog.Logger) FileOption {
	return func(s *FileStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewFileStore creates a file store at path. The file and its parent
// directory are created lazily on the first rewrite.
func NewFileStore(path string, opts ...FileOption) *FileStore {
	s := &FileStore{
		path:   path,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the location of the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the stored name list. A missing, unreadable, or corrupt file
// is not an error: the store resets itself to empty and rewrites an empty
// file, because losing the enum file only loses ids that nothing references
// yet, while failing here would take the whole process down.
func (s *FileStore) Load(ctx context.Context) ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("enum store unreadable, resetting", "path", s.path, "error", err)
		}
		return s.reset(ctx)
	}

	names, err := parseNames(data)
	if err != nil {
		s.logger.Warn("enum store corrupt, resetting", "path", s.path, "error", err)
		return s.reset(ctx)
	}
	return names, nil
}

func (s *FileStore) reset(ctx context.Context) ([]string, error) {
	if err := s.Rewrite(ctx, nil); err != nil {
		return nil, err
	}
	return nil, nil
}

// Rewrite atomically replaces the file contents with the given names. The
// new contents are written to a temp file in the same directory and renamed
// over the old file, so readers never observe a partial line list.
func (s *FileStore) Rewrite(_ context.Context, names []string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create enum store directory: %w", err)
	}

	var buf bytes.Buffer
	for _, name := range names {
		buf.WriteString(name)
		buf.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp enum store: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write enum store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close enum store: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace enum store: %w", err)
	}
	return nil
}

// parseNames decodes file contents into the ordered name list. Invalid
// UTF-8, blank interior lines, and duplicate names all count as corruption.
func parseNames(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if !utf8.Valid(data) {
		return nil, errors.New("not valid UTF-8")
	}

	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil, nil
	}

	names := strings.Split(text, "\n")
	for i, name := range names {
		// Tolerate files written on Windows.
		names[i] = strings.TrimSuffix(name, "\r")
	}
	if err := validateNames(names); err != nil {
		return nil, err
	}
	return names, nil
}
