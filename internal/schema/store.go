// Package schema builds and caches the warehouse schema description that
// grounds every model prompt.
//
// The description is generated once per deployment: the first successful
// DescribeAll persists it, and every later call returns the stored text
// verbatim even if the underlying schema has changed since. Staleness is
// accepted; "askdw describe --refresh" is the manual escape hatch.
package schema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// Separator divides appended descriptions in the store file.
var Separator = strings.Repeat("-", 80)

// Store is the durable, append-only home of the schema description.
// A sidecar lock file serializes appends across processes sharing the
// cache (CLI and server pointed at the same home directory).
type Store struct {
	path string
	lock *flock.Flock
}

// NewStore opens a description store at path, creating the parent
// directory if needed.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether any description content is stored. A missing or
// empty file means no content.
func (s *Store) Exists() (bool, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat description store: %w", err)
	}
	return info.Size() > 0, nil
}

// Read returns the full stored text. A missing file reads as empty.
func (s *Store) Read() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read description store: %w", err)
	}
	return string(data), nil
}

// Append adds text to the store, preceded by the separator line when
// content already exists.
func (s *Store) Append(text string) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock description store: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	exists, err := s.Exists()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("open description store: %w", err)
	}

	var b strings.Builder
	if exists {
		b.WriteString(Separator)
		b.WriteByte('\n')
	}
	b.WriteString(text)
	b.WriteByte('\n')

	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		return fmt.Errorf("append description store: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close description store: %w", err)
	}
	return nil
}

// Clear removes the stored description. Idempotent.
func (s *Store) Clear() error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock description store: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear description store: %w", err)
	}
	return nil
}
