// Package snapshot reads and writes approval snapshots as YAML files.
//
// A snapshot stores the backend read shape of one or more subjects, keyed by
// "kind/id":
//
//	subjects:
//	  proposals/12:
//	    id: 12
//	    status: 0
//	    approval_stage: 2
//	    approvals: [...]
//
// Snapshots let the CLI render a subject offline and give tests a fixed
// backend fixture. Writes are atomic: the file is written to a temporary path
// and renamed into place.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"clubflow/internal/backend"
)

// EnvPath overrides the snapshot path when set.
const EnvPath = "CLUBFLOW_SNAPSHOT_PATH"

// DefaultPath is the snapshot file used when nothing else is configured.
const DefaultPath = "clubflow-snapshot.yaml"

// File is the on-disk snapshot document.
type File struct {
	Subjects map[string]backend.Subject `yaml:"subjects"`
}

// Keys returns the subject keys in sorted order.
func (f *File) Keys() []string {
	keys := make([]string, 0, len(f.Subjects))
	for k := range f.Subjects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ResolvePath picks the snapshot file location.
//
// Resolution order:
//  1. Explicit path (e.g., from a --snapshot flag)
//  2. CLUBFLOW_SNAPSHOT_PATH environment variable
//  3. Configured path (snapshot_path in the config file)
//  4. [DefaultPath] in the working directory
func ResolvePath(explicit, configured string) string {
	if explicit != "" {
		return explicit
	}
	if envPath := os.Getenv(EnvPath); envPath != "" {
		return envPath
	}
	if configured != "" {
		return configured
	}
	return DefaultPath
}

// Reader reads snapshot files.
type Reader struct {
	path string
}

// NewReader creates a [Reader] for the given snapshot file.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// Path returns the file the reader reads.
func (r *Reader) Path() string {
	return r.path
}

// Read reads and parses the complete snapshot file.
func (r *Reader) Read() (*File, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if f.Subjects == nil {
		f.Subjects = make(map[string]backend.Subject)
	}
	return &f, nil
}

// Get returns the subject stored under kind/id.
func (r *Reader) Get(kind, id string) (*backend.Subject, error) {
	f, err := r.Read()
	if err != nil {
		return nil, err
	}

	key := backend.Key(kind, id)
	subject, ok := f.Subjects[key]
	if !ok {
		return nil, fmt.Errorf("subject not found in snapshot: %s", key)
	}
	return &subject, nil
}

// Writer writes snapshot files.
type Writer struct {
	path string
}

// NewWriter creates a [Writer] for the given snapshot file.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Put stores subject under kind/id, creating the file if needed and keeping
// every other subject already in it.
func (w *Writer) Put(kind, id string, subject backend.Subject) error {
	f := &File{Subjects: make(map[string]backend.Subject)}

	if _, err := os.Stat(w.path); err == nil {
		existing, err := NewReader(w.path).Read()
		if err != nil {
			return err
		}
		f = existing
	}

	f.Subjects[backend.Key(kind, id)] = subject
	return w.Write(f)
}

// Write replaces the snapshot file with f.
func (w *Writer) Write(f *File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}
	}

	tmpPath := w.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, w.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	return nil
}
