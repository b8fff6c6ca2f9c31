// Package gate decides whether a run has new data to process. It fingerprints
// the downloaded database with SHA-256 and compares against the digest
// persisted by the previous successful run.
package gate

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Digest streams the file at path through SHA-256 and returns the
// hex-encoded sum. A file that cannot be read is fatal for the run, so the
// error is returned rather than swallowed.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open artifact for digest: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Store persists at most one fingerprint between runs.
type Store struct {
	path string
}

// NewStore creates a Store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Last returns the fingerprint committed by the previous run, or "" on the
// first run.
func (s *Store) Last() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read fingerprint: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Commit overwrites the stored fingerprint atomically (temp file + rename).
// Callers must invoke it only after the output artifact has been written
// successfully: a crashed run keeps the old fingerprint, so the next run
// retries from scratch instead of silently skipping.
func (s *Store) Commit(digest string) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create fingerprint temp file: %w", err)
	}

	if _, err := tmp.WriteString(digest); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write fingerprint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close fingerprint temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit fingerprint: %w", err)
	}
	return nil
}
