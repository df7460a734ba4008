// Package blob is a content-addressed store for externalized event
// payloads and vote justification proofs. Contents are opaque; nothing in
// the service ever interprets them.
package blob

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"validation-service/internal/apperr"

	"github.com/ethereum/go-ethereum/crypto"
)

// Store keeps blobs on disk under dir, keyed by the keccak256 of their
// content. Identical payloads share one file.
type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "create blob dir", err)
	}
	return &Store{dir: dir}, nil
}

// Ref derives the content reference for data without storing it.
func Ref(data []byte) string {
	return hex.EncodeToString(crypto.Keccak256(data))
}

// Put stores data and returns its content reference.
func (s *Store) Put(data []byte) (string, error) {
	ref := Ref(data)
	path := s.path(ref)

	if _, err := os.Stat(path); err == nil {
		return ref, nil // already stored under the same content hash
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", apperr.Wrap(apperr.KindTransient, "create blob shard", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", apperr.Wrap(apperr.KindTransient, "write blob", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", apperr.Wrap(apperr.KindTransient, "commit blob", err)
	}
	return ref, nil
}

// Pin marks a blob as retained. Pinned refs survive garbage sweeps.
func (s *Store) Pin(ref string) error {
	if _, err := os.Stat(s.path(ref)); err != nil {
		return apperr.Newf(apperr.KindNotFound, "unknown blob %s", ref)
	}
	if err := os.WriteFile(s.path(ref)+".pin", nil, 0o644); err != nil {
		return apperr.Wrap(apperr.KindTransient, "pin blob", err)
	}
	return nil
}

// Get reads a blob back by reference.
func (s *Store) Get(ref string) ([]byte, error) {
	data, err := os.ReadFile(s.path(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Newf(apperr.KindNotFound, "unknown blob %s", ref)
		}
		return nil, apperr.Wrap(apperr.KindTransient, "read blob", err)
	}
	return data, nil
}

// Sweep deletes unpinned blobs older than maxAge and returns how many
// were removed.
func (s *Store) Sweep(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	err := filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		if filepath.Ext(path) == ".pin" || filepath.Ext(path) == ".tmp" {
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if _, err := os.Stat(path + ".pin"); err == nil {
			return nil
		}
		if err := os.Remove(path); err == nil {
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, apperr.Wrap(apperr.KindTransient, "sweep blobs", err)
	}
	return removed, nil
}

func (s *Store) path(ref string) string {
	if len(ref) < 2 {
		return filepath.Join(s.dir, ref)
	}
	// Two-character fan-out keeps directories small.
	return filepath.Join(s.dir, ref[:2], ref)
}

func (s *Store) String() string {
	return fmt.Sprintf("blob.Store(%s)", s.dir)
}
