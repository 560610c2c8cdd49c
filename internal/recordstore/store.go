// Package recordstore persists which items have already been filed, so a
// re-dragged email or document is skipped instead of filed twice.
package recordstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"sync"
	"time"
)

var (
	ErrInvalidInput = errors.New("invalid input")
)

// FiledRecord is one deduplication entry: the content fingerprint of a filed
// item plus where it went.
type FiledRecord struct {
	Fingerprint     string
	SourceName      string
	DestinationPath string
	FiledAt         time.Time
}

type Store interface {
	WasFiled(ctx context.Context, fingerprint string) (bool, error)
	MarkFiled(ctx context.Context, rec FiledRecord) error
	Close() error
}

// Fingerprint hashes item content for deduplication.
func Fingerprint(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

type MemoryStore struct {
	mu      sync.Mutex
	records map[string]FiledRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]FiledRecord{}}
}

func (s *MemoryStore) WasFiled(ctx context.Context, fingerprint string) (bool, error) {
	if fingerprint == "" {
		return false, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[fingerprint]
	return ok, nil
}

func (s *MemoryStore) MarkFiled(ctx context.Context, rec FiledRecord) error {
	if rec.Fingerprint == "" {
		return ErrInvalidInput
	}
	if rec.FiledAt.IsZero() {
		rec.FiledAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.Fingerprint]; !exists {
		s.records[rec.Fingerprint] = rec
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
