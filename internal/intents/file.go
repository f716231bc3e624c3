package intents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"zelton/internal/payments"
)

// FileStore keeps all in-flight intents in one JSON document, replaced
// atomically on every write.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create intent dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) load() (map[string]payments.Intent, error) {
	records := make(map[string]payments.Intent)

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return records, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read intents: %w", err)
	}
	if len(raw) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode intents: %w", err)
	}
	return records, nil
}

func (s *FileStore) write(records map[string]payments.Intent) error {
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode intents: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write intents: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace intents: %w", err)
	}
	return nil
}

func (s *FileStore) Save(_ context.Context, intent payments.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	records[intent.OrderID] = intent
	return s.write(records)
}

func (s *FileStore) Get(_ context.Context, orderID string) (*payments.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	intent, ok := records[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return &intent, nil
}

func (s *FileStore) Delete(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := records[orderID]; !ok {
		return nil
	}
	delete(records, orderID)
	return s.write(records)
}

// List returns intents oldest first.
func (s *FileStore) List(_ context.Context) ([]payments.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]payments.Intent, 0, len(records))
	for _, in := range records {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrderID < out[j].OrderID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
