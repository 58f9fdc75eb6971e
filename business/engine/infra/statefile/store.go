// Package statefile persists strategy parameters as a JSON file so restarts
// resume with the operator's last settings.
package statefile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/flowsniper/flowsniper/business/engine/domain"
)

// Store reads and writes the params file. Writes go through a temp file and
// rename so a crash never leaves a torn file behind.
type Store struct {
	path string
}

// NewStore creates a store at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted params. A missing file returns (nil, nil): first
// boot runs on configured defaults.
func (s *Store) Load() (*domain.Params, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read params file: %w", err)
	}

	var params domain.Params
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("parse params file %s: %w", s.path, err)
	}
	return &params, nil
}

// Save writes params atomically.
func (s *Store) Save(params domain.Params) error {
	data, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".params-*.json")
	if err != nil {
		return fmt.Errorf("create temp params file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write params: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close params file: %w", err)
	}

	return os.Rename(tmp.Name(), s.path)
}
