package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vitebski/petsync/pkg/models"
)

// ErrContractNotFound is returned when no mapping contract has been persisted yet
var ErrContractNotFound = errors.New("mapping contract not found")

// Store persists the mapping contract, keyed by column name. Save replaces
// the whole contract; Load returns exactly what the last Save wrote.
type Store interface {
	Load(ctx context.Context) (models.Contract, error)
	Save(ctx context.Context, contract models.Contract) error
}

// FileStore keeps the contract as a single JSON document
type FileStore struct {
	Path string
}

// NewFileStore creates a store backed by the JSON file at path
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads the contract file
func (fs *FileStore) Load(ctx context.Context) (models.Contract, error) {
	data, err := os.ReadFile(fs.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrContractNotFound, fs.Path)
		}
		return nil, fmt.Errorf("read contract: %w", err)
	}

	contract := models.Contract{}
	if err := json.Unmarshal(data, &contract); err != nil {
		return nil, fmt.Errorf("decode contract %s: %w", fs.Path, err)
	}
	return contract, nil
}

// Save overwrites the contract file through a temporary file and rename
func (fs *FileStore) Save(ctx context.Context, contract models.Contract) error {
	if contract == nil {
		contract = models.Contract{}
	}
	data, err := json.Marshal(contract)
	if err != nil {
		return fmt.Errorf("encode contract: %w", err)
	}

	dir := filepath.Dir(fs.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create contract directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(fs.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp contract: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write contract: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close contract: %w", err)
	}
	return os.Rename(tmp.Name(), fs.Path)
}

// OpenStore opens the contract store of a configured backend. The returned
// close function releases the backend and is never nil.
func OpenStore(backend, path string) (Store, func() error, error) {
	switch backend {
	case "file", "":
		return NewFileStore(path), func() error { return nil }, nil
	case "sqlite":
		s, err := OpenSQLiteStore(path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported contract backend: %s", backend)
	}
}
