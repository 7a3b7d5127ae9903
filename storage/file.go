package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ruteri/timelock-vault/interfaces"
)

// FileStore keeps one file per vault record under baseDir/vaults.
type FileStore struct {
	baseDir     string
	recordDir   string
	log         *slog.Logger
	locationURI string
}

// NewFileStore creates a file store rooted at baseDir, creating it if needed.
func NewFileStore(baseDir string, log *slog.Logger) (*FileStore, error) {
	recordDir := filepath.Join(baseDir, "vaults")
	if err := os.MkdirAll(recordDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create record directory: %w", err)
	}

	return &FileStore{
		baseDir:     baseDir,
		recordDir:   recordDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

// Load reads the record stored at addr.
func (b *FileStore) Load(ctx context.Context, addr interfaces.Address) ([]byte, error) {
	filePath := b.recordPath(addr)

	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, interfaces.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	b.log.Debug("Loaded record from file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))
	return data, nil
}

// Save replaces the record at addr. The write goes through a temporary file
// and a rename so readers never observe a partial record.
func (b *FileStore) Save(ctx context.Context, addr interfaces.Address, data []byte) error {
	filePath := b.recordPath(addr)

	tmp, err := os.CreateTemp(b.recordDir, ".record-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	b.log.Debug("Saved record to file", slog.String("path", filePath))
	return nil
}

// Available checks that the record directory exists.
func (b *FileStore) Available(ctx context.Context) bool {
	if _, err := os.Stat(b.recordDir); err != nil {
		b.log.Debug("File store unavailable", "err", err)
		return false
	}
	return true
}

func (b *FileStore) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.baseDir))
}

func (b *FileStore) LocationURI() string {
	return b.locationURI
}

func (b *FileStore) recordPath(addr interfaces.Address) string {
	return filepath.Join(b.recordDir, addr.String())
}
