package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const (
	inputDir  = "original"
	targetDir = "target_images"
)

// LocalStore writes downloaded photos to the local filesystem. Source
// photos and custom target uploads live in separate directories so a
// target is never fed back through the model as an input.
type LocalStore struct {
	baseDir string
}

func NewLocalStore(baseDir string) (*LocalStore, error) {
	for _, dir := range []string{inputDir, targetDir} {
		if err := os.MkdirAll(filepath.Join(baseDir, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage dir %s: %w", dir, err)
		}
	}
	return &LocalStore{baseDir: baseDir}, nil
}

func (s *LocalStore) SaveInput(ctx context.Context, userID int64, target bool, data []byte) (string, error) {
	dir := inputDir
	if target {
		dir = targetDir
	}

	name := fmt.Sprintf("%d_%s.jpg", userID, uuid.New().String())
	path := filepath.Join(s.baseDir, dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write asset %s: %w", path, err)
	}
	return path, nil
}
