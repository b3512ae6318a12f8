package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/devpulse/internal/config"
	"github.com/rohankatakam/devpulse/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Store persists segments and the repository catalog
type Store interface {
	// Segment operations
	CreateSegment(ctx context.Context, seg *models.Segment) error
	GetSegment(ctx context.Context, id uuid.UUID) (*models.Segment, error)
	ListSegments(ctx context.Context) ([]*models.Segment, error)
	DeleteSegment(ctx context.Context, id uuid.UUID) error

	// Segment membership
	AddSegmentRepos(ctx context.Context, id uuid.UUID, repoIDs []int64) error
	RemoveSegmentRepo(ctx context.Context, id uuid.UUID, repoID int64) error
	SegmentRepoIDs(ctx context.Context, id uuid.UUID) ([]int64, error)

	// Repository catalog
	SaveRepositories(ctx context.Context, repos []models.Repository) error
	ListRepositories(ctx context.Context) ([]models.Repository, error)

	// Close connection
	Close() error
}

// Open returns the store selected by cfg.Type
func Open(cfg config.StorageConfig, logger *logrus.Logger) (Store, error) {
	switch cfg.Type {
	case "postgres":
		return NewPostgresStore(cfg.PostgresDSN, logger)
	case "sqlite", "":
		return NewSQLiteStore(cfg.LocalPath, logger)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
