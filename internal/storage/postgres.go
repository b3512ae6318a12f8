package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/devpulse/internal/models"
)

// PostgresStore implements storage using PostgreSQL
type PostgresStore struct {
	*sqlStore
}

// NewPostgresStore creates a new PostgreSQL storage
func NewPostgresStore(dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn missing")
	}
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresStore{&sqlStore{db: db, logger: logger, isUnique: isPgUniqueViolation}}, nil
}

// Migrate applies the segment schema
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema, err := Schema("postgres")
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	s.logger.Info("postgres segment schema applied")
	return nil
}

func (s *PostgresStore) CreateSegment(ctx context.Context, seg *models.Segment) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.insertSegment(ctx, tx, seg); err != nil {
		return err
	}
	seg.RepoIDs = dedupe(seg.RepoIDs)
	if err := s.insertMembers(ctx, tx, seg.ID, seg.RepoIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) AddSegmentRepos(ctx context.Context, id uuid.UUID, repoIDs []int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.segmentExists(ctx, tx, id); err != nil {
		return err
	}
	if err := s.insertMembers(ctx, tx, id, dedupe(repoIDs)); err != nil {
		return err
	}
	s.touch(ctx, tx, id)
	return tx.Commit()
}

// insertMembers adds every repo id in one statement, ignoring existing rows
func (s *PostgresStore) insertMembers(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, repoIDs []int64) error {
	if len(repoIDs) == 0 {
		return nil
	}
	query := `
		INSERT INTO segment_repositories (segment_id, repo_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT (segment_id, repo_id) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, query, id.String(), pq.Array(repoIDs)); err != nil {
		return fmt.Errorf("add segment repositories: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveRepositories(ctx context.Context, repos []models.Repository) error {
	if len(repos) == 0 {
		return nil
	}

	ids := make([]int64, len(repos))
	owners := make([]string, len(repos))
	names := make([]string, len(repos))
	fullNames := make([]string, len(repos))
	for i, r := range repos {
		ids[i], owners[i], names[i], fullNames[i] = r.ID, r.Owner, r.Name, r.FullName
	}

	query := `
		INSERT INTO github_repositories (id, owner, name, full_name)
		SELECT * FROM unnest($1::bigint[], $2::text[], $3::text[], $4::text[])
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			name = EXCLUDED.name,
			full_name = EXCLUDED.full_name
	`
	if _, err := s.db.ExecContext(ctx, query,
		pq.Array(ids), pq.Array(owners), pq.Array(names), pq.Array(fullNames)); err != nil {
		return fmt.Errorf("save repositories: %w", err)
	}

	s.logger.WithField("count", len(repos)).Debug("repositories saved")
	return nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
