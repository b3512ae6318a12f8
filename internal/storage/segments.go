package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/devpulse/internal/models"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Schema returns the DDL for the named driver ("postgres" or "sqlite")
func Schema(driver string) (string, error) {
	b, err := schemaFS.ReadFile("schema/" + driver + ".sql")
	if err != nil {
		return "", fmt.Errorf("no schema for %q", driver)
	}
	return string(b), nil
}

// sqlStore holds the segment queries both drivers share. Queries are written
// with ? placeholders and rebound for the driver.
type sqlStore struct {
	db       *sqlx.DB
	logger   *logrus.Logger
	isUnique func(error) bool
}

const segmentColumns = `id, name, description, kind, created_at, updated_at`

// insertSegment writes the segment row inside tx, assigning its id and timestamps
func (s *sqlStore) insertSegment(ctx context.Context, tx *sqlx.Tx, seg *models.Segment) error {
	if seg.Kind == "" {
		seg.Kind = models.SegmentKindRepositories
	}
	if seg.ID == uuid.Nil {
		seg.ID = uuid.New()
	}
	now := time.Now().UTC()
	seg.CreatedAt, seg.UpdatedAt = now, now

	query := tx.Rebind(`INSERT INTO segments (` + segmentColumns + `) VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := tx.ExecContext(ctx, query,
		seg.ID.String(), seg.Name, seg.Description, string(seg.Kind), seg.CreatedAt, seg.UpdatedAt)
	if err != nil {
		if s.isUnique(err) {
			return fmt.Errorf("segment %q: %w", seg.Name, ErrConflict)
		}
		return fmt.Errorf("insert segment: %w", err)
	}
	return nil
}

func (s *sqlStore) GetSegment(ctx context.Context, id uuid.UUID) (*models.Segment, error) {
	var seg models.Segment
	query := s.db.Rebind(`SELECT ` + segmentColumns + ` FROM segments WHERE id = ?`)
	if err := s.db.GetContext(ctx, &seg, query, id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get segment: %w", err)
	}

	ids, err := s.repoIDs(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	seg.RepoIDs = ids
	return &seg, nil
}

func (s *sqlStore) ListSegments(ctx context.Context) ([]*models.Segment, error) {
	var segs []*models.Segment
	if err := s.db.SelectContext(ctx, &segs, `SELECT `+segmentColumns+` FROM segments ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	if len(segs) == 0 {
		return segs, nil
	}

	var members []struct {
		SegmentID string `db:"segment_id"`
		RepoID    int64  `db:"repo_id"`
	}
	if err := s.db.SelectContext(ctx, &members,
		`SELECT segment_id, repo_id FROM segment_repositories ORDER BY repo_id`); err != nil {
		return nil, fmt.Errorf("list segment repositories: %w", err)
	}

	byID := make(map[string]*models.Segment, len(segs))
	for _, seg := range segs {
		seg.RepoIDs = []int64{}
		byID[seg.ID.String()] = seg
	}
	for _, m := range members {
		if seg, ok := byID[m.SegmentID]; ok {
			seg.RepoIDs = append(seg.RepoIDs, m.RepoID)
		}
	}
	return segs, nil
}

func (s *sqlStore) DeleteSegment(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM segment_repositories WHERE segment_id = ?`), id.String()); err != nil {
		return fmt.Errorf("delete segment repositories: %w", err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM segments WHERE id = ?`), id.String())
	if err != nil {
		return fmt.Errorf("delete segment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *sqlStore) RemoveSegmentRepo(ctx context.Context, id uuid.UUID, repoID int64) error {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`DELETE FROM segment_repositories WHERE segment_id = ? AND repo_id = ?`), id.String(), repoID)
	if err != nil {
		return fmt.Errorf("remove segment repository: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.touch(ctx, s.db, id)
	return nil
}

func (s *sqlStore) SegmentRepoIDs(ctx context.Context, id uuid.UUID) ([]int64, error) {
	if err := s.segmentExists(ctx, s.db, id); err != nil {
		return nil, err
	}
	return s.repoIDs(ctx, s.db, id)
}

func (s *sqlStore) ListRepositories(ctx context.Context) ([]models.Repository, error) {
	var repos []models.Repository
	if err := s.db.SelectContext(ctx, &repos,
		`SELECT id, owner, name, full_name FROM github_repositories ORDER BY full_name`); err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	return repos, nil
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) segmentExists(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) error {
	var n int
	err := sqlx.GetContext(ctx, q, &n, s.db.Rebind(`SELECT COUNT(*) FROM segments WHERE id = ?`), id.String())
	if err != nil {
		return fmt.Errorf("check segment: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) repoIDs(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) ([]int64, error) {
	ids := []int64{}
	err := sqlx.SelectContext(ctx, q, &ids,
		s.db.Rebind(`SELECT repo_id FROM segment_repositories WHERE segment_id = ? ORDER BY repo_id`), id.String())
	if err != nil {
		return nil, fmt.Errorf("load segment repositories: %w", err)
	}
	return ids, nil
}

// touch bumps updated_at. Failures are logged, not returned.
func (s *sqlStore) touch(ctx context.Context, e sqlx.ExecerContext, id uuid.UUID) {
	if _, err := e.ExecContext(ctx, s.db.Rebind(`UPDATE segments SET updated_at = ? WHERE id = ?`),
		time.Now().UTC(), id.String()); err != nil {
		s.logger.WithError(err).WithField("segment_id", id).Warn("failed to update segment timestamp")
	}
}

// dedupe returns ids sorted with duplicates removed
func dedupe(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, id := range out {
		if i > 0 && id == out[n-1] {
			continue
		}
		out[n] = id
		n++
	}
	return out[:n]
}
