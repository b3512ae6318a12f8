package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/devpulse/internal/models"
)

// SQLiteStore implements storage using SQLite (for local/development).
// It keeps a local copy of the indexer tables, so it also serves as an
// analytics source when no Postgres indexer is available.
type SQLiteStore struct {
	*sqlStore
}

// NewSQLiteStore creates a new SQLite storage
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLiteStore, error) {
	if path != ":memory:" {
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	// One connection: keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)
	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	store := &SQLiteStore{&sqlStore{db: db, logger: logger, isUnique: isSQLiteUniqueViolation}}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema, err := Schema("sqlite")
	if err != nil {
		return err
	}
	_, err = s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateSegment(ctx context.Context, seg *models.Segment) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.insertSegment(ctx, tx, seg); err != nil {
		return err
	}
	seg.RepoIDs = dedupe(seg.RepoIDs)
	if err := insertMembersTx(ctx, tx, seg.ID, seg.RepoIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) AddSegmentRepos(ctx context.Context, id uuid.UUID, repoIDs []int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.segmentExists(ctx, tx, id); err != nil {
		return err
	}
	if err := insertMembersTx(ctx, tx, id, dedupe(repoIDs)); err != nil {
		return err
	}
	s.touch(ctx, tx, id)
	return tx.Commit()
}

func insertMembersTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, repoIDs []int64) error {
	query := `INSERT OR IGNORE INTO segment_repositories (segment_id, repo_id) VALUES (?, ?)`
	for _, repoID := range repoIDs {
		if _, err := tx.ExecContext(ctx, query, id.String(), repoID); err != nil {
			return fmt.Errorf("add segment repository %d: %w", repoID, err)
		}
	}
	return nil
}

func (s *SQLiteStore) SaveRepositories(ctx context.Context, repos []models.Repository) error {
	query := `INSERT OR REPLACE INTO github_repositories (id, owner, name, full_name) VALUES (:id, :owner, :name, :full_name)`
	return s.batch(ctx, "repositories", len(repos), func(tx *sqlx.Tx, i int) error {
		_, err := tx.NamedExecContext(ctx, query, repos[i])
		return err
	})
}

// SaveAccounts upserts indexer accounts
func (s *SQLiteStore) SaveAccounts(ctx context.Context, accounts []models.Contributor) error {
	query := `INSERT OR REPLACE INTO github_accounts (id, login, type) VALUES (:id, :login, :type)`
	return s.batch(ctx, "accounts", len(accounts), func(tx *sqlx.Tx, i int) error {
		_, err := tx.NamedExecContext(ctx, query, accounts[i])
		return err
	})
}

// SaveCommits inserts commits, ignoring ones already present
func (s *SQLiteStore) SaveCommits(ctx context.Context, commits []models.CommitFact) error {
	query := `INSERT OR IGNORE INTO github_commits (sha, author_id, repo_id, created_at) VALUES (?, ?, ?, ?)`
	return s.batch(ctx, "commits", len(commits), func(tx *sqlx.Tx, i int) error {
		c := commits[i]
		_, err := tx.ExecContext(ctx, query, c.SHA, c.AuthorID, c.RepoID, c.CreatedAt.UTC())
		return err
	})
}

// SavePullRequests upserts pull requests
func (s *SQLiteStore) SavePullRequests(ctx context.Context, prs []models.PullRequest) error {
	query := `INSERT OR REPLACE INTO github_pull_requests (id, author_id, repo_id, status, merged_at) VALUES (?, ?, ?, ?, ?)`
	return s.batch(ctx, "pull requests", len(prs), func(tx *sqlx.Tx, i int) error {
		pr := prs[i]
		var mergedAt interface{}
		if pr.MergedAt != nil {
			mergedAt = pr.MergedAt.UTC()
		}
		_, err := tx.ExecContext(ctx, query, pr.ID, pr.AuthorID, pr.RepoID, string(pr.Status), mergedAt)
		return err
	})
}

// batch runs n inserts in one transaction
func (s *SQLiteStore) batch(ctx context.Context, what string, n int, insert func(tx *sqlx.Tx, i int) error) error {
	if n == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := 0; i < n; i++ {
		if err := insert(tx, i); err != nil {
			return fmt.Errorf("save %s: %w", what, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", what, err)
	}

	s.logger.WithField("count", n).Debugf("%s saved", what)
	return nil
}

// scoped appends the repository filter to query, expanding ids with sqlx.In
func (s *SQLiteStore) scoped(query, column string, scope models.RepoScope, args ...interface{}) (string, []interface{}, error) {
	if !scope.Restricted {
		return query, args, nil
	}
	q, a, err := sqlx.In(query+" AND "+column+" IN (?)", append(args, scope.RepoIDs)...)
	if err != nil {
		return "", nil, fmt.Errorf("expand repository filter: %w", err)
	}
	return s.db.Rebind(q), a, nil
}

// CommitFacts returns USER-authored commits created at or after since
func (s *SQLiteStore) CommitFacts(ctx context.Context, scope models.RepoScope, since time.Time) ([]models.CommitFact, error) {
	if scope.IsEmpty() {
		return nil, nil
	}
	query, args, err := s.scoped(`
		SELECT DISTINCT c.sha, c.author_id, c.repo_id, c.created_at
		FROM github_commits c
		JOIN github_accounts a ON a.id = c.author_id
		WHERE a.type = 'USER' AND c.created_at >= ?`, "c.repo_id", scope, since.UTC())
	if err != nil {
		return nil, err
	}

	var facts []models.CommitFact
	if err := s.db.SelectContext(ctx, &facts, query, args...); err != nil {
		return nil, fmt.Errorf("query commit facts: %w", err)
	}
	return facts, nil
}

// ContributorMonths returns every distinct (author, month) with a USER commit before the given time
func (s *SQLiteStore) ContributorMonths(ctx context.Context, scope models.RepoScope, before time.Time) ([]models.ContributorMonth, error) {
	if scope.IsEmpty() {
		return nil, nil
	}
	query, args, err := s.scoped(`
		SELECT DISTINCT c.author_id, c.created_at
		FROM github_commits c
		JOIN github_accounts a ON a.id = c.author_id
		WHERE a.type = 'USER' AND c.created_at < ?`, "c.repo_id", scope, before.UTC())
	if err != nil {
		return nil, err
	}

	var rows []struct {
		AuthorID  int64     `db:"author_id"`
		CreatedAt time.Time `db:"created_at"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query contributor months: %w", err)
	}

	set := models.NewContributorMonthSet()
	for _, r := range rows {
		set.Add(r.AuthorID, r.CreatedAt)
	}
	return set.Rows(), nil
}

// MergedPullRequests returns MERGED pull requests merged at or after since
func (s *SQLiteStore) MergedPullRequests(ctx context.Context, scope models.RepoScope, since time.Time) ([]models.PullRequestFact, error) {
	if scope.IsEmpty() {
		return nil, nil
	}
	query, args, err := s.scoped(`
		SELECT DISTINCT p.id, p.repo_id, p.merged_at
		FROM github_pull_requests p
		WHERE p.status = 'MERGED' AND p.merged_at IS NOT NULL AND p.merged_at >= ?`, "p.repo_id", scope, since.UTC())
	if err != nil {
		return nil, err
	}

	var prs []models.PullRequestFact
	if err := s.db.SelectContext(ctx, &prs, query, args...); err != nil {
		return nil, fmt.Errorf("query merged pull requests: %w", err)
	}
	return prs, nil
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
