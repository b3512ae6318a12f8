package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rohankatakam/devpulse/internal/logging"
	"github.com/rohankatakam/devpulse/internal/models"
)

// Client reads the indexer schema (github_* tables) through one shared pgx pool.
// Construct it once at startup and pass it to whatever needs it.
type Client struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewClient creates the connection pool and verifies connectivity
func NewClient(ctx context.Context, dsn string, maxConns int32) (*Client, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn missing")
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres at %s:%d: %w",
			poolCfg.ConnConfig.Host, poolCfg.ConnConfig.Port, err)
	}

	logger := logging.Component("postgres")
	logger.Info("postgres client connected",
		"host", poolCfg.ConnConfig.Host,
		"database", poolCfg.ConnConfig.Database,
		"max_conns", poolCfg.MaxConns)

	return &Client{pool: pool, logger: logger}, nil
}

// Close closes the PostgreSQL connection pool
func (c *Client) Close() {
	c.pool.Close()
	c.logger.Info("postgres client closed")
}

// HealthCheck verifies PostgreSQL connectivity
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres health check failed: %w", err)
	}
	return nil
}

// WithAdvisoryLock runs fn while holding a session advisory lock on one pinned
// connection. It returns false without running fn if another session holds the lock.
func (c *Client) WithAdvisoryLock(ctx context.Context, key int64, fn func(ctx context.Context) error) (bool, error) {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection for advisory lock: %w", err)
	}
	defer conn.Release()

	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok); err != nil {
		return false, fmt.Errorf("try advisory lock %d: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	defer func() {
		// Unlock on a fresh context so a cancelled run still releases the lock
		if _, err := conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", key); err != nil {
			c.logger.Warn("advisory unlock failed", "key", key, "error", err)
		}
	}()

	return true, fn(ctx)
}

// Every analytics query binds the repository filter as $1.
// A NULL array means no filter; ids are never interpolated into SQL text.
const (
	commitRepoFilter = `($1::bigint[] IS NULL OR c.repo_id = ANY($1::bigint[]))`
	prRepoFilter     = `($1::bigint[] IS NULL OR p.repo_id = ANY($1::bigint[]))`
)

const commitFactsQuery = `
	SELECT DISTINCT c.sha, c.author_id, c.repo_id, c.created_at
	FROM github_commits c
	JOIN github_accounts a ON a.id = c.author_id
	WHERE a.type = 'USER'
	  AND c.created_at >= $2
	  AND ` + commitRepoFilter

const contributorMonthsQuery = `
	SELECT DISTINCT c.author_id, c.created_at
	FROM github_commits c
	JOIN github_accounts a ON a.id = c.author_id
	WHERE a.type = 'USER'
	  AND c.created_at < $2
	  AND ` + commitRepoFilter

const mergedPullRequestsQuery = `
	SELECT DISTINCT p.id, p.repo_id, p.merged_at
	FROM github_pull_requests p
	WHERE p.status = 'MERGED'
	  AND p.merged_at IS NOT NULL
	  AND p.merged_at >= $2
	  AND ` + prRepoFilter

// CommitFacts returns USER-authored commits created at or after since
func (c *Client) CommitFacts(ctx context.Context, scope models.RepoScope, since time.Time) ([]models.CommitFact, error) {
	if scope.IsEmpty() {
		return nil, nil
	}

	start := time.Now()
	rows, err := c.pool.Query(ctx, commitFactsQuery, scope.Filter(), since)
	if err != nil {
		return nil, fmt.Errorf("query commit facts: %w", err)
	}
	defer rows.Close()

	var facts []models.CommitFact
	for rows.Next() {
		var f models.CommitFact
		if err := rows.Scan(&f.SHA, &f.AuthorID, &f.RepoID, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan commit fact: %w", err)
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commit facts: %w", err)
	}

	c.logger.Debug("commit facts loaded", "scope", scope.Key(), "rows", len(facts), "duration_ms", time.Since(start).Milliseconds())
	return facts, nil
}

// ContributorMonths returns every distinct (author, month) with a USER commit before the given time
func (c *Client) ContributorMonths(ctx context.Context, scope models.RepoScope, before time.Time) ([]models.ContributorMonth, error) {
	if scope.IsEmpty() {
		return nil, nil
	}

	rows, err := c.pool.Query(ctx, contributorMonthsQuery, scope.Filter(), before)
	if err != nil {
		return nil, fmt.Errorf("query contributor months: %w", err)
	}
	defer rows.Close()

	// Bucketed here so the month boundary is UTC whatever the column type
	set := models.NewContributorMonthSet()
	for rows.Next() {
		var (
			authorID  int64
			createdAt time.Time
		)
		if err := rows.Scan(&authorID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan contributor month: %w", err)
		}
		set.Add(authorID, createdAt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contributor months: %w", err)
	}
	return set.Rows(), nil
}

// MergedPullRequests returns MERGED pull requests merged at or after since
func (c *Client) MergedPullRequests(ctx context.Context, scope models.RepoScope, since time.Time) ([]models.PullRequestFact, error) {
	if scope.IsEmpty() {
		return nil, nil
	}

	rows, err := c.pool.Query(ctx, mergedPullRequestsQuery, scope.Filter(), since)
	if err != nil {
		return nil, fmt.Errorf("query merged pull requests: %w", err)
	}
	defer rows.Close()

	var out []models.PullRequestFact
	for rows.Next() {
		var pr models.PullRequestFact
		if err := rows.Scan(&pr.ID, &pr.RepoID, &pr.MergedAt); err != nil {
			return nil, fmt.Errorf("scan merged pull request: %w", err)
		}
		out = append(out, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate merged pull requests: %w", err)
	}
	return out, nil
}
