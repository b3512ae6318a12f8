package storage

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/devpulse/internal/models"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := NewSQLiteStore(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func ts(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func TestCreateSegment(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		segment   *models.Segment
		wantError error
	}{
		{
			name:    "repositories segment",
			segment: &models.Segment{Name: "platform", Description: "Core platform repos", RepoIDs: []int64{3, 1, 3}},
		},
		{
			name:    "defaults kind",
			segment: &models.Segment{Name: "mobile"},
		},
		{
			name:      "duplicate name",
			segment:   &models.Segment{Name: "platform"},
			wantError: ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.CreateSegment(ctx, tt.segment)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, tt.segment.ID)
			assert.Equal(t, models.SegmentKindRepositories, tt.segment.Kind)
			assert.False(t, tt.segment.CreatedAt.IsZero())
		})
	}

	seg, err := store.GetSegment(ctx, tests[0].segment.ID)
	require.NoError(t, err)
	assert.Equal(t, "platform", seg.Name)
	assert.Equal(t, "Core platform repos", seg.Description)
	assert.Equal(t, []int64{1, 3}, seg.RepoIDs)
}

func TestGetSegment_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetSegment(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSegments(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	segs, err := store.ListSegments(ctx)
	require.NoError(t, err)
	assert.Empty(t, segs)

	require.NoError(t, store.CreateSegment(ctx, &models.Segment{Name: "zeta", RepoIDs: []int64{9}}))
	require.NoError(t, store.CreateSegment(ctx, &models.Segment{Name: "alpha", RepoIDs: []int64{2, 1}}))
	require.NoError(t, store.CreateSegment(ctx, &models.Segment{Name: "empty"}))

	segs, err = store.ListSegments(ctx)
	require.NoError(t, err)
	require.Len(t, segs, 3)
	assert.Equal(t, "alpha", segs[0].Name)
	assert.Equal(t, []int64{1, 2}, segs[0].RepoIDs)
	assert.Equal(t, "empty", segs[1].Name)
	assert.Empty(t, segs[1].RepoIDs)
	assert.Equal(t, []int64{9}, segs[2].RepoIDs)
}

func TestSegmentMembership(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	seg := &models.Segment{Name: "infra", RepoIDs: []int64{10}}
	require.NoError(t, store.CreateSegment(ctx, seg))

	require.NoError(t, store.AddSegmentRepos(ctx, seg.ID, []int64{20, 10, 30, 20}))
	ids, err := store.SegmentRepoIDs(ctx, seg.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30}, ids)

	require.NoError(t, store.RemoveSegmentRepo(ctx, seg.ID, 20))
	ids, err = store.SegmentRepoIDs(ctx, seg.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 30}, ids)

	assert.ErrorIs(t, store.RemoveSegmentRepo(ctx, seg.ID, 20), ErrNotFound)
	assert.ErrorIs(t, store.AddSegmentRepos(ctx, uuid.New(), []int64{1}), ErrNotFound)

	_, err = store.SegmentRepoIDs(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSegment(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	seg := &models.Segment{Name: "legacy", RepoIDs: []int64{1, 2}}
	require.NoError(t, store.CreateSegment(ctx, seg))

	require.NoError(t, store.DeleteSegment(ctx, seg.ID))
	_, err := store.GetSegment(ctx, seg.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.DeleteSegment(ctx, seg.ID), ErrNotFound)

	// Name is free again
	require.NoError(t, store.CreateSegment(ctx, &models.Segment{Name: "legacy"}))
}

func TestRepositories(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRepositories(ctx, []models.Repository{
		{ID: 2, Owner: "acme", Name: "web", FullName: "acme/web"},
		{ID: 1, Owner: "acme", Name: "api", FullName: "acme/api"},
	}))
	require.NoError(t, store.SaveRepositories(ctx, []models.Repository{
		{ID: 2, Owner: "acme", Name: "site", FullName: "acme/site"},
	}))

	repos, err := store.ListRepositories(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "acme/api", repos[0].FullName)
	assert.Equal(t, "acme/site", repos[1].FullName)
}

func seedActivity(t *testing.T, store *SQLiteStore) {
	ctx := context.Background()
	require.NoError(t, store.SaveAccounts(ctx, []models.Contributor{
		{ID: 1, Login: "ada", Type: models.AccountTypeUser},
		{ID: 2, Login: "grace", Type: models.AccountTypeUser},
		{ID: 3, Login: "dependabot", Type: models.AccountTypeBot},
	}))
	require.NoError(t, store.SaveCommits(ctx, []models.CommitFact{
		{SHA: "a1", AuthorID: 1, RepoID: 10, CreatedAt: ts(2023, time.January, 5, 9)},
		{SHA: "a1", AuthorID: 1, RepoID: 10, CreatedAt: ts(2023, time.January, 5, 9)},
		{SHA: "a2", AuthorID: 1, RepoID: 10, CreatedAt: ts(2023, time.January, 20, 9)},
		{SHA: "a3", AuthorID: 1, RepoID: 20, CreatedAt: ts(2023, time.March, 1, 0)},
		{SHA: "g1", AuthorID: 2, RepoID: 20, CreatedAt: ts(2022, time.December, 31, 23)},
		{SHA: "b1", AuthorID: 3, RepoID: 10, CreatedAt: ts(2023, time.January, 6, 9)},
	}))
	merged := ts(2023, time.February, 2, 12)
	require.NoError(t, store.SavePullRequests(ctx, []models.PullRequest{
		{ID: 100, AuthorID: 1, RepoID: 10, Status: models.PullRequestMerged, MergedAt: &merged},
		{ID: 101, AuthorID: 1, RepoID: 20, Status: models.PullRequestOpen},
		{ID: 102, AuthorID: 2, RepoID: 20, Status: models.PullRequestMerged, MergedAt: &merged},
	}))
}

func TestSQLiteSource_CommitFacts(t *testing.T) {
	store := setupTestStore(t)
	seedActivity(t, store)
	ctx := context.Background()

	tests := []struct {
		name  string
		scope models.RepoScope
		since time.Time
		want  []string
	}{
		{"all repos", models.AllRepos(), ts(2023, time.January, 1, 0), []string{"a1", "a2", "a3"}},
		{"since is inclusive", models.AllRepos(), ts(2023, time.March, 1, 0), []string{"a3"}},
		{"restricted", models.Repos(20), ts(2022, time.January, 1, 0), []string{"a3", "g1"}},
		{"unknown repo", models.Repos(99), ts(2022, time.January, 1, 0), nil},
		{"empty scope", models.Repos(), ts(2022, time.January, 1, 0), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts, err := store.CommitFacts(ctx, tt.scope, tt.since)
			require.NoError(t, err)

			var shas []string
			for _, f := range facts {
				shas = append(shas, f.SHA)
			}
			assert.ElementsMatch(t, tt.want, shas)
		})
	}
}

func TestSQLiteSource_ContributorMonths(t *testing.T) {
	store := setupTestStore(t)
	seedActivity(t, store)

	rows, err := store.ContributorMonths(context.Background(), models.AllRepos(), ts(2023, time.April, 1, 0))
	require.NoError(t, err)

	var got []string
	for _, r := range rows {
		got = append(got, r.Month.String())
	}
	assert.ElementsMatch(t, []string{"2023-01", "2023-03", "2022-12"}, got)

	rows, err = store.ContributorMonths(context.Background(), models.Repos(10), ts(2023, time.February, 1, 0))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].AuthorID)
}

func TestSQLiteSource_MergedPullRequests(t *testing.T) {
	store := setupTestStore(t)
	seedActivity(t, store)
	ctx := context.Background()

	prs, err := store.MergedPullRequests(ctx, models.AllRepos(), ts(2023, time.January, 1, 0))
	require.NoError(t, err)
	assert.Len(t, prs, 2)

	prs, err = store.MergedPullRequests(ctx, models.Repos(10), ts(2023, time.January, 1, 0))
	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.Equal(t, int64(100), prs[0].ID)

	prs, err = store.MergedPullRequests(ctx, models.AllRepos(), ts(2023, time.March, 1, 0))
	require.NoError(t, err)
	assert.Empty(t, prs)
}

func TestSchema(t *testing.T) {
	for _, driver := range []string{"postgres", "sqlite"} {
		ddl, err := Schema(driver)
		require.NoError(t, err)
		assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS segments")
	}
	_, err := Schema("mysql")
	assert.Error(t, err)
}
