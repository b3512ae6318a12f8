package dashboard

import (
	"context"
	stderrors "errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/devpulse/internal/cache"
	"github.com/rohankatakam/devpulse/internal/errors"
	"github.com/rohankatakam/devpulse/internal/models"
	"github.com/rohankatakam/devpulse/internal/storage"
)

// fakeMetrics records calls per operation and scope
type fakeMetrics struct {
	mu      sync.Mutex
	month   models.Month
	calls   map[string]int
	failOp  string
	commits int
}

func newFakeMetrics(month string) *fakeMetrics {
	m, _ := models.ParseMonth(month)
	return &fakeMetrics{month: m, calls: make(map[string]int)}
}

func (f *fakeMetrics) record(op string, scope models.RepoScope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op+"|"+scope.Key()]++
	if op == f.failOp {
		return errors.FetchError(stderrors.New("connection reset"), op)
	}
	return nil
}

func (f *fakeMetrics) count(op string, scope models.RepoScope) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op+"|"+scope.Key()]
}

func (f *fakeMetrics) CurrentMonth() models.Month {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.month
}

func (f *fakeMetrics) KPIs(ctx context.Context, scope models.RepoScope) (models.KPISnapshot, error) {
	if err := f.record("kpis", scope); err != nil {
		return models.KPISnapshot{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.KPISnapshot{TotalCommits: f.commits}, nil
}

func (f *fakeMetrics) DeveloperActivity(ctx context.Context, scope models.RepoScope) ([]models.TierBreakdown, error) {
	return []models.TierBreakdown{{Month: f.CurrentMonth(), FullTime: 1}}, f.record("developer-activity", scope)
}

func (f *fakeMetrics) CommitsByDevType(ctx context.Context, scope models.RepoScope) ([]models.CommitsByTier, error) {
	return []models.CommitsByTier{{Month: f.CurrentMonth(), Total: 2}}, f.record("commits-by-dev-type", scope)
}

func (f *fakeMetrics) MonthlyCommits(ctx context.Context, scope models.RepoScope) ([]models.MonthlyCount, error) {
	return []models.MonthlyCount{{Month: f.CurrentMonth(), Count: 3}}, f.record("monthly-commits", scope)
}

func (f *fakeMetrics) MonthlyPRsMerged(ctx context.Context, scope models.RepoScope) ([]models.MonthlyCount, error) {
	return []models.MonthlyCount{{Month: f.CurrentMonth(), Count: 4}}, f.record("monthly-prs-merged", scope)
}

func (f *fakeMetrics) DevActivity(ctx context.Context, scope models.RepoScope) ([]models.DevActivityPoint, error) {
	return []models.DevActivityPoint{{Month: f.CurrentMonth(), New: 1, TotalActive: 1}}, f.record("dev-activity", scope)
}

func (f *fakeMetrics) Cadence(ctx context.Context, scope models.RepoScope) ([]models.CadencePoint, error) {
	return []models.CadencePoint{{Month: f.CurrentMonth(), Contributors: 1, Mean: 5}}, f.record("cadence", scope)
}

func setupService(t *testing.T, metrics *fakeMetrics) (*Service, *storage.SQLiteStore) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := storage.NewSQLiteStore(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return NewService(metrics, store, cache.NewManager(time.Minute, 0, nil)), store
}

func TestService_CachesPerScopeAndMonth(t *testing.T) {
	metrics := newFakeMetrics("2024-05")
	svc, _ := setupService(t, metrics)
	ctx := context.Background()

	all, scoped := models.AllRepos(), models.Repos(2, 1)
	for i := 0; i < 3; i++ {
		_, err := svc.KPIs(ctx, all)
		require.NoError(t, err)
		_, err = svc.KPIs(ctx, scoped)
		require.NoError(t, err)
	}
	_, err := svc.KPIs(ctx, models.Repos(1, 2, 2))
	require.NoError(t, err)

	assert.Equal(t, 1, metrics.count("kpis", all))
	assert.Equal(t, 1, metrics.count("kpis", scoped), "equivalent id lists share a key")

	// New month, new key
	metrics.mu.Lock()
	metrics.month = metrics.month.Add(1)
	metrics.mu.Unlock()
	_, err = svc.KPIs(ctx, all)
	require.NoError(t, err)
	assert.Equal(t, 2, metrics.count("kpis", all))
}

func TestService_ErrorsAreNotCached(t *testing.T) {
	metrics := newFakeMetrics("2024-05")
	metrics.failOp = "monthly-commits"
	svc, _ := setupService(t, metrics)
	ctx := context.Background()

	_, err := svc.MonthlyCommits(ctx, models.AllRepos())
	require.Error(t, err)
	assert.Equal(t, "failed to fetch monthly-commits", err.Error())

	metrics.failOp = ""
	got, err := svc.MonthlyCommits(ctx, models.AllRepos())
	require.NoError(t, err)
	assert.Equal(t, 3, got[0].Count)
	assert.Equal(t, 2, metrics.count("monthly-commits", models.AllRepos()))
}

func TestService_Overview(t *testing.T) {
	metrics := newFakeMetrics("2024-05")
	metrics.commits = 42
	svc, _ := setupService(t, metrics)
	ctx := context.Background()

	ov, err := svc.Overview(ctx, models.AllRepos())
	require.NoError(t, err)
	assert.Equal(t, 42, ov.KPIs.TotalCommits)
	assert.Len(t, ov.DeveloperActivity, 1)
	assert.Len(t, ov.CommitsByDevType, 1)
	assert.Len(t, ov.MonthlyCommits, 1)
	assert.Len(t, ov.MonthlyPRsMerged, 1)
	assert.Len(t, ov.DevActivity, 1)
	assert.Len(t, ov.Cadence, 1)

	// Charts fetched by the overview are served from cache afterwards
	_, err = svc.Cadence(ctx, models.AllRepos())
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.count("cadence", models.AllRepos()))
}

func TestService_OverviewFailsAsAWhole(t *testing.T) {
	metrics := newFakeMetrics("2024-05")
	metrics.failOp = "dev-activity"
	svc, _ := setupService(t, metrics)

	ov, err := svc.Overview(context.Background(), models.AllRepos())
	assert.Nil(t, ov)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDatabase))
}

func TestService_ScopeForSegment(t *testing.T) {
	svc, _ := setupService(t, newFakeMetrics("2024-05"))
	ctx := context.Background()

	seg, err := svc.CreateSegment(ctx, SegmentInput{Name: "platform", RepoIDs: []int64{3, 1}})
	require.NoError(t, err)

	scope, err := svc.ScopeForSegment(ctx, seg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Repos(1, 3), scope)

	empty, err := svc.CreateSegment(ctx, SegmentInput{Name: "empty"})
	require.NoError(t, err)
	scope, err = svc.ScopeForSegment(ctx, empty.ID)
	require.NoError(t, err)
	assert.True(t, scope.IsEmpty())

	_, err = svc.ScopeForSegment(ctx, uuid.New())
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestService_CreateSegmentValidation(t *testing.T) {
	svc, _ := setupService(t, newFakeMetrics("2024-05"))
	ctx := context.Background()

	tests := []struct {
		name     string
		input    SegmentInput
		wantType errors.ErrorType
		wantErr  bool
	}{
		{name: "valid", input: SegmentInput{Name: "  web  ", RepoIDs: []int64{1}}},
		{name: "blank name", input: SegmentInput{Name: "   "}, wantErr: true, wantType: errors.ErrorTypeValidation},
		{name: "unknown kind", input: SegmentInput{Name: "x", Kind: "teams"}, wantErr: true, wantType: errors.ErrorTypeValidation},
		{name: "bad repo id", input: SegmentInput{Name: "y", RepoIDs: []int64{0}}, wantErr: true, wantType: errors.ErrorTypeValidation},
		{name: "duplicate", input: SegmentInput{Name: "web"}, wantErr: true, wantType: errors.ErrorTypeConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg, err := svc.CreateSegment(ctx, tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantType, errors.GetType(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "web", seg.Name)
			assert.Equal(t, models.SegmentKindRepositories, seg.Kind)
		})
	}
}

func TestService_SegmentMembership(t *testing.T) {
	svc, _ := setupService(t, newFakeMetrics("2024-05"))
	ctx := context.Background()

	seg, err := svc.CreateSegment(ctx, SegmentInput{Name: "infra", RepoIDs: []int64{1}})
	require.NoError(t, err)

	updated, err := svc.AddSegmentRepos(ctx, seg.ID, []int64{2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, updated.RepoIDs)

	_, err = svc.AddSegmentRepos(ctx, seg.ID, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	require.NoError(t, svc.RemoveSegmentRepo(ctx, seg.ID, 2))
	err = svc.RemoveSegmentRepo(ctx, seg.ID, 2)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	require.NoError(t, svc.DeleteSegment(ctx, seg.ID))
	_, err = svc.GetSegment(ctx, seg.ID)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestService_Warm(t *testing.T) {
	metrics := newFakeMetrics("2024-05")
	svc, _ := setupService(t, metrics)
	ctx := context.Background()

	_, err := svc.CreateSegment(ctx, SegmentInput{Name: "a", RepoIDs: []int64{1, 2}})
	require.NoError(t, err)
	_, err = svc.CreateSegment(ctx, SegmentInput{Name: "b", RepoIDs: []int64{2, 1}})
	require.NoError(t, err)
	_, err = svc.CreateSegment(ctx, SegmentInput{Name: "empty"})
	require.NoError(t, err)

	report, err := svc.Warm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scopes, "global scope plus one distinct segment scope")
	assert.Zero(t, report.Failed)

	// Warm always recomputes, then reads hit the cache
	_, err = svc.Warm(ctx)
	require.NoError(t, err)
	_, err = svc.KPIs(ctx, models.Repos(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, metrics.count("kpis", models.Repos(1, 2)))
	assert.Equal(t, 2, metrics.count("kpis", models.AllRepos()))
}

func TestService_WarmCountsFailures(t *testing.T) {
	metrics := newFakeMetrics("2024-05")
	metrics.failOp = "kpis"
	svc, _ := setupService(t, metrics)

	report, err := svc.Warm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scopes)
	assert.Equal(t, 1, report.Failed)
}
