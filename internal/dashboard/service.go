// Package dashboard serves the analytics charts through the result cache and
// resolves segments into repository scopes.
package dashboard

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rohankatakam/devpulse/internal/cache"
	"github.com/rohankatakam/devpulse/internal/errors"
	"github.com/rohankatakam/devpulse/internal/logging"
	"github.com/rohankatakam/devpulse/internal/models"
	"github.com/rohankatakam/devpulse/internal/storage"
)

// Metrics computes the dashboard charts for a scope
type Metrics interface {
	CurrentMonth() models.Month
	KPIs(ctx context.Context, scope models.RepoScope) (models.KPISnapshot, error)
	DeveloperActivity(ctx context.Context, scope models.RepoScope) ([]models.TierBreakdown, error)
	CommitsByDevType(ctx context.Context, scope models.RepoScope) ([]models.CommitsByTier, error)
	MonthlyCommits(ctx context.Context, scope models.RepoScope) ([]models.MonthlyCount, error)
	MonthlyPRsMerged(ctx context.Context, scope models.RepoScope) ([]models.MonthlyCount, error)
	DevActivity(ctx context.Context, scope models.RepoScope) ([]models.DevActivityPoint, error)
	Cadence(ctx context.Context, scope models.RepoScope) ([]models.CadencePoint, error)
}

// Service composes analytics, segment storage and the result cache
type Service struct {
	metrics Metrics
	store   storage.Store
	cache   *cache.Manager
	logger  *slog.Logger
}

// NewService creates a dashboard service. cache may be nil to disable caching.
func NewService(metrics Metrics, store storage.Store, c *cache.Manager) *Service {
	return &Service{
		metrics: metrics,
		store:   store,
		cache:   c,
		logger:  logging.Component("dashboard"),
	}
}

// cached serves op for scope from the cache, or recomputes and stores it when
// refresh is set. Keys roll over with the calendar month.
func cached[T any](ctx context.Context, s *Service, op string, scope models.RepoScope, refresh bool,
	load func(context.Context, models.RepoScope) (T, error)) (T, error) {
	key := cache.Key(op, scope.Key(), s.metrics.CurrentMonth().String())
	fn := func(ctx context.Context) (T, error) { return load(ctx, scope) }
	if refresh {
		return cache.Refresh(ctx, s.cache, key, fn)
	}
	return cache.Fetch(ctx, s.cache, key, fn)
}

// CurrentMonth returns the month the charts are computed for
func (s *Service) CurrentMonth() models.Month {
	return s.metrics.CurrentMonth()
}

func (s *Service) KPIs(ctx context.Context, scope models.RepoScope) (models.KPISnapshot, error) {
	return cached(ctx, s, "kpis", scope, false, s.metrics.KPIs)
}

func (s *Service) DeveloperActivity(ctx context.Context, scope models.RepoScope) ([]models.TierBreakdown, error) {
	return cached(ctx, s, "developer-activity", scope, false, s.metrics.DeveloperActivity)
}

func (s *Service) CommitsByDevType(ctx context.Context, scope models.RepoScope) ([]models.CommitsByTier, error) {
	return cached(ctx, s, "commits-by-dev-type", scope, false, s.metrics.CommitsByDevType)
}

func (s *Service) MonthlyCommits(ctx context.Context, scope models.RepoScope) ([]models.MonthlyCount, error) {
	return cached(ctx, s, "monthly-commits", scope, false, s.metrics.MonthlyCommits)
}

func (s *Service) MonthlyPRsMerged(ctx context.Context, scope models.RepoScope) ([]models.MonthlyCount, error) {
	return cached(ctx, s, "monthly-prs-merged", scope, false, s.metrics.MonthlyPRsMerged)
}

func (s *Service) DevActivity(ctx context.Context, scope models.RepoScope) ([]models.DevActivityPoint, error) {
	return cached(ctx, s, "dev-activity", scope, false, s.metrics.DevActivity)
}

func (s *Service) Cadence(ctx context.Context, scope models.RepoScope) ([]models.CadencePoint, error) {
	return cached(ctx, s, "cadence", scope, false, s.metrics.Cadence)
}

// Overview fetches every chart concurrently. Any failure fails the whole overview.
func (s *Service) Overview(ctx context.Context, scope models.RepoScope) (*models.Overview, error) {
	return s.overview(ctx, scope, false)
}

func (s *Service) overview(ctx context.Context, scope models.RepoScope, refresh bool) (*models.Overview, error) {
	var ov models.Overview
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		ov.KPIs, err = cached(ctx, s, "kpis", scope, refresh, s.metrics.KPIs)
		return err
	})
	g.Go(func() (err error) {
		ov.DeveloperActivity, err = cached(ctx, s, "developer-activity", scope, refresh, s.metrics.DeveloperActivity)
		return err
	})
	g.Go(func() (err error) {
		ov.CommitsByDevType, err = cached(ctx, s, "commits-by-dev-type", scope, refresh, s.metrics.CommitsByDevType)
		return err
	})
	g.Go(func() (err error) {
		ov.MonthlyCommits, err = cached(ctx, s, "monthly-commits", scope, refresh, s.metrics.MonthlyCommits)
		return err
	})
	g.Go(func() (err error) {
		ov.MonthlyPRsMerged, err = cached(ctx, s, "monthly-prs-merged", scope, refresh, s.metrics.MonthlyPRsMerged)
		return err
	})
	g.Go(func() (err error) {
		ov.DevActivity, err = cached(ctx, s, "dev-activity", scope, refresh, s.metrics.DevActivity)
		return err
	})
	g.Go(func() (err error) {
		ov.Cadence, err = cached(ctx, s, "cadence", scope, refresh, s.metrics.Cadence)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &ov, nil
}

// WarmReport summarizes one Warm run
type WarmReport struct {
	Scopes   int           `json:"scopes"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Warm recomputes the overview of the global scope and of every segment.
// Scope failures are logged and counted; only listing segments or
// cancellation aborts the run.
func (s *Service) Warm(ctx context.Context) (WarmReport, error) {
	start := time.Now()

	segs, err := s.store.ListSegments(ctx)
	if err != nil {
		return WarmReport{}, errors.DatabaseError(err, "failed to list segments")
	}

	scopes := []models.RepoScope{models.AllRepos()}
	seen := map[string]bool{models.AllRepos().Key(): true}
	for _, seg := range segs {
		scope := models.Repos(seg.RepoIDs...)
		if seen[scope.Key()] || scope.IsEmpty() {
			continue
		}
		seen[scope.Key()] = true
		scopes = append(scopes, scope)
	}

	report := WarmReport{Scopes: len(scopes)}
	for _, scope := range scopes {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if _, err := s.overview(ctx, scope, true); err != nil {
			report.Failed++
			s.logger.Warn("warm failed", "scope", scope.Key(), "error", err)
		}
	}

	report.Duration = time.Since(start)
	s.logger.Info("cache warmed", "scopes", report.Scopes, "failed", report.Failed, "duration_ms", report.Duration.Milliseconds())
	return report, nil
}

// ScopeForSegment resolves a segment to the scope of its repositories.
// A segment with no repositories yields a scope that matches nothing.
func (s *Service) ScopeForSegment(ctx context.Context, id uuid.UUID) (models.RepoScope, error) {
	ids, err := s.store.SegmentRepoIDs(ctx, id)
	if err != nil {
		return models.RepoScope{}, s.storeError(err, "segment %s not found", id)
	}
	return models.Repos(ids...), nil
}

// SegmentInput is the caller-supplied part of a new segment
type SegmentInput struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Kind        models.SegmentKind `json:"kind"`
	RepoIDs     []int64            `json:"repo_ids"`
}

const maxSegmentName = 100

// Validate checks the input and normalizes name and kind
func (in *SegmentInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return errors.ValidationError("segment name is required")
	}
	if len(in.Name) > maxSegmentName {
		return errors.ValidationErrorf("segment name exceeds %d characters", maxSegmentName)
	}
	if in.Kind == "" {
		in.Kind = models.SegmentKindRepositories
	}
	if !in.Kind.Valid() {
		return errors.ValidationErrorf("unknown segment kind %q", in.Kind)
	}
	return validateRepoIDs(in.RepoIDs)
}

func validateRepoIDs(ids []int64) error {
	for _, id := range ids {
		if id <= 0 {
			return errors.ValidationErrorf("invalid repository id %d", id)
		}
	}
	return nil
}

func (s *Service) CreateSegment(ctx context.Context, in SegmentInput) (*models.Segment, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	seg := &models.Segment{
		Name:        in.Name,
		Description: in.Description,
		Kind:        in.Kind,
		RepoIDs:     in.RepoIDs,
	}
	if err := s.store.CreateSegment(ctx, seg); err != nil {
		if stderrors.Is(err, storage.ErrConflict) {
			return nil, errors.ConflictErrorf("segment %q already exists", in.Name)
		}
		return nil, errors.DatabaseError(err, "failed to create segment")
	}
	s.logger.Info("segment created", "id", seg.ID, "name", seg.Name, "repos", len(seg.RepoIDs))
	return seg, nil
}

func (s *Service) GetSegment(ctx context.Context, id uuid.UUID) (*models.Segment, error) {
	seg, err := s.store.GetSegment(ctx, id)
	if err != nil {
		return nil, s.storeError(err, "segment %s not found", id)
	}
	return seg, nil
}

func (s *Service) ListSegments(ctx context.Context) ([]*models.Segment, error) {
	segs, err := s.store.ListSegments(ctx)
	if err != nil {
		return nil, errors.DatabaseError(err, "failed to list segments")
	}
	return segs, nil
}

func (s *Service) DeleteSegment(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteSegment(ctx, id); err != nil {
		return s.storeError(err, "segment %s not found", id)
	}
	s.logger.Info("segment deleted", "id", id)
	return nil
}

func (s *Service) AddSegmentRepos(ctx context.Context, id uuid.UUID, repoIDs []int64) (*models.Segment, error) {
	if len(repoIDs) == 0 {
		return nil, errors.ValidationError("repo_ids is required")
	}
	if err := validateRepoIDs(repoIDs); err != nil {
		return nil, err
	}
	if err := s.store.AddSegmentRepos(ctx, id, repoIDs); err != nil {
		return nil, s.storeError(err, "segment %s not found", id)
	}
	return s.GetSegment(ctx, id)
}

func (s *Service) RemoveSegmentRepo(ctx context.Context, id uuid.UUID, repoID int64) error {
	if err := s.store.RemoveSegmentRepo(ctx, id, repoID); err != nil {
		return s.storeError(err, "repository %d is not in segment %s", repoID, id)
	}
	return nil
}

func (s *Service) ListRepositories(ctx context.Context) ([]models.Repository, error) {
	repos, err := s.store.ListRepositories(ctx)
	if err != nil {
		return nil, errors.FetchError(err, "repositories")
	}
	return repos, nil
}

// CacheStats reports result cache counters
func (s *Service) CacheStats() cache.Stats {
	if s.cache == nil {
		return cache.Stats{}
	}
	return s.cache.Stats()
}

// storeError maps storage sentinels onto typed errors
func (s *Service) storeError(err error, notFound string, args ...interface{}) error {
	if stderrors.Is(err, storage.ErrNotFound) {
		return errors.NotFoundErrorf(notFound, args...)
	}
	return errors.DatabaseError(err, "segment storage failure")
}
