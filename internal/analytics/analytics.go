// Package analytics classifies contributor activity and derives the dashboard's
// KPI snapshot and monthly series from commit and pull request facts.
package analytics

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/rohankatakam/devpulse/internal/errors"
	"github.com/rohankatakam/devpulse/internal/logging"
	"github.com/rohankatakam/devpulse/internal/models"
)

const (
	// trailingMonths is the window of the monthly series, current month inclusive
	trailingMonths = 12
	// spineMonths is the window of the activity-status series
	spineMonths = 13
)

// Source reads fact rows from the indexer schema.
// Only commits authored by USER accounts are returned.
type Source interface {
	// CommitFacts returns commits created at or after since
	CommitFacts(ctx context.Context, scope models.RepoScope, since time.Time) ([]models.CommitFact, error)
	// ContributorMonths returns each distinct (author, month) with a commit before the given time
	ContributorMonths(ctx context.Context, scope models.RepoScope, before time.Time) ([]models.ContributorMonth, error)
	// MergedPullRequests returns MERGED pull requests merged at or after since
	MergedPullRequests(ctx context.Context, scope models.RepoScope, since time.Time) ([]models.PullRequestFact, error)
}

// Analytics computes developer activity metrics over a Source
type Analytics struct {
	source Source
	now    func() time.Time
	logger *slog.Logger
}

// Option configures Analytics
type Option func(*Analytics)

// WithClock overrides the reference time used to pick the current month
func WithClock(now func() time.Time) Option {
	return func(a *Analytics) { a.now = now }
}

// New creates an Analytics reading from source
func New(source Source, opts ...Option) *Analytics {
	a := &Analytics{
		source: source,
		now:    time.Now,
		logger: logging.Component("analytics"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CurrentMonth returns the calendar month of the reference time
func (a *Analytics) CurrentMonth() models.Month {
	return models.MonthOf(a.now())
}

// commitWindow loads commits for the n months ending with the current month
func (a *Analytics) commitWindow(ctx context.Context, scope models.RepoScope, n int, what string) ([]models.CommitFact, models.Month, error) {
	cur := a.CurrentMonth()
	first := cur.Add(-(n - 1))

	facts, err := a.source.CommitFacts(ctx, scope, first.Start())
	if err != nil {
		a.logger.Error("query failed", "what", what, "scope", scope.Key(), "error", err)
		return nil, first, errors.FetchError(err, what).WithContext("scope", scope.Key())
	}

	end := cur.Add(1).Start()
	in := facts[:0:0]
	for _, f := range facts {
		if !f.CreatedAt.Before(first.Start()) && f.CreatedAt.Before(end) {
			in = append(in, f)
		}
	}
	return in, first, nil
}

// KPIs compares the current calendar month with the previous one
func (a *Analytics) KPIs(ctx context.Context, scope models.RepoScope) (models.KPISnapshot, error) {
	if scope.IsEmpty() {
		return models.KPISnapshot{}, nil
	}

	facts, prevMonth, err := a.commitWindow(ctx, scope, 2, "dashboard KPIs")
	if err != nil {
		return models.KPISnapshot{}, err
	}
	curMonth := prevMonth.Add(1)

	type monthTotals struct {
		fullTime map[int64]struct{}
		active   map[int64]struct{}
		commits  map[string]struct{}
		repos    map[int64]struct{}
	}
	newTotals := func() *monthTotals {
		return &monthTotals{
			fullTime: make(map[int64]struct{}),
			active:   make(map[int64]struct{}),
			commits:  make(map[string]struct{}),
			repos:    make(map[int64]struct{}),
		}
	}
	totals := map[models.Month]*monthTotals{curMonth: newTotals(), prevMonth: newTotals()}

	for key, tier := range ClassifyContributorMonths(facts) {
		t := totals[key.Month]
		t.active[key.AuthorID] = struct{}{}
		if tier == models.TierFullTime {
			t.fullTime[key.AuthorID] = struct{}{}
		}
	}
	for _, f := range facts {
		t := totals[models.MonthOf(f.CreatedAt)]
		t.commits[f.SHA] = struct{}{}
		t.repos[f.RepoID] = struct{}{}
	}

	cur, prev := totals[curMonth], totals[prevMonth]
	return models.KPISnapshot{
		FullTimeDevs:            len(cur.fullTime),
		FullTimeDevsGrowth:      Growth(len(cur.fullTime), len(prev.fullTime)),
		MonthlyActiveDevs:       len(cur.active),
		MonthlyActiveDevsGrowth: Growth(len(cur.active), len(prev.active)),
		TotalCommits:            len(cur.commits),
		TotalCommitsGrowth:      Growth(len(cur.commits), len(prev.commits)),
		TotalRepos:              len(cur.repos),
		TotalReposGrowth:        Growth(len(cur.repos), len(prev.repos)),
	}, nil
}

// DeveloperActivity counts distinct contributors per tier per month over the trailing 12 months
func (a *Analytics) DeveloperActivity(ctx context.Context, scope models.RepoScope) ([]models.TierBreakdown, error) {
	out := []models.TierBreakdown{}
	if scope.IsEmpty() {
		return out, nil
	}

	facts, _, err := a.commitWindow(ctx, scope, trailingMonths, "developer activity")
	if err != nil {
		return nil, err
	}

	byMonth := make(map[models.Month]*models.TierBreakdown)
	for key, tier := range ClassifyContributorMonths(facts) {
		row, ok := byMonth[key.Month]
		if !ok {
			row = &models.TierBreakdown{Month: key.Month}
			byMonth[key.Month] = row
		}
		switch tier {
		case models.TierFullTime:
			row.FullTime++
		case models.TierPartTime:
			row.PartTime++
		case models.TierOneTime:
			row.OneTime++
		}
	}

	for _, m := range sortedMonths(byMonth) {
		out = append(out, *byMonth[m])
	}
	return out, nil
}

// CommitsByDevType counts distinct commits per author tier per month over the trailing 12 months
func (a *Analytics) CommitsByDevType(ctx context.Context, scope models.RepoScope) ([]models.CommitsByTier, error) {
	out := []models.CommitsByTier{}
	if scope.IsEmpty() {
		return out, nil
	}

	facts, _, err := a.commitWindow(ctx, scope, trailingMonths, "commits by developer type")
	if err != nil {
		return nil, err
	}
	tiers := ClassifyContributorMonths(facts)

	type shaSets struct {
		total map[string]struct{}
		tier  map[models.Tier]map[string]struct{}
	}
	byMonth := make(map[models.Month]*shaSets)
	for _, f := range facts {
		m := models.MonthOf(f.CreatedAt)
		sets, ok := byMonth[m]
		if !ok {
			sets = &shaSets{
				total: make(map[string]struct{}),
				tier: map[models.Tier]map[string]struct{}{
					models.TierFullTime: {},
					models.TierPartTime: {},
					models.TierOneTime:  {},
				},
			}
			byMonth[m] = sets
		}
		tier := tiers[ContributorMonthKey{AuthorID: f.AuthorID, Month: m}]
		sets.total[f.SHA] = struct{}{}
		sets.tier[tier][f.SHA] = struct{}{}
	}

	for _, m := range sortedMonths(byMonth) {
		sets := byMonth[m]
		out = append(out, models.CommitsByTier{
			Month:    m,
			Total:    len(sets.total),
			FullTime: len(sets.tier[models.TierFullTime]),
			PartTime: len(sets.tier[models.TierPartTime]),
			OneTime:  len(sets.tier[models.TierOneTime]),
		})
	}
	return out, nil
}

// MonthlyCommits counts distinct commit SHAs per month over the trailing 12 months
func (a *Analytics) MonthlyCommits(ctx context.Context, scope models.RepoScope) ([]models.MonthlyCount, error) {
	if scope.IsEmpty() {
		return []models.MonthlyCount{}, nil
	}

	facts, _, err := a.commitWindow(ctx, scope, trailingMonths, "monthly commits")
	if err != nil {
		return nil, err
	}

	byMonth := make(map[models.Month]map[string]struct{})
	for _, f := range facts {
		m := models.MonthOf(f.CreatedAt)
		if byMonth[m] == nil {
			byMonth[m] = make(map[string]struct{})
		}
		byMonth[m][f.SHA] = struct{}{}
	}
	return countSeries(byMonth), nil
}

// MonthlyPRsMerged counts distinct merged pull requests per merge month over the trailing 12 months
func (a *Analytics) MonthlyPRsMerged(ctx context.Context, scope models.RepoScope) ([]models.MonthlyCount, error) {
	if scope.IsEmpty() {
		return []models.MonthlyCount{}, nil
	}

	cur := a.CurrentMonth()
	first := cur.Add(-(trailingMonths - 1))
	end := cur.Add(1).Start()

	prs, err := a.source.MergedPullRequests(ctx, scope, first.Start())
	if err != nil {
		a.logger.Error("query failed", "what", "monthly merged pull requests", "scope", scope.Key(), "error", err)
		return nil, errors.FetchError(err, "monthly merged pull requests").WithContext("scope", scope.Key())
	}

	byMonth := make(map[models.Month]map[int64]struct{})
	for _, pr := range prs {
		if pr.MergedAt.Before(first.Start()) || !pr.MergedAt.Before(end) {
			continue
		}
		m := models.MonthOf(pr.MergedAt)
		if byMonth[m] == nil {
			byMonth[m] = make(map[int64]struct{})
		}
		byMonth[m][pr.ID] = struct{}{}
	}
	return countSeries(byMonth), nil
}

// DevActivity counts contributors per activity status over a 13-month spine.
// The whole activity history is read so first-ever months and gaps before the
// spine are classified correctly.
func (a *Analytics) DevActivity(ctx context.Context, scope models.RepoScope) ([]models.DevActivityPoint, error) {
	out := []models.DevActivityPoint{}
	if scope.IsEmpty() {
		return out, nil
	}

	cur := a.CurrentMonth()
	rows, err := a.source.ContributorMonths(ctx, scope, cur.Add(1).Start())
	if err != nil {
		a.logger.Error("query failed", "what", "developer activity status", "scope", scope.Key(), "error", err)
		return nil, errors.FetchError(err, "developer activity status").WithContext("scope", scope.Key())
	}

	spine := models.MonthRange(cur, spineMonths)
	points := make(map[models.Month]*models.DevActivityPoint, len(spine))
	for _, m := range spine {
		points[m] = &models.DevActivityPoint{Month: m}
	}

	seen := false
	for _, tr := range Transitions(rows) {
		p, ok := points[tr.Month]
		if !ok {
			continue
		}
		seen = true
		switch tr.Status {
		case models.StatusNew:
			p.New++
		case models.StatusActive:
			p.Active++
		case models.StatusReactivated:
			p.Reactivated++
		case models.StatusChurned:
			p.Churned++
		}
	}
	if !seen {
		return out, nil
	}

	for _, m := range spine {
		p := points[m]
		p.TotalActive = p.New + p.Active + p.Reactivated
		out = append(out, *p)
	}
	return out, nil
}

// Cadence summarizes distinct commit days per active contributor per month
func (a *Analytics) Cadence(ctx context.Context, scope models.RepoScope) ([]models.CadencePoint, error) {
	out := []models.CadencePoint{}
	if scope.IsEmpty() {
		return out, nil
	}

	facts, _, err := a.commitWindow(ctx, scope, trailingMonths, "contributor cadence")
	if err != nil {
		return nil, err
	}

	byMonth := make(map[models.Month]stats.Float64Data)
	for key, days := range CommitDays(facts) {
		byMonth[key.Month] = append(byMonth[key.Month], float64(days))
	}

	for _, m := range sortedMonths(byMonth) {
		data := byMonth[m]
		point := models.CadencePoint{Month: m, Contributors: len(data)}
		// Errors only occur on empty input, which cannot happen here
		point.Mean, _ = stats.Mean(data)
		point.Median, _ = stats.Median(data)
		point.P90, _ = stats.Percentile(data, 90)
		out = append(out, point)
	}
	return out, nil
}

func sortedMonths[V any](m map[models.Month]V) []models.Month {
	months := make([]models.Month, 0, len(m))
	for month := range m {
		months = append(months, month)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	return months
}

func countSeries[K comparable](byMonth map[models.Month]map[K]struct{}) []models.MonthlyCount {
	out := make([]models.MonthlyCount, 0, len(byMonth))
	for _, m := range sortedMonths(byMonth) {
		out = append(out, models.MonthlyCount{Month: m, Count: len(byMonth[m])})
	}
	return out
}
