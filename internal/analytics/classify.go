package analytics

import (
	"time"

	"github.com/rohankatakam/devpulse/internal/models"
)

// Tier thresholds on distinct commit days within a calendar month
const (
	oneTimeDays  = 1
	fullTimeDays = 10
)

// ContributorMonthKey identifies one contributor in one calendar month
type ContributorMonthKey struct {
	AuthorID int64
	Month    models.Month
}

// TierForDays classifies a contributor-month by its number of distinct commit days.
// Exactly one day is ONE_TIME, 2-9 days PART_TIME, 10 or more FULL_TIME.
func TierForDays(days int) models.Tier {
	switch {
	case days <= oneTimeDays:
		return models.TierOneTime
	case days < fullTimeDays:
		return models.TierPartTime
	default:
		return models.TierFullTime
	}
}

type day struct {
	year  int
	month time.Month
	day   int
}

func dayOf(t time.Time) day {
	u := t.UTC()
	return day{year: u.Year(), month: u.Month(), day: u.Day()}
}

// CommitDays counts distinct UTC commit days per contributor-month
func CommitDays(facts []models.CommitFact) map[ContributorMonthKey]int {
	days := make(map[ContributorMonthKey]map[day]struct{})
	for _, f := range facts {
		key := ContributorMonthKey{AuthorID: f.AuthorID, Month: models.MonthOf(f.CreatedAt)}
		set, ok := days[key]
		if !ok {
			set = make(map[day]struct{})
			days[key] = set
		}
		set[dayOf(f.CreatedAt)] = struct{}{}
	}

	counts := make(map[ContributorMonthKey]int, len(days))
	for key, set := range days {
		counts[key] = len(set)
	}
	return counts
}

// ClassifyContributorMonths assigns exactly one tier to every contributor-month with a commit
func ClassifyContributorMonths(facts []models.CommitFact) map[ContributorMonthKey]models.Tier {
	counts := CommitDays(facts)
	tiers := make(map[ContributorMonthKey]models.Tier, len(counts))
	for key, n := range counts {
		tiers[key] = TierForDays(n)
	}
	return tiers
}

// Growth returns the percentage change from prev to cur.
// Zero to zero is 0; zero to anything positive is 100.
func Growth(cur, prev int) float64 {
	if prev == 0 {
		if cur > 0 {
			return 100
		}
		return 0
	}
	return float64(cur-prev) / float64(prev) * 100
}
