package analytics

import (
	"sort"

	"github.com/rohankatakam/devpulse/internal/models"
)

// Transition is one derived status for a contributor in a month
type Transition struct {
	AuthorID int64
	Month    models.Month
	Status   models.ActivityStatus
}

// ContributorTransitions walks one contributor's active months in order.
//
// The first active month is NEW. A month whose previous active month is the
// calendar-previous month is ACTIVE; otherwise it is REACTIVATED. Every active
// month not followed by activity in the next calendar month emits a CHURNED
// transition for that next month, which has no activity of its own.
func ContributorTransitions(authorID int64, active []models.Month) []Transition {
	months := uniqueSorted(active)
	out := make([]Transition, 0, len(months)+1)

	for i, m := range months {
		status := models.StatusNew
		if i > 0 {
			if months[i-1] == m.Add(-1) {
				status = models.StatusActive
			} else {
				status = models.StatusReactivated
			}
		}
		out = append(out, Transition{AuthorID: authorID, Month: m, Status: status})

		next := m.Add(1)
		if i == len(months)-1 || months[i+1] != next {
			out = append(out, Transition{AuthorID: authorID, Month: next, Status: models.StatusChurned})
		}
	}
	return out
}

// Transitions derives status transitions for every contributor in rows
func Transitions(rows []models.ContributorMonth) []Transition {
	byAuthor := make(map[int64][]models.Month)
	for _, r := range rows {
		byAuthor[r.AuthorID] = append(byAuthor[r.AuthorID], r.Month)
	}

	authors := make([]int64, 0, len(byAuthor))
	for id := range byAuthor {
		authors = append(authors, id)
	}
	sort.Slice(authors, func(i, j int) bool { return authors[i] < authors[j] })

	var out []Transition
	for _, id := range authors {
		out = append(out, ContributorTransitions(id, byAuthor[id])...)
	}
	return out
}

func uniqueSorted(months []models.Month) []models.Month {
	sorted := make([]models.Month, len(months))
	copy(sorted, months)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	out := sorted[:0]
	for i, m := range sorted {
		if i > 0 && m == sorted[i-1] {
			continue
		}
		out = append(out, m)
	}
	return out
}
