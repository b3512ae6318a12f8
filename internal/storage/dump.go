package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/devpulse/internal/models"
)

// Dump is an export of the indexer tables, used to seed a local store
type Dump struct {
	Accounts     []models.Contributor `json:"accounts"`
	Repositories []models.Repository  `json:"repositories"`
	Commits      []models.CommitFact  `json:"commits"`
	PullRequests []models.PullRequest `json:"pull_requests"`
}

// ImportCounts reports how many rows of each kind were read from a dump
type ImportCounts struct {
	Accounts     int `json:"accounts"`
	Repositories int `json:"repositories"`
	Commits      int `json:"commits"`
	PullRequests int `json:"pull_requests"`
}

// Import loads a JSON dump into the local indexer tables. Accounts and
// repositories go first so commits never reference unknown rows.
func (s *SQLiteStore) Import(ctx context.Context, r io.Reader) (ImportCounts, error) {
	var d Dump
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return ImportCounts{}, fmt.Errorf("decode dump: %w", err)
	}

	for _, pr := range d.PullRequests {
		if pr.Status == models.PullRequestMerged && pr.MergedAt == nil {
			return ImportCounts{}, fmt.Errorf("pull request %d is merged but has no merged_at", pr.ID)
		}
	}

	if err := s.SaveAccounts(ctx, d.Accounts); err != nil {
		return ImportCounts{}, err
	}
	if err := s.SaveRepositories(ctx, d.Repositories); err != nil {
		return ImportCounts{}, err
	}
	if err := s.SaveCommits(ctx, d.Commits); err != nil {
		return ImportCounts{}, err
	}
	if err := s.SavePullRequests(ctx, d.PullRequests); err != nil {
		return ImportCounts{}, err
	}

	counts := ImportCounts{
		Accounts:     len(d.Accounts),
		Repositories: len(d.Repositories),
		Commits:      len(d.Commits),
		PullRequests: len(d.PullRequests),
	}
	s.logger.WithFields(logrus.Fields{
		"accounts":      counts.Accounts,
		"repositories":  counts.Repositories,
		"commits":       counts.Commits,
		"pull_requests": counts.PullRequests,
	}).Info("dump imported")
	return counts, nil
}
