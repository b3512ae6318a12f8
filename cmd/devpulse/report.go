package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/devpulse/internal/errors"
	"github.com/rohankatakam/devpulse/internal/models"
)

var (
	reportRepoIDs []int64
	reportSegment string
)

var kpisCmd = &cobra.Command{
	Use:   "kpis",
	Short: "Print the KPI snapshot for the current month",
	Long: `Print the KPI snapshot for the current month as JSON.

Examples:
  # Every repository
  devpulse kpis

  # Two repositories
  devpulse kpis --repo-ids 12,34

  # A segment
  devpulse kpis --segment 3f1c0c1e-8a8e-4a55-9a43-0d7e2b0f9b11`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd, func(ctx context.Context, a *app, scope models.RepoScope) (interface{}, error) {
			return a.svc.KPIs(ctx, scope)
		})
	},
}

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Print new, active, churned and reactivated developers per month",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd, func(ctx context.Context, a *app, scope models.RepoScope) (interface{}, error) {
			return a.svc.DevActivity(ctx, scope)
		})
	},
}

var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Print every dashboard chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd, func(ctx context.Context, a *app, scope models.RepoScope) (interface{}, error) {
			return a.svc.Overview(ctx, scope)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{kpisCmd, activityCmd, overviewCmd} {
		c.Flags().Int64SliceVar(&reportRepoIDs, "repo-ids", nil, "restrict to these repository ids")
		c.Flags().StringVar(&reportSegment, "segment", "", "restrict to the repositories of a segment")
		c.MarkFlagsMutuallyExclusive("repo-ids", "segment")
	}
}

type reportFunc func(ctx context.Context, a *app, scope models.RepoScope) (interface{}, error)

func runReport(cmd *cobra.Command, report reportFunc) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	scope, err := reportScope(ctx, cmd, a)
	if err != nil {
		return err
	}
	out, err := report(ctx, a, scope)
	if err != nil {
		return err
	}
	return printJSON(out)
}

func reportScope(ctx context.Context, cmd *cobra.Command, a *app) (models.RepoScope, error) {
	switch {
	case reportSegment != "":
		id, err := uuid.Parse(reportSegment)
		if err != nil {
			return models.RepoScope{}, errors.ValidationErrorf("invalid segment id %q", reportSegment)
		}
		return a.svc.ScopeForSegment(ctx, id)
	case cmd.Flags().Changed("repo-ids"):
		for _, id := range reportRepoIDs {
			if id <= 0 {
				return models.RepoScope{}, errors.ValidationErrorf("invalid repository id %d", id)
			}
		}
		return models.Repos(reportRepoIDs...), nil
	default:
		return models.AllRepos(), nil
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
