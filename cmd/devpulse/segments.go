package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/devpulse/internal/dashboard"
	"github.com/rohankatakam/devpulse/internal/errors"
	"github.com/rohankatakam/devpulse/internal/models"
)

var segmentsCmd = &cobra.Command{
	Use:   "segments",
	Short: "Manage repository segments",
}

var (
	segmentJSON        bool
	segmentName        string
	segmentDescription string
	segmentKind        string
	segmentRepoIDs     []int64
)

var segmentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List segments",
	RunE:  runSegmentsList,
}

var segmentsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a segment",
	Long: `Create a segment of repositories.

Examples:
  devpulse segments create --name platform --repo-ids 12,34 --description "Core services"`,
	RunE: runSegmentsCreate,
}

var segmentsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a segment",
	Args:  cobra.ExactArgs(1),
	RunE:  runSegmentsDelete,
}

var segmentsAddCmd = &cobra.Command{
	Use:   "add-repos [id]",
	Short: "Add repositories to a segment",
	Args:  cobra.ExactArgs(1),
	RunE:  runSegmentsAdd,
}

func init() {
	segmentsCmd.AddCommand(segmentsListCmd)
	segmentsCmd.AddCommand(segmentsCreateCmd)
	segmentsCmd.AddCommand(segmentsDeleteCmd)
	segmentsCmd.AddCommand(segmentsAddCmd)

	segmentsListCmd.Flags().BoolVar(&segmentJSON, "json", false, "print JSON")

	segmentsCreateCmd.Flags().StringVar(&segmentName, "name", "", "segment name")
	segmentsCreateCmd.Flags().StringVar(&segmentDescription, "description", "", "segment description")
	segmentsCreateCmd.Flags().StringVar(&segmentKind, "kind", string(models.SegmentKindRepositories), "segment kind")
	segmentsCreateCmd.Flags().Int64SliceVar(&segmentRepoIDs, "repo-ids", nil, "member repository ids")
	segmentsCreateCmd.MarkFlagRequired("name")

	segmentsAddCmd.Flags().Int64SliceVar(&segmentRepoIDs, "repo-ids", nil, "repository ids to add")
	segmentsAddCmd.MarkFlagRequired("repo-ids")
}

func runSegmentsList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	segs, err := a.svc.ListSegments(cmd.Context())
	if err != nil {
		return err
	}
	if segmentJSON {
		return printJSON(segs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tKIND\tREPOS")
	for _, seg := range segs {
		ids := make([]string, len(seg.RepoIDs))
		for i, id := range seg.RepoIDs {
			ids[i] = fmt.Sprint(id)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", seg.ID, seg.Name, seg.Kind, strings.Join(ids, ","))
	}
	return w.Flush()
}

func runSegmentsCreate(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	seg, err := a.svc.CreateSegment(cmd.Context(), dashboard.SegmentInput{
		Name:        segmentName,
		Description: segmentDescription,
		Kind:        models.SegmentKind(segmentKind),
		RepoIDs:     segmentRepoIDs,
	})
	if err != nil {
		return err
	}
	return printJSON(seg)
}

func runSegmentsDelete(cmd *cobra.Command, args []string) error {
	id, err := parseSegmentArg(args[0])
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.svc.DeleteSegment(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Printf("Deleted segment %s\n", id)
	return nil
}

func runSegmentsAdd(cmd *cobra.Command, args []string) error {
	id, err := parseSegmentArg(args[0])
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	seg, err := a.svc.AddSegmentRepos(cmd.Context(), id, segmentRepoIDs)
	if err != nil {
		return err
	}
	return printJSON(seg)
}

func parseSegmentArg(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.ValidationErrorf("invalid segment id %q", s)
	}
	return id, nil
}
