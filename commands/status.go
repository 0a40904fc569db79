package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matrixor/tsg-officer/state"
)

func newStatusCmd(configPath, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status [case-id]",
		Short: "Show case status",
		Long:  "Show the status of one case, or list all cases when no id is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), *configPath, *logLevel)
			if err != nil {
				return err
			}
			defer app.Close()

			if len(args) == 0 {
				ids, err := app.Engine.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(ids) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No cases on record.")
					return nil
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			}

			cs, err := app.Engine.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printCase(cmd, cs)
			return nil
		},
	}
}

func printCase(cmd *cobra.Command, cs *state.CaseState) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "case: %s\nphase: %s\n", cs.CaseID, cs.Phase)
	if cs.ApplicationType != "" {
		fmt.Fprintf(out, "application type: %s\n", cs.ApplicationType)
	}
	if len(cs.CategoryLabels) > 0 {
		fmt.Fprintf(out, "categories: %s\n", strings.Join(cs.CategoryLabels, ", "))
	}
	if len(cs.MissingFields) > 0 {
		fmt.Fprintf(out, "missing fields: %s\n", strings.Join(cs.MissingFields, ", "))
	}
	if report := cs.ChecklistReport; report != nil {
		fmt.Fprintf(out, "checklist: %s (%s)\n", report.OverallRecommendation, report.Summary)
		if len(report.FollowupQuestions) > 0 {
			fmt.Fprintf(out, "follow-ups: %d of %d answered\n",
				len(cs.FollowupAnswers), len(report.FollowupQuestions))
		}
	}
	if cs.HasDiagramEvidence() {
		fmt.Fprintln(out, "diagram: on record")
	}
	if cs.ReviewerDecision != "" {
		fmt.Fprintf(out, "reviewer decision: %s\n", cs.ReviewerDecision)
	}
	if cs.Finalized {
		fmt.Fprintln(out, "finalized: yes")
	}
	fmt.Fprintf(out, "transcript: %d messages, audit: %d events\n",
		len(cs.Transcript), len(cs.AuditLog))
}
