package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matrixor/tsg-officer/workflow"
)

func newStartCmd(configPath, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start [case-id]",
		Short: "Start a new case",
		Long:  "Start a new case and print the first question. Omit the case id to have one generated.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), *configPath, *logLevel)
			if err != nil {
				return err
			}
			defer app.Close()

			caseID := ""
			if len(args) > 0 {
				caseID = args[0]
			}

			result, err := app.Engine.Start(cmd.Context(), caseID)
			if err != nil {
				return err
			}
			printResult(cmd, result)
			return nil
		},
	}
}

// printResult renders an engine turn: new transcript entries, then
// either the pending question or the terminal state.
func printResult(cmd *cobra.Command, result *workflow.EngineResult) {
	out := cmd.OutOrStdout()
	for _, msg := range result.TranscriptDelta {
		fmt.Fprintf(out, "[%s] %s\n", msg.Role, msg.Content)
	}

	fmt.Fprintf(out, "\ncase: %s  phase: %s\n", result.CaseID, result.Phase)
	switch {
	case result.Terminal:
		fmt.Fprintln(out, "The case is closed.")
	case result.PendingQuestion != nil:
		q := result.PendingQuestion
		fmt.Fprintf(out, "\nQuestion (%s): %s\n", q.Type, q.QuestionText)
		if q.Hint != "" {
			fmt.Fprintf(out, "Hint: %s\n", q.Hint)
		}
		fmt.Fprintf(out, "\nReply with: %s answer %s %q\n", appName, result.CaseID, "<your answer>")
	}
}
