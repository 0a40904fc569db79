package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newExportCmd(configPath, logLevel *string) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export <case-id>",
		Short: "Export the consolidated audit record of a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), *configPath, *logLevel)
			if err != nil {
				return err
			}
			defer app.Close()

			export, err := app.Engine.Export(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(export, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal export: %w", err)
			}

			if outPath == "" {
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			if err := os.WriteFile(outPath, append(data, '\n'), 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write the export to a file instead of stdout")
	return cmd
}
