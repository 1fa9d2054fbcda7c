package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newResultCommand(ctx *commandContext) *cobra.Command {
	var format string
	var outputPath string

	cmd := &cobra.Command{
		Use:   "result <taskID>",
		Short: "Fetch the rendered transcript for a completed task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return ctx.withTasks(cmd.Context(), func(runCtx context.Context, tasks taskAPI) error {
				body, _, err := tasks.Result(runCtx, id, strings.TrimSpace(format))
				if err != nil {
					return err
				}

				target := strings.TrimSpace(outputPath)
				if target == "" {
					if _, err := cmd.OutOrStdout().Write(body); err != nil {
						return err
					}
					return nil
				}

				expanded, err := filepath.Abs(target)
				if err != nil {
					return fmt.Errorf("resolve output path: %w", err)
				}
				if err := os.WriteFile(expanded, body, 0o644); err != nil {
					return fmt.Errorf("write result: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote task %d result to %s\n", id, expanded)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format (json, srt, vtt); defaults to json")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the result to this file instead of stdout")
	return cmd
}
