package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"murmur/internal/api"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check readiness of the transcription pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				report, err := client.Health(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, report)
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				if report.Healthy {
					fmt.Fprintln(out, renderStatusLine("Pipeline", statusOK, "All stages ready", colorize))
				} else {
					fmt.Fprintln(out, renderStatusLine("Pipeline", statusError, "One or more stages unavailable", colorize))
				}
				for _, stage := range report.Stages {
					kind := statusOK
					detail := stage.Detail
					if !stage.Ready {
						kind = statusError
						if detail == "" {
							detail = "Not ready"
						}
					} else if detail == "" {
						detail = "Ready"
					}
					fmt.Fprintln(out, renderStatusLine(stage.Name, kind, detail, colorize))
				}
				if !report.Healthy {
					return fmt.Errorf("pipeline is not healthy")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output health report as JSON")
	return cmd
}
