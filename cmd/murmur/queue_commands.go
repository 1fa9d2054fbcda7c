package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"murmur/internal/api"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var status string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transcription tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withTasks(cmd.Context(), func(runCtx context.Context, tasks taskAPI) error {
				views, err := tasks.List(runCtx, strings.TrimSpace(status))
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.TaskListResponse{Tasks: views})
				}
				if len(views) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Title", "Status", "Progress", "Created"},
					buildTaskListRows(views),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "Filter by task status")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the task list as JSON")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <taskID>",
		Short: "Show details for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return ctx.withTasks(cmd.Context(), func(runCtx context.Context, tasks taskAPI) error {
				view, err := tasks.Describe(runCtx, id)
				if err != nil {
					return err
				}
				if view == nil {
					return fmt.Errorf("task %d not found", id)
				}
				if jsonOut {
					return writeJSON(cmd, api.TaskResponse{Task: *view})
				}
				printTaskDetail(cmd, *view)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the task as JSON")
	return cmd
}

func printTaskDetail(cmd *cobra.Command, task api.TaskView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Task #%d: %s\n", task.ID, taskDisplayTitle(task))
	printDetailLine(out, "Status", formatStatusLabel(task.Status))
	printDetailLine(out, "Source", task.SourcePath)
	printDetailLine(out, "Created", formatDisplayTime(task.CreatedAt))
	printDetailLine(out, "Updated", formatDisplayTime(task.UpdatedAt))
	if progress := formatProgress(task.Progress); progress != "-" {
		detail := progress
		if message := strings.TrimSpace(task.Progress.Message); message != "" {
			detail = fmt.Sprintf("%s (%s)", progress, message)
		}
		printDetailLine(out, "Progress", detail)
	}
	if task.ErrorMessage != "" {
		detail := task.ErrorMessage
		if task.ErrorKind != "" {
			detail = fmt.Sprintf("[%s] %s", task.ErrorKind, task.ErrorMessage)
		}
		printDetailLine(out, "Error", detail)
	}
	if task.CancelRequested {
		printDetailLine(out, "Cancel requested", yesNo(task.CancelRequested))
	}
	if task.DiarizationDegraded {
		printDetailLine(out, "Diarization", "degraded (single speaker assumed)")
	}
	if task.RefinementDegraded {
		printDetailLine(out, "Refinement", "degraded (raw transcript kept)")
	} else if task.RefinementPartial {
		printDetailLine(out, "Refinement", "partial (some batches kept raw)")
	}
	if summary := task.Transcript; summary != nil {
		if summary.Language != "" {
			printDetailLine(out, "Language", summary.Language)
		}
		if summary.Duration > 0 {
			printDetailLine(out, "Duration", fmt.Sprintf("%.1fs", summary.Duration))
		}
		if len(summary.Speakers) > 0 {
			printDetailLine(out, "Speakers", strings.Join(summary.Speakers, ", "))
		}
		printDetailLine(out, "Segments", fmt.Sprintf("%d", summary.SegmentCount))
	}
	if len(task.Artifacts) > 0 {
		fmt.Fprintln(out, "  Artifacts:")
		for _, artifact := range task.Artifacts {
			if artifact.Error != "" {
				fmt.Fprintf(out, "    %-5s render failed: %s\n", artifact.Format+":", artifact.Error)
				continue
			}
			fmt.Fprintf(out, "    %-5s %s\n", artifact.Format+":", artifact.Path)
		}
	}
}

func printDetailLine(out io.Writer, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(out, "  %-18s %s\n", label+":", value)
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <taskID>...",
		Short: "Cancel queued or running tasks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseTaskIDs(args)
			if err != nil {
				return err
			}
			return ctx.withTasks(cmd.Context(), func(runCtx context.Context, tasks taskAPI) error {
				out := cmd.OutOrStdout()
				for _, id := range ids {
					result, err := tasks.Cancel(runCtx, id)
					if err != nil {
						return err
					}
					switch result.Outcome {
					case api.CancelNotFound:
						fmt.Fprintf(out, "Task %d not found\n", id)
					case api.CancelAlreadyFinished:
						fmt.Fprintf(out, "Task %d already finished (%s)\n", id, formatStatusLabel(result.Status))
					case api.CancelPending:
						fmt.Fprintf(out, "Task %d cancellation requested (will stop after the current stage)\n", id)
					default:
						fmt.Fprintf(out, "Task %d cancelled\n", id)
					}
				}
				return nil
			})
		},
	}
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <taskID>...",
		Short: "Re-queue failed tasks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseTaskIDs(args)
			if err != nil {
				return err
			}
			return ctx.withTasks(cmd.Context(), func(runCtx context.Context, tasks taskAPI) error {
				out := cmd.OutOrStdout()
				for _, id := range ids {
					result, err := tasks.Retry(runCtx, id)
					if err != nil {
						return err
					}
					switch result.Outcome {
					case api.RetryNotFound:
						fmt.Fprintf(out, "Task %d not found\n", id)
					case api.RetryNotFailed:
						fmt.Fprintf(out, "Task %d is not in a failed state (only failed tasks can be retried)\n", id)
					default:
						fmt.Fprintf(out, "Task %d queued for retry\n", id)
					}
				}
				return nil
			})
		},
	}
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished tasks from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withTasks(cmd.Context(), func(runCtx context.Context, tasks taskAPI) error {
				removed, err := tasks.Clear(runCtx, strings.TrimSpace(status))
				if err != nil {
					return err
				}
				label := "tasks"
				if trimmed := strings.TrimSpace(status); trimmed != "" {
					label = fmt.Sprintf("%s tasks", trimmed)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d %s\n", removed, label)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "Remove only tasks with this status")
	return cmd
}

func parseTaskID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", arg)
	}
	return id, nil
}

func parseTaskIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseTaskID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
