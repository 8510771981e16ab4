package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Khamel83/atlas-sub014/internal/config"
	"github.com/Khamel83/atlas-sub014/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the ingestion queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newQueueListCommand(ctx))
	cmd.AddCommand(newQueueStatusCommand(ctx))
	cmd.AddCommand(newQueueRetryCommand(ctx))
	cmd.AddCommand(newQueueCleanupCommand(ctx))
	cmd.AddCommand(newQueueClearCommand(ctx))
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List content items, optionally filtered by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var statuses []queue.ItemStatus
			if statusFlag != "" {
				for _, raw := range strings.Split(statusFlag, ",") {
					status, ok := queue.ParseItemStatus(raw)
					if !ok {
						return fmt.Errorf("unknown status %q", raw)
					}
					statuses = append(statuses, status)
				}
			}

			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				items, err := store.ListItems(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						item.ID,
						truncate(item.SourceURL, 60),
						item.Domain,
						string(item.Status),
						fmt.Sprintf("%d", item.AttemptCount),
						item.QualityTier,
						truncate(item.ErrorMessage, 40),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]tableColumn{
						{name: "ID"},
						{name: "URL"},
						{name: "Domain"},
						{name: "Status"},
						{name: "Attempts", numeric: true},
						{name: "Tier"},
						{name: "Error"},
					},
					rows,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Comma-separated status filter (e.g. dead_letter)")
	return cmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue counts, retry readiness, and breaker state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				status, err := store.QueueStatus(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()

				fmt.Fprintln(out, "Tasks:")
				for _, taskStatus := range queue.TaskStatuses() {
					if count := status.TasksByStatus[taskStatus]; count > 0 {
						fmt.Fprintf(out, "  %-12s %d\n", taskStatus, count)
					}
				}
				fmt.Fprintln(out, "Items:")
				for _, itemStatus := range queue.ItemStatuses() {
					if count := status.ItemsByStatus[itemStatus]; count > 0 {
						fmt.Fprintf(out, "  %-12s %d\n", itemStatus, count)
					}
				}
				fmt.Fprintf(out, "Failed: %d (retry-ready: %d)\n", status.FailedCount, status.RetryReadyCount)

				if len(status.Breakers) == 0 {
					fmt.Fprintln(out, "Breakers: none tripped")
					return nil
				}
				rows := make([][]string, 0, len(status.Breakers))
				for _, breaker := range status.Breakers {
					next := ""
					if breaker.NextRetryAt != nil {
						next = breaker.NextRetryAt.Local().Format(time.RFC3339)
					}
					rows = append(rows, []string{
						breaker.WorkerClass,
						string(breaker.State),
						fmt.Sprintf("%d", breaker.FailureCount),
						next,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]tableColumn{
						{name: "Worker Class"},
						{name: "State"},
						{name: "Failures", numeric: true},
						{name: "Next Retry"},
					},
					rows,
				))
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <task-id>...",
		Short: "Reset failed or dead-lettered tasks to pending",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				for _, taskID := range args {
					if err := store.RetryTask(cmd.Context(), taskID); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Task %s reset to pending.\n", taskID)
				}
				return nil
			})
		},
	}
}

func newQueueCleanupCommand(ctx *commandContext) *cobra.Command {
	var daysFlag int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove completed and dead-lettered tasks past the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if daysFlag <= 0 {
				return fmt.Errorf("--days must be positive, got %d", daysFlag)
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				removed, err := store.CleanupOldTasks(cmd.Context(), time.Duration(daysFlag)*24*time.Hour)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d old tasks.\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&daysFlag, "days", 30, "Remove terminal tasks older than this many days")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var yesFlag bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all items, tasks, and breaker state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yesFlag {
				return fmt.Errorf("refusing to clear the queue without --yes")
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d items.\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&yesFlag, "yes", false, "Confirm destructive clear")
	return cmd
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}
