package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"hanapbahay/internal/app"
	"hanapbahay/internal/database"

	"github.com/spf13/cobra"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Inspect the ledger spreadsheet sync queue",
	}
	cmd.AddCommand(syncStatusCmd(), syncFailedCmd(), syncRequeueCmd(), syncPurgeCmd())
	return cmd
}

func syncStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Count queued tasks by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				counts, err := a.DB.SyncQueueCounts(ctx)
				if err != nil {
					return err
				}
				for _, status := range []string{database.SyncPending, database.SyncRetry, database.SyncCompleted, database.SyncFailed} {
					fmt.Printf("%-10s %d\n", status, counts[status])
				}
				return nil
			})
		},
	}
}

func syncFailedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "failed",
		Short: "List tasks that ran out of retries",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				tasks, err := a.DB.ListSyncTasks(ctx, database.SyncFailed, limit)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTYPE\tPAYMENT\tRETRIES\tERROR")
				for _, t := range tasks {
					lastErr := ""
					if t.LastError != nil {
						lastErr = *t.LastError
					}
					fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n", t.ID, t.TaskType, t.PaymentID, t.RetryCount, lastErr)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().Int("limit", 50, "Maximum tasks to list")
	return cmd
}

func syncRequeueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue",
		Short: "Retry every failed task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.DB.RequeueFailedSyncTasks(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("%d tasks requeued\n", n)
				return nil
			})
		},
	}
}

func syncPurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete completed tasks older than --older-than",
		RunE: func(cmd *cobra.Command, args []string) error {
			age, _ := cmd.Flags().GetDuration("older-than")
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.DB.PurgeCompletedSyncTasks(ctx, time.Now().Add(-age))
				if err != nil {
					return err
				}
				fmt.Printf("%d tasks purged\n", n)
				return nil
			})
		},
	}
	cmd.Flags().Duration("older-than", 30*24*time.Hour, "Minimum age of purged tasks")
	return cmd
}
