package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"hanapbahay/internal/api"
	"hanapbahay/internal/app"
	"hanapbahay/internal/database"
	"hanapbahay/internal/logging"
	"hanapbahay/internal/models"
	"hanapbahay/internal/service"

	"github.com/spf13/cobra"
)

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark payments past grace overdue and apply late fees",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Payments.SweepOverdue(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("%d payments updated\n", n)
				return nil
			})
		},
	}
}

func remindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Send reminders for payments due in N days",
		RunE: func(cmd *cobra.Command, args []string) error {
			days, _ := cmd.Flags().GetInt("days")
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Payments.SendReminders(ctx, days)
				if err != nil {
					return err
				}
				fmt.Printf("%d reminders sent\n", n)
				return nil
			})
		},
	}
	cmd.Flags().IntP("days", "d", models.DefaultReminderDays, "Days before the due date")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [owner-id]",
		Short: "Write an owner's rent ledger to an xlsx file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || ownerID <= 0 {
				return fmt.Errorf("invalid owner id %q", args[0])
			}
			fromRaw, _ := cmd.Flags().GetString("from")
			toRaw, _ := cmd.Flags().GetString("to")

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				// Dates are read in the configured timezone, set by withApp.
				from, err := models.ParseDate(fromRaw)
				if err != nil {
					return fmt.Errorf("invalid --from: %w", err)
				}
				to, err := models.ParseDate(toRaw)
				if err != nil {
					return fmt.Errorf("invalid --to: %w", err)
				}
				path, err := a.Exporter.OwnerLedger(ctx, ownerID, from, to)
				if err != nil {
					return err
				}
				fmt.Println(path)
				return nil
			})
		},
	}

	year := time.Now().Year()
	cmd.Flags().String("from", fmt.Sprintf("%d-01-01", year), "First due date (YYYY-MM-DD)")
	cmd.Flags().String("to", fmt.Sprintf("%d-12-31", year), "Last due date (YYYY-MM-DD)")
	return cmd
}

func backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Copy the database to the backup directory and prune old copies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				backups := database.NewBackupService(a.DB, a.Config.Database.Path, a.Config.Backup, logging.Component(a.Logger, "backup"))
				path, err := backups.PerformBackup(ctx)
				if err != nil {
					return err
				}
				removed, err := backups.CleanupOldBackups()
				if err != nil {
					return err
				}
				fmt.Printf("%s (%d expired backups removed)\n", path, removed)
				return nil
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token [user-id]",
		Short: "Issue a bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || userID <= 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			ttl, _ := cmd.Flags().GetDuration("ttl")

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				auth := a.Config.API.Auth
				if auth.JWTSecret == "" {
					return fmt.Errorf("api.auth.jwt_secret is not set")
				}
				user, err := a.Accounts.GetUser(ctx, service.System, userID)
				if err != nil {
					return err
				}
				token, err := api.IssueToken(auth.JWTSecret, auth.JWTIssuer, service.Actor{UserID: user.ID, Role: user.Role}, ttl)
				if err != nil {
					return err
				}
				fmt.Println(token)
				return nil
			})
		},
	}
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
