package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"hanapbahay/internal/app"
	"hanapbahay/internal/notify"
	"hanapbahay/internal/service"

	"github.com/spf13/cobra"
)

func bookingArg(args []string) (int64, error) {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid booking id %q", args[0])
	}
	return id, nil
}

func verifyLedgerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-ledger [booking-id]",
		Short: "Compare a booking's rent payments with the rent rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookingID, err := bookingArg(args)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				found, err := a.Payments.VerifyLedger(ctx, service.System, bookingID)
				if err != nil {
					return err
				}
				if len(found) == 0 {
					fmt.Printf("Booking %d: ledger is consistent\n", bookingID)
					return nil
				}

				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "PERIOD\tPAYMENT\tFIELD\tSTORED\tEXPECTED\tSTATUS")
				for _, d := range found {
					fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n",
						d.Period, d.PaymentID, d.Field, notify.Peso(d.Stored), notify.Peso(d.Expected), d.Status)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				return fmt.Errorf("booking %d: %d discrepancies", bookingID, len(found))
			})
		},
	}
}

func repairLedgerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair-ledger [booking-id]",
		Short: "Rewrite unsettled payments to the expected amounts and add missing months",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookingID, err := bookingArg(args)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				changed, err := a.Payments.RepairLedger(ctx, service.System, bookingID)
				if err != nil {
					return err
				}
				for _, p := range changed {
					fmt.Printf("%s  payment %d  amount %s  late fee %s  %s\n",
						p.Period, p.ID, notify.Peso(p.Amount), notify.Peso(p.LateFee), p.Status)
				}
				fmt.Printf("Booking %d: %d payments repaired\n", bookingID, len(changed))
				return nil
			})
		},
	}
}
