package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <payment-id>",
	Short: "Check whether a payment has settled",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	p, err := e.client.PaymentStatus(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), p)
	}
	state := "unpaid"
	if p.IsPaid {
		state = "paid"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %d %s (expires %s)\n", p.ID, state, p.Amount, p.Currency, p.Expires.Format("2006-01-02 15:04"))
	return nil
}
