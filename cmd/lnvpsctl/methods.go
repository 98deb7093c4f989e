package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lnvps/lnvps-go"
)

var methodsReload bool

var methodsCmd = &cobra.Command{
	Use:   "methods",
	Short: "List the payment rails available to the account",
	Args:  cobra.NoArgs,
	RunE:  runMethods,
}

func init() {
	methodsCmd.Flags().BoolVar(&methodsReload, "reload", false, "bypass the method cache")
}

func runMethods(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	get := e.methods.Get
	if methodsReload {
		get = e.methods.Reload
	}
	methods, err := get(ctx)
	if err != nil {
		return lnvps.WrapOp("list payment methods", err)
	}
	account, err := e.client.Account(ctx)
	if err != nil {
		return lnvps.WrapOp("load account", err)
	}
	methods = lnvps.SelectMethods(methods, account)

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, methods)
	}
	for _, m := range methods {
		fmt.Fprintf(out, "%-10s %s\n", m.Name, strings.Join(m.Currencies, ","))
	}
	return nil
}
