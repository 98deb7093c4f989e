package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/lnvps/lnvps-go"
)

var vmCmd = &cobra.Command{
	Use:   "vm",
	Short: "Inspect virtual machines",
}

var vmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List VMs owned by the account",
	Args:  cobra.NoArgs,
	RunE:  runVMList,
}

var vmGetCmd = &cobra.Command{
	Use:   "get <vm-id>",
	Short: "Show a VM",
	Args:  cobra.ExactArgs(1),
	RunE:  runVMGet,
}

func init() {
	vmCmd.AddCommand(vmListCmd)
	vmCmd.AddCommand(vmGetCmd)
}

func parseVMID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, lnvps.NewValidationError(fmt.Sprintf("invalid vm id %q", s), err)
	}
	return id, nil
}

func runVMList(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	vms, err := e.client.ListVMs(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, vms)
	}
	for _, vm := range vms {
		printVMLine(cmd, vm)
	}
	return nil
}

func runVMGet(cmd *cobra.Command, args []string) error {
	id, err := parseVMID(args[0])
	if err != nil {
		return err
	}
	e, err := setup(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	vm, err := e.client.GetVM(cmd.Context(), id)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), vm)
	}
	printVMLine(cmd, *vm)
	return nil
}

func printVMLine(cmd *cobra.Command, vm lnvps.VmInstance) {
	state := "unknown"
	if vm.Status != nil {
		state = vm.Status.State
	}
	r := vm.Resources()
	fmt.Fprintf(cmd.OutOrStdout(), "%-6d %-10s %2d vCPU %6d MiB %6d GiB  expires %s (%s)\n",
		vm.ID, state, r.CPU, r.Memory>>20, r.Disk>>30,
		vm.Expires.Format(time.DateOnly), vm.Template.CostPlan.IntervalType)
}
