package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lnvps/lnvps-go"
	"github.com/lnvps/lnvps-go/pricing"
)

var priceParams lnvps.CustomTemplateParams

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Price a custom VM configuration",
	Args:  cobra.NoArgs,
	RunE:  runPrice,
}

func init() {
	f := priceCmd.Flags()
	f.Uint64Var(&priceParams.RegionID, "region", 0, "region id")
	f.Uint64Var(&priceParams.PricingID, "pricing", 0, "custom pricing id")
	f.Uint16Var(&priceParams.CPU, "cpu", 1, "vCPU count")
	f.Uint64Var(&priceParams.Memory, "memory", 1024, "memory in MiB")
	f.Uint64Var(&priceParams.Disk, "disk", 20, "disk size in GiB")
	f.StringVar(&priceParams.DiskType, "disk-type", "ssd", "hdd or ssd")
	f.StringVar(&priceParams.DiskInterface, "disk-interface", "pcie", "sata, scsi or pcie")
}

func runPrice(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	params := priceParams
	params.Memory <<= 20
	params.Disk <<= 30

	quotes := make(chan pricing.Quote, 1)
	engine := pricing.NewEngine(e.client, func(q pricing.Quote) { quotes <- q },
		pricing.WithDelay(e.cfg.Payment.DebounceDelay),
		pricing.WithLogger(e.logger),
	)
	defer engine.Close()

	if err := engine.Update(params); err != nil {
		return err
	}

	select {
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	case q := <-quotes:
		if q.Err != nil {
			return q.Err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), q.Price)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%.2f %s\n", q.Price.Amount, q.Price.Currency)
		return nil
	}
}
