package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lnvps/lnvps-go"
	lnvpsgin "github.com/lnvps/lnvps-go/http/gin"
	"github.com/lnvps/lnvps-go/notify"
	"github.com/lnvps/lnvps-go/payment"
	"github.com/lnvps/lnvps-go/validation"
)

var (
	payMethod  string
	payListen  string
	renewCount uint64

	upgradeCPU    uint16
	upgradeMemory uint64
	upgradeDisk   uint64
)

var renewCmd = &cobra.Command{
	Use:   "renew <vm-id>",
	Short: "Pay for a VM renewal and wait until it settles",
	Args:  cobra.ExactArgs(1),
	RunE:  runRenew,
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Quote or pay for a resource upgrade",
}

var upgradeQuoteCmd = &cobra.Command{
	Use:   "quote <vm-id>",
	Short: "Show the pro-rated cost of an upgrade",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpgradeQuote,
}

var upgradePayCmd = &cobra.Command{
	Use:   "pay <vm-id>",
	Short: "Pay for an upgrade and wait until it settles",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpgradePay,
}

func init() {
	for _, c := range []*cobra.Command{renewCmd, upgradePayCmd} {
		c.Flags().StringVar(&payMethod, "method", "", "payment rail (default from config, else chosen automatically)")
		c.Flags().StringVar(&payListen, "listen", "", "serve checkout and settlement callbacks on this address while waiting")
	}
	renewCmd.Flags().Uint64VarP(&renewCount, "intervals", "n", 1, "billing periods to renew for")

	for _, c := range []*cobra.Command{upgradeQuoteCmd, upgradePayCmd} {
		c.Flags().Uint16Var(&upgradeCPU, "cpu", 0, "desired vCPU count")
		c.Flags().Uint64Var(&upgradeMemory, "memory", 0, "desired memory in MiB")
		c.Flags().Uint64Var(&upgradeDisk, "disk", 0, "desired disk size in GiB")
	}
	upgradeQuoteCmd.Flags().StringVar(&payMethod, "method", lnvps.MethodLightning, "payment rail used for the quote currency")

	upgradeCmd.AddCommand(upgradeQuoteCmd)
	upgradeCmd.AddCommand(upgradePayCmd)
}

func runRenew(cmd *cobra.Command, args []string) error {
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
	return runPayment(cmd, e, payment.RenewTargetFor(vm, renewCount))
}

// desiredResources applies the upgrade flags to the VM's current resources.
func desiredResources(current lnvps.VmResources) lnvps.VmResources {
	desired := current
	if upgradeCPU > 0 {
		desired.CPU = upgradeCPU
	}
	if upgradeMemory > 0 {
		desired.Memory = upgradeMemory << 20
	}
	if upgradeDisk > 0 {
		desired.Disk = upgradeDisk << 30
	}
	return desired
}

func runUpgradeQuote(cmd *cobra.Command, args []string) error {
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
	req, err := validation.BuildUpgradeRequest(vm.Resources(), desiredResources(vm.Resources()))
	if err != nil {
		return err
	}
	quote, err := e.client.UpgradeQuote(cmd.Context(), id, req, payMethod)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, quote)
	}
	fmt.Fprintf(out, "due now:      %.2f %s\n", quote.CostDifference.Amount, quote.CostDifference.Currency)
	fmt.Fprintf(out, "discount:     %.2f %s\n", quote.Discount.Amount, quote.Discount.Currency)
	fmt.Fprintf(out, "new renewal:  %.2f %s\n", quote.NewRenewalCost.Amount, quote.NewRenewalCost.Currency)
	return nil
}

func runUpgradePay(cmd *cobra.Command, args []string) error {
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
	current := vm.Resources()
	return runPayment(cmd, e, payment.UpgradeTarget(id, current, desiredResources(current)))
}

// runPayment drives one payment attempt to a terminal state.
func runPayment(cmd *cobra.Command, e *env, target payment.Target) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	hub := payment.NewHub(e.logger)

	var callback lnvps.PaymentCallback
	if e.cfg.NATS.URL != "" {
		nc, err := notify.Connect(e.cfg.NATS.URL, e.logger)
		if err != nil {
			return err
		}
		defer nc.Drain()

		sub := notify.NewSubscriber(hub, e.logger)
		if err := sub.Subscribe(nc); err != nil {
			return err
		}
		defer sub.Close()
		callback = notify.NewPublisher(nc, e.logger).Callback()
	}

	if payListen != "" {
		registerMetrics(e.logger)
		srv := &http.Server{
			Addr: payListen,
			Handler: lnvpsgin.New(lnvpsgin.Config{
				Sink:        hub,
				Secret:      e.cfg.Server.CallbackSecret,
				TrustedKeys: e.cfg.Server.CallbackKeys,
				PublicURL:   e.cfg.Server.PublicURL,
				Logger:      e.logger,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				e.logger.Error("callback server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	method := payMethod
	if method == "" {
		method = e.cfg.Payment.Method
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	snapshots := make(chan payment.Snapshot, 16)
	completions := make(chan payment.Completion, 1)
	opts := []payment.Option{
		payment.WithMethodCache(e.methods),
		payment.WithTimeouts(e.cfg.Timeouts()),
		payment.WithLogger(e.logger),
		payment.WithHub(hub),
		payment.WithStateListener(func(s payment.Snapshot) {
			select {
			case snapshots <- s:
			case <-runCtx.Done():
			}
		}),
		payment.WithCompletionHandler(func(c payment.Completion) { completions <- c }),
	}
	if method != "" {
		opts = append(opts, payment.WithPreselectedMethod(method))
	}
	if callback != nil {
		opts = append(opts, payment.WithPaymentCallback(callback))
	}

	o, err := payment.New(e.client, target, opts...)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = o.Run(runCtx)
	}()
	defer func() {
		cancelRun()
		<-done
	}()

	o.Dispatch(payment.Mount{})

	interrupted := ctx.Done()
	for {
		select {
		case <-interrupted:
			interrupted = nil
			fmt.Fprintln(out, "cancelling payment")
			o.Dispatch(payment.Cancel{})
		case s := <-snapshots:
			switch s.State {
			case payment.StateMethodSelection:
				m, ok := lnvps.PreferredMethod(s.Methods, "", lnvps.MethodLightning, lnvps.MethodNWC)
				if !ok {
					o.Dispatch(payment.Cancel{})
					return errors.New("no payment method available")
				}
				o.Dispatch(payment.SelectMethod{Name: m.Name})
			case payment.StatePending:
				printPending(out, s, payListen)
			case payment.StateCompleted:
				completion := <-completions
				fmt.Fprintf(out, "payment %s settled in %s\n", completion.Payment.ID, completion.Duration.Round(time.Second))
				return nil
			case payment.StateCancelled:
				return errors.New("payment cancelled")
			case payment.StateFailed:
				return errors.New(s.Error)
			}
		}
	}
}

func printPending(w io.Writer, s payment.Snapshot, listen string) {
	p := s.Payment
	fmt.Fprintf(w, "payment %s: %d %s via %s\n", p.ID, p.Amount, p.Currency, s.Method)
	switch s.Rail {
	case payment.RailInvoice:
		if data, err := p.Data.AsLightningData(); err == nil && data.Lightning != "" {
			fmt.Fprintf(w, "invoice: %s\n", data.Lightning)
		}
	case payment.RailCard:
		if data, err := p.Data.AsRevolutData(); err == nil && data.Revolut.Token != "" {
			fmt.Fprintf(w, "checkout token: %s\n", data.Revolut.Token)
		}
		if listen == "" {
			fmt.Fprintln(w, "warning: no --listen address, checkout result cannot be received")
		}
	case payment.RailPull:
		fmt.Fprintf(w, "pay to: %s\n", s.Address)
	}
	if !p.Expires.IsZero() {
		fmt.Fprintf(w, "expires: %s\n", p.Expires.Format(time.RFC3339))
	}
	fmt.Fprintln(w, "waiting for settlement...")
}
