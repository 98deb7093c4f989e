package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/lnvps/lnvps-go"
	"github.com/lnvps/lnvps-go/cache"
	lnvpshttp "github.com/lnvps/lnvps-go/http"
	"github.com/lnvps/lnvps-go/internal/config"
	"github.com/lnvps/lnvps-go/payment"
	"github.com/lnvps/lnvps-go/pricing"
	"github.com/lnvps/lnvps-go/signers/nostr"
)

var (
	cfgFile  string
	verbose  bool
	traceOut bool
	jsonOut  bool
	rootCmd  *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "lnvpsctl",
		Short: "Manage LNVPS virtual machines and payments",
		Long: `lnvpsctl talks to the LNVPS storefront API.

Requests are signed with the configured Nostr key. Renewals and upgrades are
paid over any rail the storefront offers; lnvpsctl waits until the payment
settles.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.lnvps/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&traceOut, "trace", false, "print API request spans to stderr")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print results as JSON")
}

// Execute runs the root command.
func Execute(version string) error {
	rootCmd.AddCommand(methodsCmd)
	rootCmd.AddCommand(vmCmd)
	rootCmd.AddCommand(renewCmd)
	rootCmd.AddCommand(upgradeCmd)
	rootCmd.AddCommand(priceCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", lnvps.Describe(err))
		return err
	}
	return nil
}

// env holds what every API command needs.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *lnvpshttp.Client
	methods *payment.MethodCache
	closers []func() error
}

func setup(w io.Writer) (*env, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger := newLogger(w, cfg.Log)
	slog.SetDefault(logger)

	e := &env{cfg: cfg, logger: logger}

	signer, err := newSigner(cfg)
	if err != nil {
		return nil, err
	}
	opts := []lnvpshttp.ClientOption{
		lnvpshttp.WithSigner(signer),
		lnvpshttp.WithTimeout(cfg.API.Timeout),
		lnvpshttp.WithLogger(logger),
	}
	if traceOut {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
		e.closers = append(e.closers, func() error { return tp.Shutdown(context.Background()) })
		opts = append(opts, lnvpshttp.WithTracerProvider(tp))
	}

	e.client, err = lnvpshttp.NewClient(cfg.API.BaseURL, opts...)
	if err != nil {
		e.Close()
		return nil, err
	}

	var store cache.Store = cache.NewMemoryStore()
	if cfg.Cache.Path != "" {
		bs, err := cache.NewBadgerStore(cfg.Cache.Path)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("open cache: %w", err)
		}
		e.closers = append(e.closers, bs.Close)
		store = bs
	}
	e.methods = payment.NewMethodCache(e.client, store, cache.WithLogger(logger)).WithTTL(cfg.Cache.MethodsTTL)

	return e, nil
}

// Close releases the cache store and flushes traces.
func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.logger.Warn("cleanup failed", "error", err)
		}
	}
	e.closers = nil
}

func newSigner(cfg *config.Config) (lnvps.Signer, error) {
	key, err := cfg.PrivateKey()
	if err != nil {
		return nil, err
	}
	if key == "" {
		return lnvps.AnonymousSigner, nil
	}
	signer, err := nostr.NewSigner(key)
	if err != nil {
		return nil, err
	}
	return signer, nil
}

func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

var registerMetricsOnce sync.Once

// registerMetrics adds the SDK collectors to the default registry.
func registerMetrics(logger *slog.Logger) {
	registerMetricsOnce.Do(func() {
		for _, register := range []func(prometheus.Registerer) error{
			cache.RegisterMetrics,
			lnvpshttp.RegisterMetrics,
			payment.RegisterMetrics,
			pricing.RegisterMetrics,
		} {
			var already prometheus.AlreadyRegisteredError
			if err := register(prometheus.DefaultRegisterer); err != nil && !errors.As(err, &already) {
				logger.Warn("failed to register metrics", "error", err)
			}
		}
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
