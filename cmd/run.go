package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnknownOlympus/pincheck/internal/automation"
	"github.com/UnknownOlympus/pincheck/internal/automation/appium"
	"github.com/UnknownOlympus/pincheck/internal/automation/rodriver"
	"github.com/UnknownOlympus/pincheck/internal/config"
	"github.com/UnknownOlympus/pincheck/internal/events"
	"github.com/UnknownOlympus/pincheck/internal/geocoding"
	"github.com/UnknownOlympus/pincheck/internal/metrics"
	"github.com/UnknownOlympus/pincheck/internal/pincode"
	"github.com/UnknownOlympus/pincheck/internal/provider"
	"github.com/UnknownOlympus/pincheck/internal/report"
	"github.com/UnknownOlympus/pincheck/internal/service"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const pingTimeout = 30 * time.Second

var (
	errBackendUnreachable = errors.New("automation backend unreachable")
	errInterrupted        = errors.New("run interrupted")
)

func newRunCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Check every pincode of the input file against the configured providers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Interrupts stop the run before the next pincode; partial results are still written.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(*configFile, cmd.Flags())
			if err != nil {
				return err
			}

			return run(ctx, cfg, setupLogger(cfg.Env), cmd.OutOrStdout())
		},
	}

	cmd.Flags().String("input", "", "Input CSV with pincodes")
	cmd.Flags().String("output", "", "Results CSV (default results.csv)")
	cmd.Flags().String("invalid", "", "Invalid pincodes CSV (default invalid_pincodes.csv)")
	cmd.Flags().StringSlice("providers", nil, "Providers in column order: zepto_web, zepto_app, blinkit, instamart")
	cmd.Flags().Bool("header", false, "Input has a header row")
	cmd.Flags().String("column", "", "Pincode column of a headered input (default pincode)")

	return cmd
}

// run executes one check run. Setup failures return before any provider is contacted;
// output failures are returned after every result has been computed.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	runID := uuid.NewString()
	logger = logger.With("run", runID)

	// Create a separate registry for metrics with exemplar
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	sink := events.WithRunID(events.Multi(events.NewLogSink(logger), appMetrics), runID)

	launchers, err := newLaunchers(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, l := range launchers.all() {
			if serr := l.Shutdown(); serr != nil {
				logger.WarnContext(ctx, "Failed to shut down automation backend", "error", serr)
			}
		}
	}()

	adapters, err := buildAdapters(cfg, launchers.Launchers, sink, logger)
	if err != nil {
		return err
	}

	resolver, err := geocoding.NewProvider(geocoding.ProviderConfig{
		Type:      geocoding.ProviderType(cfg.Geocoder.Type),
		APIKey:    cfg.Geocoder.APIKey,
		RateLimit: cfg.Geocoder.RateLimit,
		BaseURL:   cfg.Geocoder.BaseURL,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create geocoding provider: %w", err)
	}

	valid, invalid, err := pincode.Read(cfg.Input.Path, pincode.Options{Header: cfg.Input.Header, Column: cfg.Input.Column})
	if err != nil {
		return err
	}
	appMetrics.ObserveInput(len(valid), len(invalid))
	logger.InfoContext(ctx, "Input loaded", "valid", len(valid), "invalid", len(invalid))

	if err = pingBackends(ctx, launchers.all()); err != nil {
		return err
	}

	if cfg.Monitoring.Port > 0 {
		go startMonitoringServer(ctx, logger, reg, launchers.all(), cfg.Monitoring.Port)
	}

	svc := service.NewCheckService(logger, adapters, resolver, sink, cfg.Run.PincodeDelay)
	results := svc.Run(ctx, valid)

	if err = report.WriteResults(cfg.Output.Results, svc.Providers(), results); err != nil {
		return err
	}
	if err = report.WriteInvalid(cfg.Output.Invalid, invalid); err != nil {
		return err
	}
	logger.InfoContext(ctx, "Reports written", "results", cfg.Output.Results, "invalid", cfg.Output.Invalid)

	report.Summarize(svc.Providers(), results, len(invalid)).Render(out)

	if ctx.Err() != nil {
		return fmt.Errorf("%w after %d of %d pincodes", errInterrupted, len(results), len(valid))
	}
	return nil
}

// backendLaunchers holds the launchers of the backends the configured providers use.
type backendLaunchers struct {
	provider.Launchers
}

func (b backendLaunchers) all() []automation.Launcher {
	var out []automation.Launcher
	if b.Browser != nil {
		out = append(out, b.Browser)
	}
	if b.App != nil {
		out = append(out, b.App)
	}
	return out
}

func newLaunchers(cfg *config.Config, logger *slog.Logger) (backendLaunchers, error) {
	var launchers backendLaunchers

	for _, t := range cfg.ProviderTypes() {
		switch t.Backend() {
		case provider.BackendBrowser:
			if launchers.Browser != nil {
				continue
			}
			launchers.Browser = rodriver.NewLauncher(rodriver.Config{
				ControlURL:        cfg.Browser.ControlURL,
				Bin:               cfg.Browser.Bin,
				Headless:          cfg.Browser.Headless,
				ViewportWidth:     cfg.Browser.ViewportWidth,
				ViewportHeight:    cfg.Browser.ViewportHeight,
				NavigationTimeout: cfg.Browser.NavigationTimeout,
			}, logger)
		case provider.BackendApp:
			if launchers.App != nil {
				continue
			}
			caps, err := cfg.Appium.DesiredCapabilities()
			if err != nil {
				return backendLaunchers{}, err
			}
			launchers.App = appium.NewLauncher(appium.Config{
				URL:            cfg.Appium.URL,
				Capabilities:   caps,
				PollInterval:   cfg.Appium.PollInterval,
				CommandTimeout: cfg.Appium.CommandTimeout,
			}, logger)
		}
	}

	return launchers, nil
}

// buildAdapters creates one adapter per configured provider, in column order.
func buildAdapters(
	cfg *config.Config,
	launchers provider.Launchers,
	sink events.Sink,
	logger *slog.Logger,
) ([]provider.Adapter, error) {
	types := cfg.ProviderTypes()
	adapters := make([]provider.Adapter, 0, len(types))
	seen := make(map[provider.ProviderType]bool, len(types))

	for _, t := range types {
		if seen[t] {
			return nil, fmt.Errorf("provider %s configured more than once", t)
		}
		seen[t] = true

		adapter, err := provider.NewAdapter(provider.ProviderConfig{
			Type:      t,
			Override:  cfg.Override(t),
			Launchers: launchers,
			Events:    sink,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}

	return adapters, nil
}

func pingBackends(ctx context.Context, launchers []automation.Launcher) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	for _, l := range launchers {
		if err := l.Ping(pingCtx); err != nil {
			return fmt.Errorf("%w: %w", errBackendUnreachable, err)
		}
	}
	return nil
}
