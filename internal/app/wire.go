// Package app wires configuration into a ready orchestrator and its sinks.
package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/joseph-ayodele/carrier-reconciler/internal/common"
	"github.com/joseph-ayodele/carrier-reconciler/internal/geo"
	"github.com/joseph-ayodele/carrier-reconciler/internal/pdftext"
	"github.com/joseph-ayodele/carrier-reconciler/internal/rates"
	"github.com/joseph-ayodele/carrier-reconciler/internal/reconcile"
)

// NewLogger returns a text slog logger at the configured level.
func NewLogger(cfg *common.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// NewJSONLogger is NewLogger for long-running processes.
func NewJSONLogger(cfg *common.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// NewOrchestrator builds every partner variant from cfg.
func NewOrchestrator(cfg *common.Config, ledger reconcile.OrderLedger, logger *slog.Logger) (*reconcile.Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if fi, err := os.Stat(cfg.Rates.Dir); err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("%w: RATES_DIR %q is not a directory", common.ErrRateData, cfg.Rates.Dir)
	}
	src, err := rates.NewDirSource(os.DirFS(cfg.Rates.Dir), logger)
	if err != nil {
		return nil, fmt.Errorf("rate source %s: %w", cfg.Rates.Dir, err)
	}
	deps := reconcile.Deps{
		Text:   pdftext.NewExtractor(pdftext.Config{Pdftotext: cfg.Extract.Pdftotext, Timeout: cfg.Extract.Timeout}, nil, logger),
		Rates:  rates.NewCatalog(src),
		Logger: logger,
	}
	if cfg.Distance.GeocodeAPIKey != "" {
		google := geo.NewGoogleClient(cfg.Distance.GeocodeAPIKey, cfg.Distance.DistanceAPIKey, &http.Client{Timeout: cfg.Distance.Timeout}, logger)
		deps.Distance = geo.NewGuarded(google, geo.GuardOptions{
			Timeout:  cfg.Distance.Timeout,
			Failures: cfg.Distance.BreakerFailures,
			Cooldown: cfg.Distance.BreakerCooldown,
		}, logger)
	} else {
		logger.Warn("app.distance.disabled", "reason", "GOOGLE_GEOCODE_API_KEY not set")
	}

	return reconcile.NewOrchestrator(reconcile.DefaultRegistry(deps), ledger,
		reconcile.WithThreshold(cfg.Runs.Threshold),
		reconcile.WithRunTimeout(cfg.Runs.Timeout),
		reconcile.WithLogger(logger),
	), nil
}
