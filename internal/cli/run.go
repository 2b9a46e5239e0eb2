// Package cli holds the cobra commands of the reconcile binary.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/app"
	"github.com/joseph-ayodele/carrier-reconciler/internal/common"
	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
	"github.com/joseph-ayodele/carrier-reconciler/internal/export"
	"github.com/joseph-ayodele/carrier-reconciler/internal/ledger"
	"github.com/joseph-ayodele/carrier-reconciler/internal/reconcile"
	"github.com/joseph-ayodele/carrier-reconciler/internal/store"
)

// ErrRunFailed is returned when a run ends outside SUCCESS.
var ErrRunFailed = errors.New("reconciliation failed")

type runFlags struct {
	partner    string
	file       string
	meta       string
	threshold  string
	ledgerJSON string
	out        string
	runsDB     string
	ratesDir   string
}

// RunCmd returns the run command
func RunCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile one partner invoice against the order ledger",
		Long: `Normalize a partner invoice, price every line against the partner's rates
and print the delta between charged and expected prices.

Orders come from --ledger-json when given, otherwise from LEDGER_DB_URL.`,
		Example: `  reconcile run --partner brenger --file invoice.pdf --ledger-json orders.json
  reconcile run --partner libero --file januari.xlsx --meta januari.pdf --out deltas.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoice(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}

	cmd.Flags().StringVarP(&f.partner, "partner", "p", "", "partner name (see 'reconcile partners')")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "primary invoice document")
	cmd.Flags().StringVar(&f.meta, "meta", "", "companion document (libero invoice PDF)")
	cmd.Flags().StringVar(&f.threshold, "threshold", "", "delta sum still within threshold (default DELTA_THRESHOLD)")
	cmd.Flags().StringVar(&f.ledgerJSON, "ledger-json", "", "JSON array of orders to use instead of the ledger database")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "write the delta rows to this XLSX file")
	cmd.Flags().StringVar(&f.runsDB, "runs-db", "", "record the run in this SQLite run history")
	cmd.Flags().StringVar(&f.ratesDir, "rates-dir", "", "rate table directory (default RATES_DIR)")
	_ = cmd.MarkFlagRequired("partner")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runInvoice(ctx context.Context, w io.Writer, f runFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := common.LoadConfig()
	if f.ratesDir != "" {
		cfg.Rates.Dir = f.ratesDir
	}
	logger := app.NewLogger(cfg)

	partner, ok := constants.ParsePartner(f.partner)
	if !ok {
		return &common.UnsupportedPartnerError{Partner: f.partner}
	}
	req := reconcile.EvaluateRequest{Partner: partner}
	var err error
	if req.Primary, err = os.ReadFile(f.file); err != nil {
		return fmt.Errorf("read invoice: %w", err)
	}
	if f.meta != "" {
		if req.Secondary, err = os.ReadFile(f.meta); err != nil {
			return fmt.Errorf("read companion document: %w", err)
		}
	}
	if f.threshold != "" {
		t, err := decimal.NewFromString(f.threshold)
		if err != nil {
			return fmt.Errorf("--threshold %q: %w", f.threshold, common.ErrInvalidInput)
		}
		req.Threshold = decimal.NewNullDecimal(t)
	}

	orders, closeLedger, err := openLedger(ctx, cfg, f.ledgerJSON, logger)
	if err != nil {
		return err
	}
	defer closeLedger()

	orch, err := app.NewOrchestrator(cfg, orders, logger)
	if err != nil {
		return err
	}
	out := orch.Evaluate(ctx, req)
	printOutcome(w, out)

	if f.runsDB != "" {
		rs, err := store.Open(ctx, f.runsDB, logger)
		if err != nil {
			return err
		}
		defer func() { _ = rs.Close() }()
		run, rows := store.RunFromOutcome(out)
		if _, err := rs.SaveRun(ctx, run, rows); err != nil {
			return err
		}
	}
	if out.Failed() {
		return fmt.Errorf("%w: %s", ErrRunFailed, common.InnermostMessage(out.Err))
	}
	if f.out != "" {
		b, err := export.NewExporter(logger).Workbook(out.Result)
		if err != nil {
			return err
		}
		if err := os.WriteFile(f.out, b, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.out, err)
		}
		fmt.Fprintf(w, "Deltas written to %s\n", f.out)
	}
	return nil
}

func openLedger(ctx context.Context, cfg *common.Config, jsonPath string, logger *slog.Logger) (reconcile.OrderLedger, func(), error) {
	if jsonPath != "" {
		b, err := os.ReadFile(jsonPath)
		if err != nil {
			return nil, nil, fmt.Errorf("read ledger json: %w", err)
		}
		var orders []entity.OrderRecord
		if err := json.Unmarshal(b, &orders); err != nil {
			return nil, nil, fmt.Errorf("decode ledger json: %w", err)
		}
		for i, o := range orders {
			if err := validateOrder(o); err != nil {
				return nil, nil, fmt.Errorf("ledger json order %d: %w", i, err)
			}
		}
		return reconcile.NewMemoryLedger(orders), func() {}, nil
	}
	if strings.TrimSpace(cfg.Ledger.DSN) == "" {
		return nil, nil, fmt.Errorf("%w: set LEDGER_DB_URL or pass --ledger-json", common.ErrInvalidInput)
	}
	pool, err := ledger.Open(ctx, cfg.Ledger, logger)
	if err != nil {
		return nil, nil, err
	}
	return ledger.NewPostgresLedger(pool, cfg.Ledger, logger), func() { ledger.Close(pool, logger) }, nil
}

func validateOrder(o entity.OrderRecord) error {
	return common.NewValidator().
		Field("order_id", o.OrderID, common.UUID).
		Field("buyer_country", o.BuyerCountry, common.CountryCode).
		Field("seller_country", o.SellerCountry, common.CountryCode).
		Error()
}

func printOutcome(w io.Writer, out reconcile.Outcome) {
	var badge string
	switch {
	case out.Failed():
		badge = color.New(color.FgRed, color.Bold).Sprint("FAILED")
	case out.Reaction() == reconcile.ReactionOK:
		badge = color.New(color.FgGreen).Sprint("OK")
	case out.Reaction() == reconcile.ReactionOverdue:
		badge = color.New(color.FgRed).Sprint("OVER THRESHOLD")
	default:
		badge = color.New(color.FgYellow).Sprint("NO COMPARISON")
	}
	fmt.Fprintf(w, "%s %s\n", badge, out.Message())
	fmt.Fprintf(w, "  run: %s  state: %s\n", out.RunID, out.State)
	if out.Result == nil {
		return
	}

	for _, row := range out.Result.PositiveDeltas() {
		fmt.Fprintf(w, "  %s %-38s charged %8s expected %8s\n",
			color.New(color.FgYellow).Sprintf("+%s", row.Delta.StringFixed(2)),
			row.OrderID, row.Charged.StringFixed(2), row.Expected.StringFixed(2))
	}
	for _, d := range out.Result.Diagnostics {
		if d.Severity == entity.SeverityInfo {
			continue
		}
		fmt.Fprintf(w, "  %s %s\n", color.New(color.FgYellow).Sprint("!"), d.String())
	}
}
