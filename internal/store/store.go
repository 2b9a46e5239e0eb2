// Package store keeps the history of reconciliation runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/common"
	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
	"github.com/joseph-ayodele/carrier-reconciler/internal/reconcile"
)

const (
	runsTable  = "invoice_runs"
	linesTable = "invoice_lines"
	dateLayout = "2006-01-02"
)

// Run is one persisted reconciliation run.
type Run struct {
	ID                 string
	Partner            constants.Partner
	InvoiceNumber      string
	InvoiceDate        time.Time
	State              constants.RunState
	DeltaSum           decimal.Decimal
	ExpectedSum        decimal.Decimal
	ParsedOK           bool
	ComparisonPossible bool
	WithinThreshold    bool
	NumRows            int
	Message            string
	CreatedAt          time.Time
}

// RunFromOutcome flattens an orchestrator outcome into a Run and its rows.
func RunFromOutcome(o reconcile.Outcome) (Run, []entity.DeltaRow) {
	run := Run{
		ID:                 o.RunID,
		Partner:            o.Partner,
		State:              o.State,
		DeltaSum:           decimal.Zero,
		ExpectedSum:        decimal.Zero,
		ParsedOK:           o.ParsedOK,
		ComparisonPossible: o.ComparisonPossible(),
		WithinThreshold:    o.WithinThreshold,
		Message:            o.Message(),
	}
	if o.Result == nil {
		return run, nil
	}
	run.InvoiceNumber = o.Result.Meta.Number
	run.InvoiceDate = o.Result.Meta.Date
	run.DeltaSum = o.Result.DeltaSum
	run.ExpectedSum = o.Result.ExpectedSum
	run.NumRows = len(o.Result.Rows)
	return run, o.Result.Rows
}

// RunStore persists runs and their lines.
type RunStore struct {
	db     *sql.DB
	b      *entsql.DialectBuilder
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (creating when needed) the SQLite database at path and applies the schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*RunStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", common.ErrDatabase, path, err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	s := &RunStore{db: db, b: entsql.Dialect(dialect.SQLite), logger: logger, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("store.opened", "path", path)
	return s, nil
}

func (s *RunStore) Close() error {
	return s.db.Close()
}

func (s *RunStore) migrate(ctx context.Context) error {
	runs, _ := s.b.CreateTable(runsTable).IfNotExists().
		Columns(
			entsql.Column("id").Type("TEXT").Attr("NOT NULL"),
			entsql.Column("partner").Type("TEXT").Attr("NOT NULL"),
			entsql.Column("invoice_number").Type("TEXT").Attr("NOT NULL DEFAULT ''"),
			entsql.Column("invoice_date").Type("TEXT"),
			entsql.Column("state").Type("TEXT").Attr("NOT NULL"),
			entsql.Column("delta_sum").Type("TEXT").Attr("NOT NULL"),
			entsql.Column("expected_sum").Type("TEXT").Attr("NOT NULL"),
			entsql.Column("parsed_ok").Type("INTEGER").Attr("NOT NULL"),
			entsql.Column("comparison_possible").Type("INTEGER").Attr("NOT NULL"),
			entsql.Column("within_threshold").Type("INTEGER").Attr("NOT NULL"),
			entsql.Column("num_rows").Type("INTEGER").Attr("NOT NULL"),
			entsql.Column("message").Type("TEXT"),
			entsql.Column("created_at").Type("TEXT").Attr("NOT NULL"),
		).
		PrimaryKey("id").
		Query()

	lines, _ := s.b.CreateTable(linesTable).IfNotExists().
		Columns(
			entsql.Column("id").Type("INTEGER").Attr("PRIMARY KEY AUTOINCREMENT"),
			entsql.Column("run_id").Type("TEXT").Attr("NOT NULL"),
			entsql.Column("position").Type("INTEGER").Attr("NOT NULL"),
			entsql.Column("order_id").Type("TEXT").Attr("NOT NULL"),
			entsql.Column("partner_ref").Type("TEXT"),
			entsql.Column("order_date").Type("TEXT"),
			entsql.Column("weight").Type("TEXT"),
			entsql.Column("route").Type("TEXT"),
			entsql.Column("category_l1").Type("TEXT"),
			entsql.Column("category_l2").Type("TEXT"),
			entsql.Column("expected").Type("TEXT").Attr("NOT NULL"),
			entsql.Column("charged").Type("TEXT").Attr("NOT NULL"),
			entsql.Column("delta").Type("TEXT").Attr("NOT NULL"),
			entsql.Column("delta_sum").Type("TEXT").Attr("NOT NULL"),
			entsql.Column("invoice_number").Type("TEXT"),
			entsql.Column("invoice_date").Type("TEXT"),
			entsql.Column("partner").Type("TEXT").Attr("NOT NULL"),
			entsql.Column("resolution").Type("TEXT").Attr("NOT NULL"),
			entsql.Column("note").Type("TEXT"),
		).
		Query()

	stmts := []string{
		runs,
		lines,
		// partial unique index: the builder has no WHERE clause for indexes
		"CREATE UNIQUE INDEX IF NOT EXISTS `invoice_runs_partner_invoice_number` ON `invoice_runs` (`partner`, `invoice_number`) WHERE `invoice_number` <> ''",
		"CREATE INDEX IF NOT EXISTS `invoice_runs_created_at` ON `invoice_runs` (`created_at`)",
		"CREATE INDEX IF NOT EXISTS `invoice_lines_run_id` ON `invoice_lines` (`run_id`)",
		"CREATE INDEX IF NOT EXISTS `invoice_lines_order_id` ON `invoice_lines` (`order_id`)",
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("%w: migrate: %v", common.ErrDatabase, err)
		}
	}
	return nil
}

// SaveRun stores run and its rows. A numbered invoice that was reconciled
// before replaces the earlier run.
func (s *RunStore) SaveRun(ctx context.Context, run Run, rows []entity.DeltaRow) (Run, error) {
	if run.ID == "" {
		return Run{}, fmt.Errorf("save run: empty id: %w", common.ErrInvalidInput)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("%w: begin: %v", common.ErrDatabase, err)
	}
	defer func() { _ = tx.Rollback() }()

	if run.InvoiceNumber != "" {
		replaced, err := s.deleteInvoice(ctx, tx, run.Partner, run.InvoiceNumber)
		if err != nil {
			return Run{}, err
		}
		if replaced > 0 {
			s.logger.Info("store.run.replaced", "partner", string(run.Partner), "invoice_number", run.InvoiceNumber)
		}
	}

	q, args := s.b.Insert(runsTable).
		Columns("id", "partner", "invoice_number", "invoice_date", "state", "delta_sum", "expected_sum",
			"parsed_ok", "comparison_possible", "within_threshold", "num_rows", "message", "created_at").
		Values(run.ID, string(run.Partner), run.InvoiceNumber, formatDate(run.InvoiceDate), string(run.State),
			run.DeltaSum.String(), run.ExpectedSum.String(), run.ParsedOK, run.ComparisonPossible,
			run.WithinThreshold, run.NumRows, run.Message, run.CreatedAt.Format(time.RFC3339Nano)).
		Query()
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return Run{}, fmt.Errorf("%w: insert run: %v", common.ErrDatabase, err)
	}

	if len(rows) > 0 {
		ins := s.b.Insert(linesTable).Columns(lineColumns...)
		for i, r := range rows {
			ins = ins.Values(run.ID, i, r.OrderID, r.PartnerRef, formatDate(r.OrderDate), r.Weight, r.Route,
				r.CategoryL1, r.CategoryL2, r.Expected.String(), r.Charged.String(), r.Delta.String(),
				r.DeltaSum.String(), r.InvoiceNumber, formatDate(r.InvoiceDate), string(r.Partner),
				string(r.Resolution), r.Note)
		}
		q, args := ins.Query()
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return Run{}, fmt.Errorf("%w: insert lines: %v", common.ErrDatabase, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("%w: commit: %v", common.ErrDatabase, err)
	}
	s.logger.Info("store.run.saved", "run_id", run.ID, "partner", string(run.Partner), "rows", len(rows))
	return run, nil
}

func (s *RunStore) deleteInvoice(ctx context.Context, tx *sql.Tx, partner constants.Partner, number string) (int, error) {
	q, args := s.b.Select("id").From(entsql.Table(runsTable)).
		Where(entsql.And(entsql.EQ("partner", string(partner)), entsql.EQ("invoice_number", number))).
		Query()
	rs, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: find previous run: %v", common.ErrDatabase, err)
	}
	var ids []any
	for rs.Next() {
		var id string
		if err := rs.Scan(&id); err != nil {
			_ = rs.Close()
			return 0, fmt.Errorf("%w: scan previous run: %v", common.ErrDatabase, err)
		}
		ids = append(ids, id)
	}
	_ = rs.Close()
	if len(ids) == 0 {
		return 0, nil
	}

	for _, del := range []*entsql.DeleteBuilder{
		s.b.Delete(linesTable).Where(entsql.In("run_id", ids...)),
		s.b.Delete(runsTable).Where(entsql.In("id", ids...)),
	} {
		q, args := del.Query()
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return 0, fmt.Errorf("%w: delete previous run: %v", common.ErrDatabase, err)
		}
	}
	return len(ids), nil
}

var runColumns = []string{
	"id", "partner", "invoice_number", "invoice_date", "state", "delta_sum", "expected_sum",
	"parsed_ok", "comparison_possible", "within_threshold", "num_rows", "message", "created_at",
}

var lineColumns = []string{
	"run_id", "position", "order_id", "partner_ref", "order_date", "weight", "route", "category_l1",
	"category_l2", "expected", "charged", "delta", "delta_sum", "invoice_number", "invoice_date",
	"partner", "resolution", "note",
}

// GetRun returns a run by id, or common.ErrNotFound.
func (s *RunStore) GetRun(ctx context.Context, id string) (Run, error) {
	q, args := s.b.Select(runColumns...).From(entsql.Table(runsTable)).Where(entsql.EQ("id", id)).Query()
	runs, err := s.queryRuns(ctx, q, args)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, fmt.Errorf("run %s: %w", id, common.ErrNotFound)
	}
	return runs[0], nil
}

// ListRuns returns the newest runs first, optionally for one partner. limit <= 0 means all.
func (s *RunStore) ListRuns(ctx context.Context, partner constants.Partner, limit int) ([]Run, error) {
	sel := s.b.Select(runColumns...).From(entsql.Table(runsTable)).OrderBy(entsql.Desc("created_at"))
	if partner != "" {
		sel = sel.Where(entsql.EQ("partner", string(partner)))
	}
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	q, args := sel.Query()
	return s.queryRuns(ctx, q, args)
}

// ListLines returns the rows of a run in invoice order.
func (s *RunStore) ListLines(ctx context.Context, runID string) ([]entity.DeltaRow, error) {
	cols := lineColumns[2:]
	q, args := s.b.Select(cols...).From(entsql.Table(linesTable)).
		Where(entsql.EQ("run_id", runID)).
		OrderBy("position").
		Query()
	rs, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list lines: %v", common.ErrDatabase, err)
	}
	defer func() { _ = rs.Close() }()

	var out []entity.DeltaRow
	for rs.Next() {
		var (
			r                                        entity.DeltaRow
			orderDate, invoiceDate                   sql.NullString
			expected, charged, delta, sum            string
			ref, weight, route, l1, l2, number, note sql.NullString
			partner, resolution                      string
		)
		if err := rs.Scan(&r.OrderID, &ref, &orderDate, &weight, &route, &l1, &l2,
			&expected, &charged, &delta, &sum, &number, &invoiceDate, &partner, &resolution, &note); err != nil {
			return nil, fmt.Errorf("%w: scan line: %v", common.ErrDatabase, err)
		}
		r.PartnerRef, r.Weight, r.Route = ref.String, weight.String, route.String
		r.CategoryL1, r.CategoryL2, r.InvoiceNumber, r.Note = l1.String, l2.String, number.String, note.String
		r.OrderDate, r.InvoiceDate = parseDate(orderDate), parseDate(invoiceDate)
		r.Partner = constants.Partner(partner)
		r.Resolution = constants.ResolutionStatus(resolution)
		if r.Expected, err = decimal.NewFromString(expected); err == nil {
			if r.Charged, err = decimal.NewFromString(charged); err == nil {
				if r.Delta, err = decimal.NewFromString(delta); err == nil {
					r.DeltaSum, err = decimal.NewFromString(sum)
				}
			}
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line amounts: %v", common.ErrDatabase, err)
		}
		out = append(out, r)
	}
	return out, rs.Err()
}

func (s *RunStore) queryRuns(ctx context.Context, q string, args []any) ([]Run, error) {
	rs, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list runs: %v", common.ErrDatabase, err)
	}
	defer func() { _ = rs.Close() }()

	var out []Run
	for rs.Next() {
		var (
			r                     Run
			partner, state        string
			invoiceDate, message  sql.NullString
			deltaSum, expectedSum string
			createdAt             string
		)
		if err := rs.Scan(&r.ID, &partner, &r.InvoiceNumber, &invoiceDate, &state, &deltaSum, &expectedSum,
			&r.ParsedOK, &r.ComparisonPossible, &r.WithinThreshold, &r.NumRows, &message, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scan run: %v", common.ErrDatabase, err)
		}
		r.Partner = constants.Partner(partner)
		r.State = constants.RunState(state)
		r.InvoiceDate = parseDate(invoiceDate)
		r.Message = message.String
		r.DeltaSum, err = decimal.NewFromString(deltaSum)
		if err == nil {
			r.ExpectedSum, err = decimal.NewFromString(expectedSum)
		}
		if err == nil {
			r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: run %s: %v", common.ErrDatabase, r.ID, err)
		}
		out = append(out, r)
	}
	if err := rs.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return out, nil
}

func formatDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(dateLayout)
}

func parseDate(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(dateLayout, s.String, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}
