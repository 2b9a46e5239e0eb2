// Package export writes reconciliation results to XLSX workbooks.
package export

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
)

const (
	defaultSheet = "Sheet1"
	dateLayout   = "2006-01-02"
	// 1-based column of "Delta"
	deltaCol = 10

	perfectMatch = "All prices match perfectly"
	noMatches    = "No invoice lines matched the ledger"
)

var headers = []string{
	"Order ID",
	"Partner ref",
	"Order date",
	"Weight",
	"Route",
	"Category L1",
	"Category L2",
	"Expected",
	"Charged",
	"Delta",
	"Delta sum",
	"Invoice number",
	"Invoice date",
	"Partner",
	"Resolution",
	"Note",
}

// SheetName is the worksheet holding a partner's rows.
func SheetName(p constants.Partner) string {
	return "Sheet_" + string(p)
}

// Exporter renders run results, one sheet per partner.
type Exporter struct {
	logger *slog.Logger

	// serialises AppendFile read-modify-write cycles
	mu sync.Mutex
}

func NewExporter(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger}
}

// Workbook returns a new XLSX workbook (as bytes) holding results.
func (e *Exporter) Workbook(results ...*entity.RunResult) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	rows := 0
	for _, res := range results {
		n, err := e.write(f, res)
		if err != nil {
			return nil, err
		}
		rows += n
	}
	dropDefaultSheet(f)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	e.logger.Info("export.xlsx.ok", "runs", len(results), "rows", rows)
	return buf.Bytes(), nil
}

// AppendFile appends res to the workbook at path, creating it when missing.
func (e *Exporter) AppendFile(path string, res *entity.RunResult) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	f, err := excelize.OpenFile(path)
	created := false
	switch {
	case errors.Is(err, fs.ErrNotExist):
		f, created = excelize.NewFile(), true
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	case err != nil:
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	n, err := e.write(f, res)
	if err != nil {
		return err
	}
	if created {
		dropDefaultSheet(f)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	e.logger.Info("export.xlsx.appended",
		"path", path,
		"partner", string(res.Partner),
		"rows", n,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// write appends res below the existing rows of its partner sheet.
func (e *Exporter) write(f *excelize.File, res *entity.RunResult) (int, error) {
	if res == nil {
		return 0, nil
	}
	sheet := SheetName(res.Partner)
	if idx, _ := f.GetSheetIndex(sheet); idx == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return 0, fmt.Errorf("new sheet %s: %w", sheet, err)
		}
		if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
			return 0, err
		}
		_ = f.SetColWidth(sheet, "A", "A", 38)
		_ = f.SetColWidth(sheet, "B", "G", 14)
		_ = f.SetColWidth(sheet, "H", "K", 11)
		_ = f.SetColWidth(sheet, "P", "P", 48)
	}
	existing, err := f.GetRows(sheet)
	if err != nil {
		return 0, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	next := len(existing) + 1

	highlight, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FFFF00"}, Pattern: 1},
	})
	if err != nil {
		return 0, err
	}

	summary := func(row int, msg string) error {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := []any{"", "", "", "", "", "", "", "", "", "", res.DeltaSum.InexactFloat64(), res.Meta.Number, date(res.Meta.Date), string(res.Partner), "", msg}
		return f.SetSheetRow(sheet, cell, &values)
	}
	if len(res.Rows) == 0 {
		return 0, summary(next, noMatches)
	}

	for i, r := range res.Rows {
		row := next + i
		values := []any{
			r.OrderID,
			r.PartnerRef,
			date(r.OrderDate),
			r.Weight,
			r.Route,
			r.CategoryL1,
			r.CategoryL2,
			r.Expected.InexactFloat64(),
			r.Charged.InexactFloat64(),
			r.Delta.InexactFloat64(),
			r.DeltaSum.InexactFloat64(),
			r.InvoiceNumber,
			date(r.InvoiceDate),
			string(r.Partner),
			string(r.Resolution),
			r.Note,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return i, err
		}
		if r.Delta.IsPositive() {
			dc, _ := excelize.CoordinatesToCellName(deltaCol, row)
			if err := f.SetCellStyle(sheet, dc, dc, highlight); err != nil {
				return i, err
			}
		}
	}
	if res.PerfectMatch() {
		if err := summary(next+len(res.Rows), perfectMatch); err != nil {
			return len(res.Rows), err
		}
	}
	return len(res.Rows), nil
}

func dropDefaultSheet(f *excelize.File) {
	if len(f.GetSheetList()) > 1 {
		if idx, _ := f.GetSheetIndex(defaultSheet); idx != -1 {
			_ = f.DeleteSheet(defaultSheet)
			f.SetActiveSheet(0)
		}
	}
}

func date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
