package export

import (
	"bytes"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func result(partner constants.Partner, deltas ...string) *entity.RunResult {
	res := &entity.RunResult{
		Partner:            partner,
		Meta:               entity.InvoiceMeta{Number: "INV-1", Date: time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)},
		DeltaSum:           decimal.Zero,
		ComparisonPossible: true,
	}
	for i, d := range deltas {
		res.Rows = append(res.Rows, entity.DeltaRow{
			OrderID:    "order-" + string(rune('a'+i)),
			Expected:   dec("100"),
			Charged:    dec("100").Add(dec(d)),
			Delta:      dec(d),
			Partner:    partner,
			Resolution: constants.ResolutionResolved,
		})
		res.DeltaSum = res.DeltaSum.Add(dec(d))
	}
	for i := range res.Rows {
		res.Rows[i].DeltaSum = res.DeltaSum
	}
	return res
}

func TestWorkbookSheetsAndHighlight(t *testing.T) {
	b, err := NewExporter(nil).Workbook(result(constants.Tadde, "5", "-3"), result(constants.Brenger, "0"))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.ElementsMatch(t, []string{"Sheet_tadde", "Sheet_brenger"}, f.GetSheetList())

	rows, err := f.GetRows("Sheet_tadde")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, headers, rows[0])
	assert.Equal(t, "order-a", rows[1][0])
	assert.Equal(t, "5", rows[1][deltaCol-1])

	positive, err := f.GetCellStyle("Sheet_tadde", "J2")
	require.NoError(t, err)
	negative, err := f.GetCellStyle("Sheet_tadde", "J3")
	require.NoError(t, err)
	assert.NotZero(t, positive)
	assert.Zero(t, negative)
}

func TestWorkbookSummaryRow(t *testing.T) {
	b, err := NewExporter(nil).Workbook(result(constants.SWDeVries))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Sheet_swdevries")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, noMatches, rows[1][len(rows[1])-1])
}

func TestWorkbookPerfectMatchRow(t *testing.T) {
	b, err := NewExporter(nil).Workbook(result(constants.Tadde, "0", "0"), result(constants.Brenger, "5", "-5"))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Sheet_tadde")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, perfectMatch, rows[3][len(rows[3])-1])

	// zero sum from offsetting deltas gets no summary row
	rows, err = f.GetRows("Sheet_brenger")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestAppendFileAccumulates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exports", "reconciliation.xlsx")
	e := NewExporter(nil)

	require.NoError(t, e.AppendFile(path, result(constants.Wuunder, "1")))
	require.NoError(t, e.AppendFile(path, result(constants.Wuunder, "2", "3")))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{"Sheet_wuunder"}, f.GetSheetList())
	rows, err := f.GetRows("Sheet_wuunder")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestAppendFileConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reconciliation.xlsx")
	e := NewExporter(nil)

	const writers = 32
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- e.AppendFile(path, result(constants.MagicMovers, "1"))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(SheetName(constants.MagicMovers))
	require.NoError(t, err)
	assert.Len(t, rows, writers+1)
}
