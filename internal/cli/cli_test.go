package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/carrier-reconciler/internal/common"
)

const ledgerJSON = `[{"order_id": "0b6f7c1e-1111-4222-8333-444455556666", "tracking_id": "ORD-1",
  "weight": "45.00", "category_l1": "furniture", "category_l2": "sofa",
  "buyer_country": "NL", "seller_country": "NL", "created_at": "2025-01-05T00:00:00Z"}]`

func fixtures(t *testing.T) (dir string) {
	t.Helper()
	dir = t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "rates"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rates", "prijslijst_other_partners.json"),
		[]byte(`[{"CMS category": "sofa", "Weightclass": 45, "NL-NL-swdevries": 40}]`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.json"), []byte(ledgerJSON), 0o600))

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	require.NoError(t, f.SetSheetName("Sheet1", "Blad1"))
	rows := [][]any{
		{"SW de Vries Transport"},
		{"14-01-2025", "INV-77"},
		{"Order ID", "Price"},
		{"ORD-1", "60.01"},
		{"", "", "Total", "60.01"},
	}
	for i, row := range rows {
		addr, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Blad1", addr, &r))
	}
	require.NoError(t, f.SaveAs(filepath.Join(dir, "invoice.xlsx")))
	return dir
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	dir := fixtures(t)
	xlsx := filepath.Join(dir, "deltas.xlsx")
	db := filepath.Join(dir, "runs.db")

	out, err := execute(t, RunCmd(),
		"--partner", "swdv",
		"--file", filepath.Join(dir, "invoice.xlsx"),
		"--ledger-json", filepath.Join(dir, "orders.json"),
		"--rates-dir", filepath.Join(dir, "rates"),
		"--threshold", "25",
		"--out", xlsx,
		"--runs-db", db,
	)
	require.NoError(t, err)
	assert.Contains(t, out, "OK")
	assert.Contains(t, out, "+20.01")
	assert.FileExists(t, xlsx)

	out, err = execute(t, RunsCmd(), "--runs-db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "INV-77")
	assert.Contains(t, out, "SUCCESS")
}

func TestRunCommandFailure(t *testing.T) {
	dir := fixtures(t)
	bogus := filepath.Join(dir, "bogus.xlsx")
	require.NoError(t, os.WriteFile(bogus, []byte("not a workbook"), 0o600))

	out, err := execute(t, RunCmd(),
		"--partner", "swdevries",
		"--file", bogus,
		"--ledger-json", filepath.Join(dir, "orders.json"),
		"--rates-dir", filepath.Join(dir, "rates"),
	)
	assert.ErrorIs(t, err, ErrRunFailed)
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "PARSE_FAILED")
}

func TestRunCommandRejectsUnknownPartner(t *testing.T) {
	_, err := execute(t, RunCmd(), "--partner", "dhl", "--file", "x.pdf")
	assert.ErrorContains(t, err, `unsupported partner "dhl"`)
}

func TestPartnersCommand(t *testing.T) {
	out, err := execute(t, PartnersCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "libero_logistics")
	assert.Contains(t, out, "xlsx + pdf")
	assert.Contains(t, out, "tracking_id")
}

func TestRunCommandValidatesLedgerJSON(t *testing.T) {
	dir := fixtures(t)
	orders := filepath.Join(dir, "bad-orders.json")
	require.NoError(t, os.WriteFile(orders, []byte(`[{"order_id": "ORD-1", "buyer_country": "nl", "seller_country": "NL"}]`), 0o600))

	_, err := execute(t, RunCmd(),
		"--partner", "swdevries",
		"--file", filepath.Join(dir, "invoice.xlsx"),
		"--ledger-json", orders,
		"--rates-dir", filepath.Join(dir, "rates"),
	)
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.ErrorContains(t, err, "buyer_country")
}
