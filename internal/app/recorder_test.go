package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/async"
	"github.com/joseph-ayodele/carrier-reconciler/internal/common"
	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
	"github.com/joseph-ayodele/carrier-reconciler/internal/export"
	"github.com/joseph-ayodele/carrier-reconciler/internal/reconcile"
	"github.com/joseph-ayodele/carrier-reconciler/internal/store"
)

type savedRuns struct {
	runs []store.Run
}

func (s *savedRuns) SaveRun(_ context.Context, run store.Run, _ []entity.DeltaRow) (store.Run, error) {
	s.runs = append(s.runs, run)
	return run, nil
}

type failingEvents struct{}

func (failingEvents) Publish(context.Context, reconcile.Outcome) error { return errors.New("broker down") }

func outcome() reconcile.Outcome {
	return reconcile.Outcome{
		RunID:    "run-7",
		Partner:  constants.Tadde,
		State:    constants.RunStateSuccess,
		ParsedOK: true,
		Result: &entity.RunResult{
			Partner:            constants.Tadde,
			Rows:               []entity.DeltaRow{{OrderID: "a", Delta: decimal.NewFromInt(2), Partner: constants.Tadde}},
			DeltaSum:           decimal.NewFromInt(2),
			ComparisonPossible: true,
		},
	}
}

func TestRecorderFansOut(t *testing.T) {
	dir := t.TempDir()
	runs := &savedRuns{}
	r := &Recorder{Runs: runs, Exporter: export.NewExporter(nil), ExportDir: dir, Events: failingEvents{}}

	var sink async.Sink = r
	err := sink.Handle(context.Background(), async.Job{}, outcome())
	assert.ErrorContains(t, err, "broker down")

	require.Len(t, runs.runs, 1)
	assert.Equal(t, "run-7", runs.runs[0].ID)

	f, err := excelize.OpenFile(filepath.Join(dir, ExportFile))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(export.SheetName(constants.Tadde))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestRecorderSkipsExportForFailedRuns(t *testing.T) {
	dir := t.TempDir()
	r := &Recorder{Exporter: export.NewExporter(nil), ExportDir: dir}
	out := reconcile.Outcome{RunID: "x", Partner: constants.Brenger, State: constants.RunStateParseFailed}
	require.NoError(t, r.Record(context.Background(), out))
	assert.NoFileExists(t, filepath.Join(dir, ExportFile))
}

func TestNewOrchestratorNeedsRatesDir(t *testing.T) {
	cfg := common.LoadConfig()
	cfg.Rates.Dir = filepath.Join(t.TempDir(), "missing")
	_, err := NewOrchestrator(cfg, reconcile.NewMemoryLedger(nil), nil)
	assert.ErrorIs(t, err, common.ErrRateData)

	cfg.Rates.Dir = t.TempDir()
	o, err := NewOrchestrator(cfg, reconcile.NewMemoryLedger(nil), nil)
	require.NoError(t, err)
	assert.Len(t, o.Partners(), len(constants.Partners()))
}
