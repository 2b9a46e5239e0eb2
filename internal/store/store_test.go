package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/common"
	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
	"github.com/joseph-ayodele/carrier-reconciler/internal/reconcile"
)

func openStore(t *testing.T) *RunStore {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "runs.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func sampleOutcome(runID, invoice string) reconcile.Outcome {
	row := entity.DeltaRow{
		OrderID:       "0b6f7c1e-1111-4222-8333-444455556666",
		PartnerRef:    "whoppah101",
		OrderDate:     time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Weight:        "45.00",
		Route:         "NL-DE",
		CategoryL1:    "furniture",
		CategoryL2:    "sofa",
		Expected:      dec("70"),
		Charged:       dec("75.50"),
		Delta:         dec("5.50"),
		DeltaSum:      dec("5.50"),
		InvoiceNumber: invoice,
		InvoiceDate:   time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		Partner:       constants.Tadde,
		Resolution:    constants.ResolutionResolved,
	}
	return reconcile.Outcome{
		RunID:           runID,
		Partner:         constants.Tadde,
		State:           constants.RunStateSuccess,
		ParsedOK:        true,
		WithinThreshold: true,
		Threshold:       dec("20"),
		Result: &entity.RunResult{
			Partner:            constants.Tadde,
			Meta:               entity.InvoiceMeta{Number: invoice, Date: row.InvoiceDate},
			Rows:               []entity.DeltaRow{row},
			DeltaSum:           dec("5.50"),
			ExpectedSum:        dec("70"),
			ComparisonPossible: true,
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	run, rows := RunFromOutcome(sampleOutcome("run-1", "F-2025-001"))
	saved, err := s.SaveRun(ctx, run, rows)
	require.NoError(t, err)
	assert.False(t, saved.CreatedAt.IsZero())

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, constants.Tadde, got.Partner)
	assert.Equal(t, "F-2025-001", got.InvoiceNumber)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), got.InvoiceDate)
	assert.True(t, dec("5.5").Equal(got.DeltaSum))
	assert.True(t, got.ParsedOK)
	assert.True(t, got.ComparisonPossible)
	assert.True(t, got.WithinThreshold)
	assert.Equal(t, 1, got.NumRows)
	assert.Equal(t, constants.RunStateSuccess, got.State)

	lines, err := s.ListLines(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, rows[0].OrderID, lines[0].OrderID)
	assert.True(t, dec("75.5").Equal(lines[0].Charged))
	assert.Equal(t, rows[0].OrderDate, lines[0].OrderDate)
	assert.Equal(t, constants.ResolutionResolved, lines[0].Resolution)
}

func TestGetRunNotFound(t *testing.T) {
	_, err := openStore(t).GetRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestSaveRunReplacesSameInvoice(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	run, rows := RunFromOutcome(sampleOutcome("run-1", "F-2025-001"))
	_, err := s.SaveRun(ctx, run, rows)
	require.NoError(t, err)
	run, rows = RunFromOutcome(sampleOutcome("run-2", "F-2025-001"))
	_, err = s.SaveRun(ctx, run, rows)
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, constants.Tadde, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-2", runs[0].ID)

	lines, err := s.ListLines(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestUnnumberedRunsAccumulate(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		failed := reconcile.Outcome{RunID: id, Partner: constants.Brenger, State: constants.RunStateParseFailed, Err: errors.New("boom")}
		run, rows := RunFromOutcome(failed)
		_, err := s.SaveRun(ctx, run, rows)
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx, constants.Brenger, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.False(t, runs[0].ParsedOK)
	assert.Contains(t, runs[0].Message, "boom")
}

func TestListRunsNewestFirstWithLimit(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		run, rows := RunFromOutcome(sampleOutcome(id, "INV-"+id))
		run.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		_, err := s.SaveRun(ctx, run, rows)
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "mid", runs[1].ID)
}

func TestSaveRunRequiresID(t *testing.T) {
	_, err := openStore(t).SaveRun(context.Background(), Run{}, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
