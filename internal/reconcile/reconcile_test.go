package reconcile

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/common"
	"github.com/joseph-ayodele/carrier-reconciler/internal/delta"
	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
	"github.com/joseph-ayodele/carrier-reconciler/internal/normalize"
	"github.com/joseph-ayodele/carrier-reconciler/internal/rates"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func swdevriesSheet(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	require.NoError(t, f.SetSheetName("Sheet1", "Blad1"))
	rows := [][]any{
		{"SW de Vries Transport"},
		{"14-01-2025", "INV-77"},
		{"Order ID", "Price"},
		{"ORD-1", "60.01"},
		{"ORD-2", "40.01"},
		{"", "", "Total", "100.00"},
	}
	for i, row := range rows {
		addr, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Blad1", addr, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func catalog(t *testing.T) *rates.Catalog {
	t.Helper()
	src, err := rates.NewDirSource(fstest.MapFS{
		"prijslijst_other_partners.json": {Data: []byte(`[{"CMS category": "sofa", "Weightclass": 45, "NL-NL-swdevries": 40}]`)},
	}, nil)
	require.NoError(t, err)
	return rates.NewCatalog(src)
}

func ledger() *MemoryLedger {
	return NewMemoryLedger([]entity.OrderRecord{{
		OrderID:       "0b6f7c1e-1111-4222-8333-444455556666",
		TrackingID:    "ORD-1",
		Weight:        "45.00",
		CategoryL1:    "furniture",
		CategoryL2:    "sofa",
		BuyerCountry:  "NL",
		SellerCountry: "NL",
		CreatedAt:     time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
	}})
}

func orchestrator(t *testing.T, l OrderLedger, opts ...Option) *Orchestrator {
	t.Helper()
	reg := DefaultRegistry(Deps{Rates: catalog(t)})
	return NewOrchestrator(reg, l, opts...)
}

func TestEvaluateSWDeVries(t *testing.T) {
	o := orchestrator(t, ledger())

	out := o.Evaluate(context.Background(), EvaluateRequest{Partner: constants.SWDeVries, Primary: swdevriesSheet(t)})
	require.NoError(t, out.Err)
	assert.Equal(t, constants.RunStateSuccess, out.State)
	assert.True(t, out.ParsedOK)
	assert.NotEmpty(t, out.RunID)

	res := out.Result
	require.NotNil(t, res)
	require.Len(t, res.Rows, 1)
	assert.True(t, dec("40").Equal(res.Rows[0].Expected))
	assert.True(t, dec("20.01").Equal(res.DeltaSum))
	assert.Equal(t, 1, res.Unmatched)
	assert.True(t, res.ComparisonPossible)

	// declared 100.00 vs parsed 100.02 is only a warning
	var mismatch bool
	for _, d := range res.Diagnostics {
		mismatch = mismatch || d.Code == common.CodeTotalMismatch
	}
	assert.True(t, mismatch)

	assert.False(t, out.WithinThreshold)
	assert.Equal(t, ReactionOverdue, out.Reaction())
	assert.Contains(t, out.Message(), "INV-77")
	assert.Contains(t, out.Message(), "exceeded")
}

func TestEvaluateThresholdOverride(t *testing.T) {
	o := orchestrator(t, ledger())

	out := o.Evaluate(context.Background(), EvaluateRequest{
		Partner:   constants.SWDeVries,
		Primary:   swdevriesSheet(t),
		Threshold: decimal.NewNullDecimal(dec("25")),
	})
	require.Equal(t, constants.RunStateSuccess, out.State)
	assert.True(t, out.WithinThreshold)
	assert.Equal(t, ReactionOK, out.Reaction())

	out = orchestrator(t, ledger(), WithThreshold(dec("20.01"))).
		Evaluate(context.Background(), EvaluateRequest{Partner: constants.SWDeVries, Primary: swdevriesSheet(t)})
	assert.True(t, out.WithinThreshold)
}

func TestEvaluateUnsupportedPartner(t *testing.T) {
	out := orchestrator(t, ledger()).Evaluate(context.Background(), EvaluateRequest{Partner: "dhl", Primary: []byte("x")})

	assert.Equal(t, constants.RunStateParseFailed, out.State)
	assert.False(t, out.ParsedOK)
	assert.False(t, out.WithinThreshold)
	assert.Nil(t, out.Result)
	var unsupported *common.UnsupportedPartnerError
	assert.ErrorAs(t, out.Err, &unsupported)
	assert.Empty(t, out.Reaction())
}

func TestEvaluateEmptyDocument(t *testing.T) {
	out := orchestrator(t, ledger()).Evaluate(context.Background(), EvaluateRequest{Partner: constants.SWDeVries})

	assert.Equal(t, constants.RunStateParseFailed, out.State)
	var empty *common.EmptyDocumentError
	assert.ErrorAs(t, out.Err, &empty)
	assert.Contains(t, out.Message(), "empty payload")
}

type failingLedger struct{}

func (failingLedger) GetOrders(context.Context, constants.Partner) ([]entity.OrderRecord, error) {
	return nil, errors.New("connection refused")
}

func TestEvaluateLedgerFailure(t *testing.T) {
	out := orchestrator(t, failingLedger{}).Evaluate(context.Background(), EvaluateRequest{Partner: constants.SWDeVries, Primary: swdevriesSheet(t)})

	assert.Equal(t, constants.RunStateResolutionFailed, out.State)
	assert.False(t, out.ParsedOK)
	assert.Nil(t, out.Result)
	assert.Contains(t, out.Message(), "connection refused")
}

func TestEvaluateWithoutTextExtractor(t *testing.T) {
	out := orchestrator(t, ledger()).Evaluate(context.Background(), EvaluateRequest{Partner: constants.Tadde, Primary: []byte("%PDF")})
	assert.Equal(t, constants.RunStateParseFailed, out.State)
	assert.Contains(t, out.Message(), "no text extractor")
}

type fixedNormalizer struct{ inv *entity.Invoice }

func (n fixedNormalizer) Normalize(context.Context, normalize.Document) (*entity.Invoice, error) {
	return n.inv, nil
}

func TestEvaluateMissingRateTable(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Variant{
		Partner: constants.Brenger,
		Normalizer: fixedNormalizer{inv: &entity.Invoice{
			Partner: constants.Brenger,
			Lines:   []entity.ShipmentLine{{Key: "ord-1", Charged: dec("10")}},
		}},
		Join:   delta.JoinSpec{Field: delta.JoinTrackingID},
		Pricer: tablePricer(catalog(t), constants.Brenger),
	})

	out := NewOrchestrator(reg, ledger()).Evaluate(context.Background(), EvaluateRequest{Partner: constants.Brenger, Primary: []byte("x")})
	assert.Equal(t, constants.RunStateResolutionFailed, out.State)
	assert.ErrorIs(t, out.Err, common.ErrRateData)
}

type panicNormalizer struct{}

func (panicNormalizer) Normalize(context.Context, normalize.Document) (*entity.Invoice, error) {
	panic("index out of range")
}

func TestEvaluateRecoversPanics(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Variant{Partner: constants.Brenger, Normalizer: panicNormalizer{}, Join: delta.JoinSpec{Field: delta.JoinTrackingID}})

	out := NewOrchestrator(reg, ledger()).Evaluate(context.Background(), EvaluateRequest{Partner: constants.Brenger, Primary: []byte("x")})
	assert.Equal(t, constants.RunStateParseFailed, out.State)
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "index out of range")
}

func TestDefaultRegistryCoversEveryPartner(t *testing.T) {
	reg := DefaultRegistry(Deps{})
	assert.Equal(t, constants.Partners(), reg.Partners())
}

func TestOutcomeMessages(t *testing.T) {
	exact := entity.DeltaRow{Expected: dec("80"), Charged: dec("80"), Delta: decimal.Zero, Resolution: constants.ResolutionResolved}
	perfect := Outcome{
		Partner: constants.Brenger,
		State:   constants.RunStateSuccess,
		Result: &entity.RunResult{
			Meta:               entity.InvoiceMeta{Number: "BR1"},
			Rows:               []entity.DeltaRow{exact, exact},
			ExpectedSum:        dec("160"),
			ComparisonPossible: true,
		},
	}
	assert.Contains(t, perfect.Message(), "All prices match perfectly (2 rows)")

	// offsetting deltas sum to zero but are not a perfect match
	over, under := exact, exact
	over.Delta, under.Delta = dec("5"), dec("-5")
	offset := perfect
	offset.Result = &entity.RunResult{Rows: []entity.DeltaRow{over, under}, ExpectedSum: dec("160"), ComparisonPossible: true}
	assert.NotContains(t, offset.Message(), "perfectly")
	assert.Contains(t, offset.Message(), "delta 0.00 over 2 rows")

	empty := perfect
	empty.Result = &entity.RunResult{ComparisonPossible: true}
	assert.Contains(t, empty.Message(), "no invoice lines matched")

	nothing := Outcome{
		Partner: constants.Brenger,
		State:   constants.RunStateSuccess,
		Result:  &entity.RunResult{Rows: []entity.DeltaRow{{}}},
	}
	assert.Contains(t, nothing.Message(), "no expected prices")
	assert.Empty(t, nothing.Reaction())
}
