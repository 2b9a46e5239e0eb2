package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
	"github.com/joseph-ayodele/carrier-reconciler/internal/reconcile"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublishKeysByPartner(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisherWithWriter(w, nil)
	p.now = func() time.Time { return time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC) }

	out := reconcile.Outcome{
		RunID:           "r-1",
		Partner:         constants.Brenger,
		State:           constants.RunStateSuccess,
		ParsedOK:        true,
		WithinThreshold: true,
		Result: &entity.RunResult{
			Meta:               entity.InvoiceMeta{Number: "B-77"},
			Rows:               make([]entity.DeltaRow, 3),
			DeltaSum:           decimal.RequireFromString("12.5"),
			ComparisonPossible: true,
		},
	}
	require.NoError(t, p.Publish(context.Background(), out))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "brenger", string(w.msgs[0].Key))

	var ev RunEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, "B-77", ev.InvoiceNumber)
	assert.Equal(t, 3, ev.NumRows)
	assert.True(t, ev.DeltaSum.Equal(decimal.RequireFromString("12.5")))
	assert.True(t, ev.ComparisonPossible)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishFailedRun(t *testing.T) {
	ev := EventFromOutcome(reconcile.Outcome{RunID: "r-2", Partner: constants.Tadde, State: constants.RunStateParseFailed}, time.Now())
	assert.True(t, ev.DeltaSum.IsZero())
	assert.False(t, ev.ParsedOK)
	assert.False(t, ev.ComparisonPossible)

	p := NewPublisherWithWriter(&fakeWriter{err: errors.New("broker down")}, nil)
	err := p.Publish(context.Background(), reconcile.Outcome{RunID: "r-2"})
	assert.ErrorContains(t, err, "broker down")
}
