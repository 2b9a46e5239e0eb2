// Package analytics publishes run summaries to Kafka.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/reconcile"
)

// Writer is the subset of kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RunEvent is the message value, keyed by partner.
type RunEvent struct {
	RunID              string             `json:"run_id"`
	Partner            constants.Partner  `json:"partner"`
	State              constants.RunState `json:"state"`
	InvoiceNumber      string             `json:"invoice_number"`
	DeltaSum           decimal.Decimal    `json:"delta_sum"`
	NumRows            int                `json:"num_rows"`
	ParsedOK           bool               `json:"parsed_ok"`
	ComparisonPossible bool               `json:"comparison_possible"`
	WithinThreshold    bool               `json:"within_threshold"`
	At                 time.Time          `json:"at"`
}

// EventFromOutcome summarises o. Failed runs carry a zero delta.
func EventFromOutcome(o reconcile.Outcome, at time.Time) RunEvent {
	ev := RunEvent{
		RunID:              o.RunID,
		Partner:            o.Partner,
		State:              o.State,
		DeltaSum:           decimal.Zero,
		ParsedOK:           o.ParsedOK,
		ComparisonPossible: o.ComparisonPossible(),
		WithinThreshold:    o.WithinThreshold,
		At:                 at.UTC(),
	}
	if o.Result != nil {
		ev.InvoiceNumber = o.Result.Meta.Number
		ev.DeltaSum = o.Result.DeltaSum
		ev.NumRows = len(o.Result.Rows)
	}
	return ev
}

type Publisher struct {
	writer Writer
	logger *slog.Logger
	now    func() time.Time
}

// NewKafkaPublisher writes to topic on the given brokers.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return NewPublisherWithWriter(w, logger)
}

// NewPublisherWithWriter allows injecting a test writer.
func NewPublisherWithWriter(w Writer, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{writer: w, logger: logger, now: time.Now}
}

func (p *Publisher) Publish(ctx context.Context, o reconcile.Outcome) error {
	ev := EventFromOutcome(o, p.now())
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}
	msg := kafka.Message{Key: []byte(ev.Partner), Value: b}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("analytics.publish.failed", "run_id", ev.RunID, "partner", string(ev.Partner), "error", err)
		return fmt.Errorf("publish run %s: %w", ev.RunID, err)
	}
	p.logger.Debug("analytics.publish.ok", "run_id", ev.RunID, "partner", string(ev.Partner))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
