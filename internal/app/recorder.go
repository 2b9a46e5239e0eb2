package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/joseph-ayodele/carrier-reconciler/internal/async"
	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
	"github.com/joseph-ayodele/carrier-reconciler/internal/export"
	"github.com/joseph-ayodele/carrier-reconciler/internal/reconcile"
	"github.com/joseph-ayodele/carrier-reconciler/internal/store"
)

// ExportFile is the workbook runs are appended to inside the export directory.
const ExportFile = "reconciliation.xlsx"

type RunSaver interface {
	SaveRun(ctx context.Context, run store.Run, rows []entity.DeltaRow) (store.Run, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, out reconcile.Outcome) error
}

// Recorder fans a finished outcome out to the run store, the export
// workbook and the analytics topic. Nil members are skipped.
type Recorder struct {
	Runs      RunSaver
	Exporter  *export.Exporter
	ExportDir string
	Events    EventPublisher
	Logger    *slog.Logger
}

func (r *Recorder) Record(ctx context.Context, out reconcile.Outcome) error {
	var errs []error
	if r.Runs != nil {
		run, rows := store.RunFromOutcome(out)
		if _, err := r.Runs.SaveRun(ctx, run, rows); err != nil {
			errs = append(errs, fmt.Errorf("save run: %w", err))
		}
	}
	if r.Exporter != nil && r.ExportDir != "" && out.Result != nil {
		if err := r.Exporter.AppendFile(filepath.Join(r.ExportDir, ExportFile), out.Result); err != nil {
			errs = append(errs, fmt.Errorf("export: %w", err))
		}
	}
	if r.Events != nil {
		if err := r.Events.Publish(ctx, out); err != nil {
			errs = append(errs, err)
		}
	}
	if r.Logger != nil {
		r.Logger.Info("app.notify", "run_id", out.RunID, "reaction", out.Reaction(), "message", out.Message())
	}
	return errors.Join(errs...)
}

// Handle satisfies async.Sink.
func (r *Recorder) Handle(ctx context.Context, _ async.Job, out reconcile.Outcome) error {
	return r.Record(ctx, out)
}
