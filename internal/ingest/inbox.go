package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Inbox turns watched files into invoice submissions.
type Inbox struct {
	cfg    WatchConfig
	pairer *Pairer
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]stamp
}

// stamp identifies one version of a file.
type stamp struct {
	size int64
	mod  time.Time
}

func NewInbox(dir string, debounce time.Duration, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{
		cfg:    WatchConfig{Roots: []string{dir}, InitialScan: true, Debounce: debounce},
		pairer: NewPairer(),
		logger: logger,
		seen:   map[string]stamp{},
	}
}

// Run calls submit for every complete invoice until ctx is done.
func (in *Inbox) Run(ctx context.Context, submit func(context.Context, Submission) error) error {
	events, errs, err := StartWatcher(ctx, in.cfg, in.logger)
	if err != nil {
		return err
	}
	in.logger.Info("ingest.inbox.started", "roots", in.cfg.Roots)
	for {
		select {
		case <-ctx.Done():
			return nil
		case werr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			in.logger.Warn("ingest.inbox.watch_error", "error", werr)
		case path, ok := <-events:
			if !ok {
				return nil
			}
			in.handle(ctx, path, submit)
		}
	}
}

func (in *Inbox) handle(ctx context.Context, path string, submit func(context.Context, Submission) error) {
	d, err := ParseName(path)
	if err != nil {
		in.logger.Debug("ingest.inbox.skipped", "path", path, "reason", err)
		return
	}
	if !in.fresh(path) {
		return
	}
	s, ready, err := in.pairer.Offer(d)
	switch {
	case err != nil:
		in.logger.Warn("ingest.inbox.rejected", "path", path, "error", err)
		return
	case !ready:
		in.logger.Info("ingest.inbox.waiting_companion", "path", path, "partner", string(d.Partner))
		return
	}
	if err := submit(ctx, s); err != nil && !errors.Is(err, context.Canceled) {
		in.logger.Error("ingest.inbox.submit_failed", "partner", string(s.Partner), "primary", s.Primary, "error", err)
	}
}

// fresh reports whether path changed since it was last handled.
func (in *Inbox) fresh(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	st := stamp{size: fi.Size(), mod: fi.ModTime()}
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.seen[path] == st {
		return false
	}
	in.seen[path] = st
	return true
}
