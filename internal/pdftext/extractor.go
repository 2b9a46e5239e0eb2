// Package pdftext turns PDF invoices into per-page text using poppler's pdftotext.
package pdftext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/carrier-reconciler/internal/common"
)

type Config struct {
	Pdftotext string
	Timeout   time.Duration
}

// Extractor implements normalize.TextExtractor.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, runner Runner, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	return &Extractor{cfg: cfg, runner: runner, logger: logger}
}

// Pages returns the text of each page. pdftotext separates pages with a form feed.
func (e *Extractor) Pages(ctx context.Context, pdf []byte) ([]string, error) {
	if len(pdf) == 0 {
		return nil, fmt.Errorf("%w: empty pdf payload", common.ErrExtract)
	}
	tmpDir, err := os.MkdirTemp("", "cr-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			e.logger.Warn("pdftext.cleanup.failed", "dir", path, "error", err)
		}
	}(tmpDir)

	in := filepath.Join(tmpDir, "invoice.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}

	ctx, cancel := common.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", in, "-")
	if err != nil {
		msg := strings.TrimSpace(string(errb))
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("%w: %s", common.ErrExtract, msg)
	}
	pages := SplitPages(string(out))
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: %s", common.ErrExtract, errNoText)
	}
	e.logger.Debug("pdftext.pages", "pages", len(pages), "bytes", len(out))
	return pages, nil
}

var errNoText = errors.New("pdf contains no text layer")

// SplitPages splits pdftotext output on form feeds, dropping a trailing empty page.
func SplitPages(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	pages := strings.Split(text, "\f")
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}
