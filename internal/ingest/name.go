// Package ingest picks partner invoices up from an inbox directory.
package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
)

// nameSep separates the partner prefix from the rest of a file name.
const nameSep = "__"

var ErrNotInvoice = errors.New("not an invoice file")

// Drop is one file found in the inbox.
type Drop struct {
	Path    string
	Partner constants.Partner
	Stem    string // file name without extension
	Ext     string
}

// ParseName reads <partner>__<name>.<pdf|xlsx>.
func ParseName(path string) (Drop, error) {
	base := filepath.Base(path)
	if IsHidden(base) {
		return Drop{}, fmt.Errorf("%s: hidden: %w", base, ErrNotInvoice)
	}
	ext := constants.NormalizeExt(filepath.Ext(base))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		return Drop{}, fmt.Errorf("%s: extension %q: %w", base, ext, ErrNotInvoice)
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	prefix, rest, ok := strings.Cut(stem, nameSep)
	if !ok || strings.TrimSpace(rest) == "" {
		return Drop{}, fmt.Errorf("%s: want <partner>%s<name>: %w", base, nameSep, ErrNotInvoice)
	}
	partner, ok := constants.ParsePartner(prefix)
	if !ok {
		return Drop{}, fmt.Errorf("%s: unknown partner %q: %w", base, prefix, ErrNotInvoice)
	}
	return Drop{Path: path, Partner: partner, Stem: stem, Ext: ext}, nil
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
