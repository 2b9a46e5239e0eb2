package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/reconcile"
)

// Submission is a complete set of documents for one invoice.
type Submission struct {
	Partner   constants.Partner
	Primary   string
	Secondary string
}

// Request reads the submission's files.
func (s Submission) Request() (reconcile.EvaluateRequest, error) {
	req := reconcile.EvaluateRequest{Partner: s.Partner}
	var err error
	if req.Primary, err = os.ReadFile(s.Primary); err != nil {
		return req, fmt.Errorf("read %s: %w", filepath.Base(s.Primary), err)
	}
	if s.Secondary != "" {
		if req.Secondary, err = os.ReadFile(s.Secondary); err != nil {
			return req, fmt.Errorf("read %s: %w", filepath.Base(s.Secondary), err)
		}
	}
	return req, nil
}

// Pairer holds half of a two-document invoice until its companion arrives.
type Pairer struct {
	mu      sync.Mutex
	waiting map[string]Drop // by stem and extension
}

func NewPairer() *Pairer {
	return &Pairer{waiting: map[string]Drop{}}
}

// Offer returns a submission once every document of d's invoice has been seen.
// Drops with the wrong extension for their partner are rejected.
func (p *Pairer) Offer(d Drop) (Submission, bool, error) {
	primary, secondary := constants.PrimaryExt(d.Partner), constants.SecondaryExt(d.Partner)
	if d.Ext != primary && d.Ext != secondary {
		return Submission{}, false, fmt.Errorf("%s: %s invoices are %s: %w", filepath.Base(d.Path), d.Partner, primary, ErrNotInvoice)
	}
	if secondary == "" {
		return Submission{Partner: d.Partner, Primary: d.Path}, true, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	other := primary
	if d.Ext == primary {
		other = secondary
	}
	companion, ok := p.waiting[d.Stem+"."+other]
	if !ok {
		p.waiting[d.Stem+"."+d.Ext] = d
		return Submission{}, false, nil
	}
	delete(p.waiting, d.Stem+"."+other)
	delete(p.waiting, d.Stem+"."+d.Ext)

	s := Submission{Partner: d.Partner, Primary: d.Path, Secondary: companion.Path}
	if d.Ext != primary {
		s.Primary, s.Secondary = companion.Path, d.Path
	}
	return s, true, nil
}

// Pending counts drops still waiting for a companion.
func (p *Pairer) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiting)
}
