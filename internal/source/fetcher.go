// Package source contains the scout-side connectors. Each fetcher is an
// independent network client that returns leads plus per-source diagnostics;
// a fetcher failure is recorded as a diagnostic, never propagated as an
// error, so one bad provider cannot abort a run.
package source

import (
	"context"
	"time"

	"github.com/lukemartin/snipebot/internal/domain"
)

// Result is what one fetcher hands back to the orchestrator. Most fetchers
// fill Leads; sources that already know both sides of a trade (deal feeds,
// collectibles stats, sneaker market data) emit Qualified directly, and the
// crypto fetcher emits Quotes for the spread detector.
type Result struct {
	Leads       []domain.ScoutLead
	Qualified   []domain.QualifiedLead
	Quotes      []domain.ExchangeQuote
	Diagnostics []domain.SourceDiagnostic
}

// Merge appends other's contents into r.
func (r *Result) Merge(other Result) {
	r.Leads = append(r.Leads, other.Leads...)
	r.Qualified = append(r.Qualified, other.Qualified...)
	r.Quotes = append(r.Quotes, other.Quotes...)
	r.Diagnostics = append(r.Diagnostics, other.Diagnostics...)
}

// Fetcher is one scout connector.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) Result
}

// diagnostic builds a SourceDiagnostic, deriving Status from the item count
// when no error occurred.
func diagnostic(source string, items int, started time.Time, err error) domain.SourceDiagnostic {
	d := domain.SourceDiagnostic{
		Source:    source,
		ItemCount: items,
		Duration:  time.Since(started),
	}
	switch {
	case err != nil:
		d.Status = domain.SourceError
		d.Detail = err.Error()
	case items == 0:
		d.Status = domain.SourceEmpty
	default:
		d.Status = domain.SourceSuccess
	}
	return d
}

// blockedDiagnostic marks a source that answered but refused to serve us.
func blockedDiagnostic(source string, started time.Time, detail string) domain.SourceDiagnostic {
	return domain.SourceDiagnostic{
		Source:   source,
		Status:   domain.SourceBlocked,
		Duration: time.Since(started),
		Detail:   detail,
	}
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
