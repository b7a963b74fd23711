package filter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/lukemartin/snipebot/internal/domain"
)

type fakeSearcher struct {
	results map[string][]SearchResult
	err     error
	calls   int
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) ([]SearchResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

func ptr(v int64) *int64 { return &v }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		MinProfitCents:   2000,
		MinSpreadPercent: 20,
		LookupDelay:      time.Millisecond,
	}
}

func switchLead() domain.ScoutLead {
	return domain.ScoutLead{
		Title:      "Nintendo Switch OLED",
		URL:        "https://sfbay.craigslist.org/sby/ele/d/switch/7712345678.html",
		Source:     "craigslist",
		Category:   "electronics",
		PriceFound: ptr(10000),
	}
}

func switchEvidence() []SearchResult {
	return []SearchResult{
		{URL: "https://www.ebay.com/itm/111", Title: "Nintendo Switch OLED", Content: "sold for $180.00"},
		{URL: "https://www.ebay.com/itm/222", Title: "Switch OLED console", Content: "Buy it now $200"},
		{URL: "https://dealblog.example.com/blog/switch", Title: "Switch prices", Content: "going for about $190 these days"},
	}
}

func TestQualifyVerifiedLead(t *testing.T) {
	search := &fakeSearcher{results: map[string][]SearchResult{
		resaleQuery("Nintendo Switch OLED"): switchEvidence(),
	}}
	q := NewQualifier(search, testConfig(), testLogger())

	got := q.Qualify(context.Background(), []domain.ScoutLead{switchLead()})
	if len(got) != 1 {
		t.Fatalf("expected 1 qualified lead, got %d", len(got))
	}
	ql := got[0]
	if ql.SellPriceType != domain.SellPriceVerified {
		t.Fatalf("expected verified, got %s", ql.SellPriceType)
	}
	if ql.SellPriceEstimate != 19000 {
		t.Fatalf("expected weighted median 19000, got %d", ql.SellPriceEstimate)
	}
	if ql.EstimatedSpread != ql.SellPriceEstimate-ql.BuyPrice {
		t.Fatalf("spread invariant violated: %d != %d - %d", ql.EstimatedSpread, ql.SellPriceEstimate, ql.BuyPrice)
	}
	if ql.EstimatedSpread < testConfig().MinProfitCents {
		t.Fatalf("qualified lead below profit threshold: %d", ql.EstimatedSpread)
	}
	if ql.SpreadPercent < testConfig().MinSpreadPercent {
		t.Fatalf("qualified lead below spread threshold: %f", ql.SpreadPercent)
	}
	if ql.Confidence != domain.ConfidenceMedium {
		t.Fatalf("expected medium confidence from 2 listing points, got %s", ql.Confidence)
	}
}

func TestQualifyIdempotent(t *testing.T) {
	mk := func() []domain.QualifiedLead {
		search := &fakeSearcher{results: map[string][]SearchResult{
			resaleQuery("Nintendo Switch OLED"): switchEvidence(),
		}}
		q := NewQualifier(search, testConfig(), testLogger())
		return q.Qualify(context.Background(), []domain.ScoutLead{switchLead()})
	}

	first, second := mk(), mk()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("qualification is not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestQualifySkipsUnpricedLeads(t *testing.T) {
	search := &fakeSearcher{}
	q := NewQualifier(search, testConfig(), testLogger())

	lead := switchLead()
	lead.PriceFound = nil
	got := q.Qualify(context.Background(), []domain.ScoutLead{lead})
	if len(got) != 0 {
		t.Fatalf("expected no qualified leads, got %d", len(got))
	}
	if search.calls != 0 {
		t.Fatalf("expected no lookups for unpriced leads, got %d", search.calls)
	}
}

func TestQualifyRejectsThinSpread(t *testing.T) {
	search := &fakeSearcher{results: map[string][]SearchResult{
		resaleQuery("Nintendo Switch OLED"): {
			{URL: "https://www.ebay.com/itm/111", Content: "sold for $105"},
			{URL: "https://www.ebay.com/itm/222", Content: "sold for $108"},
		},
	}}
	q := NewQualifier(search, testConfig(), testLogger())

	if got := q.Qualify(context.Background(), []domain.ScoutLead{switchLead()}); len(got) != 0 {
		t.Fatalf("expected thin spread to be rejected, got %d leads", len(got))
	}
}

func TestEvidencePointsAnchorFilter(t *testing.T) {
	results := []SearchResult{
		{URL: "https://www.ebay.com/itm/1", Content: "$180"},
		// 50x the buy price: a different product entirely.
		{URL: "https://www.ebay.com/itm/2", Content: "$5,000"},
		// 5% of the buy price: parts-only noise.
		{URL: "https://www.ebay.com/itm/3", Content: "$5"},
	}
	points := EvidencePoints(10000, results)
	if len(points) != 1 {
		t.Fatalf("expected 1 anchored point, got %d", len(points))
	}
	if points[0].Cents != 18000 {
		t.Fatalf("expected 18000, got %d", points[0].Cents)
	}
}

func TestQualifyStopsAfterConsecutiveErrors(t *testing.T) {
	search := &fakeSearcher{err: errors.New("429 too many requests")}
	q := NewQualifier(search, testConfig(), testLogger())

	leads := make([]domain.ScoutLead, 6)
	for i := range leads {
		leads[i] = switchLead()
	}
	got := q.Qualify(context.Background(), leads)
	if len(got) != 0 {
		t.Fatalf("expected no qualified leads, got %d", len(got))
	}
	if search.calls != 3 {
		t.Fatalf("expected early exit after 3 consecutive errors, got %d lookups", search.calls)
	}
}

func TestGradeConfidence(t *testing.T) {
	tests := []struct {
		listings int
		spread   float64
		want     domain.Confidence
	}{
		{3, 50, domain.ConfidenceHigh},
		{4, 40, domain.ConfidenceHigh},
		{3, 20, domain.ConfidenceMedium},
		{2, 10, domain.ConfidenceMedium},
		{1, 35, domain.ConfidenceMedium},
		{1, 10, domain.ConfidenceLow},
		{0, 90, domain.ConfidenceLow},
	}
	for _, tt := range tests {
		if got := GradeConfidence(tt.listings, tt.spread); got != tt.want {
			t.Errorf("GradeConfidence(%d, %f) = %s, want %s", tt.listings, tt.spread, got, tt.want)
		}
	}
}
