package snipe

import (
	"testing"

	"github.com/lukemartin/snipebot/internal/domain"
)

const fencedOutput = "Here is what survived verification.\n```json\n" + `[
  {
    "title": "Nintendo Switch OLED",
    "description": "Local pickup, resells reliably",
    "buyPrice": 10000,
    "buySource": "craigslist",
    "buyUrl": "https://sfbay.craigslist.org/sby/ele/d/switch/771.html",
    "sellPrice": 19000,
    "sellSource": "ebay",
    "sellUrl": "https://www.ebay.com/itm/111",
    "sellPriceType": "verified",
    "estimatedProfit": 6000,
    "fees": {"platformFee": 2470, "shippingCost": 530, "other": 0, "total": 3000},
    "confidence": 80,
    "riskNotes": ["console condition unverified"],
    "reasoning": "two recent sold listings at 180-200"
  }
]` + "\n```\nLet me know if you want more detail."

func TestParseOpportunitiesFencedBlock(t *testing.T) {
	opps := ParseOpportunities(fencedOutput)
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}
	opp := opps[0]
	if opp.BuyPrice != 10000 || opp.SellPrice != 19000 {
		t.Fatalf("unexpected prices: buy=%d sell=%d", opp.BuyPrice, opp.SellPrice)
	}
	if opp.SellPriceType != domain.SellPriceVerified {
		t.Fatalf("expected verified, got %s", opp.SellPriceType)
	}
	if opp.Fees.Total != 3000 {
		t.Fatalf("expected fees total 3000, got %d", opp.Fees.Total)
	}
	if opp.ID == "" {
		t.Fatal("expected an assigned ID")
	}
}

func TestParseOpportunitiesBareArray(t *testing.T) {
	text := `Final answer: [{"title": "Item", "buyPrice": 100, "sellPrice": 300}] done`
	opps := ParseOpportunities(text)
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}
	if opps[0].SellPriceType != domain.SellPriceEstimated {
		t.Fatalf("expected default sellPriceType estimated, got %s", opps[0].SellPriceType)
	}
}

func TestParseOpportunitiesMalformed(t *testing.T) {
	for _, text := range []string{
		"",
		"no opportunities worth pursuing here",
		"```json\n{not valid json]\n```",
		"```json\n{\"title\": \"an object, not an array\"}\n```",
	} {
		if opps := ParseOpportunities(text); len(opps) != 0 {
			t.Errorf("ParseOpportunities(%q) = %d opportunities, want 0", text, len(opps))
		}
	}
}

func TestParseOpportunitiesClampsAndFilters(t *testing.T) {
	text := "```json\n" + `[
	  {"title": "Over-confident", "buyPrice": 100, "confidence": 250},
	  {"title": "", "buyPrice": 100}
	]` + "\n```"
	opps := ParseOpportunities(text)
	if len(opps) != 1 {
		t.Fatalf("expected untitled entry dropped, got %d opportunities", len(opps))
	}
	if opps[0].Confidence != 100 {
		t.Fatalf("expected confidence clamped to 100, got %d", opps[0].Confidence)
	}
}

func TestParseOpportunitiesEmptyArray(t *testing.T) {
	if opps := ParseOpportunities("```json\n[]\n```"); len(opps) != 0 {
		t.Fatalf("expected no opportunities, got %d", len(opps))
	}
}
