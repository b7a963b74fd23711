package domain

// Fees itemizes the expected cost of flipping an item. All values are integer
// cents.
type Fees struct {
	PlatformFee  int64 `json:"platformFee"`
	ShippingCost int64 `json:"shippingCost"`
	Other        int64 `json:"other"`
	Total        int64 `json:"total"`
}

// ParsedOpportunity is the externally visible unit of the pipeline: a verified
// arbitrage opportunity. Created only by the snipe engine, or directly by the
// crypto spread detector which bypasses the LLM. Never mutated after creation
// and never persisted; it lives for the duration of one run.
//
// All money fields are integer cents. EstimatedProfit is reported by the
// verification engine and trusted as-is; no downstream re-check is performed.
type ParsedOpportunity struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	BuyPrice        int64         `json:"buyPrice"`
	BuySource       string        `json:"buySource"`
	BuyURL          string        `json:"buyUrl"`
	SellPrice       int64         `json:"sellPrice"`
	SellSource      string        `json:"sellSource"`
	SellURL         string        `json:"sellUrl"`
	SellPriceType   SellPriceType `json:"sellPriceType"`
	EstimatedProfit int64         `json:"estimatedProfit"`
	Fees            Fees          `json:"fees"`
	// Confidence is 0-100.
	Confidence int      `json:"confidence"`
	RiskNotes  []string `json:"riskNotes"`
	Reasoning  string   `json:"reasoning"`
}
