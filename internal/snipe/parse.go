package snipe

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/lukemartin/snipebot/internal/domain"
)

// fencedBlock matches a fenced code block, optionally tagged json, whose body
// is captured in group 1.
var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(\\[.*?\\])\\s*```")

// ParseOpportunities extracts the JSON opportunity array the model was
// instructed to emit. A missing or unparsable block degrades to an empty
// slice rather than an error: malformed model output means "nothing found",
// never a crashed run.
func ParseOpportunities(text string) []domain.ParsedOpportunity {
	raw, ok := extractJSONArray(text)
	if !ok {
		return nil
	}

	var parsed []domain.ParsedOpportunity
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil
	}

	out := make([]domain.ParsedOpportunity, 0, len(parsed))
	for _, opp := range parsed {
		if strings.TrimSpace(opp.Title) == "" {
			continue
		}
		if opp.ID == "" {
			opp.ID = uuid.NewString()
		}
		if opp.SellPriceType == "" {
			opp.SellPriceType = domain.SellPriceEstimated
		}
		if opp.Confidence < 0 {
			opp.Confidence = 0
		}
		if opp.Confidence > 100 {
			opp.Confidence = 100
		}
		out = append(out, opp)
	}
	return out
}

// extractJSONArray returns the fenced JSON array from text, falling back to
// the outermost bracketed span when the model forgot the fences.
func extractJSONArray(text string) ([]byte, bool) {
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		return []byte(m[1]), true
	}

	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start < 0 || end <= start {
		return nil, false
	}
	return []byte(text[start : end+1]), true
}
