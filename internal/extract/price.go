// Package extract provides the regex-based money and listing-URL classifiers
// used by every other pipeline component. Marketplace text is unstructured, so
// the extraction stays rule-based; each source connector keeps its own extra
// pattern set on top of these shared primitives.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// maxPriceCents bounds accepted prices to under one million dollars. Anything
// at or above this (or at zero) is treated as extraction noise.
const maxPriceCents = 1_000_000 * 100

// pricePatterns are tried in order; the first match wins. Group 1 captures the
// numeric amount.
var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$\s?(\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)`),
	regexp.MustCompile(`(?i)\bUSD\s*(\d+(?:\.\d{1,2})?)`),
	regexp.MustCompile(`(?i)\bprice:?\s*\$?(\d+(?:\.\d{1,2})?)`),
}

// dollarPattern matches only $-prefixed amounts, used for document-order
// extraction of every price mention.
var dollarPattern = pricePatterns[0]

// Price returns the first dollar amount found in text, in integer cents.
// Returns false when no pattern matches or the value falls outside the
// (0, 1,000,000) dollar sanity bounds.
func Price(text string) (int64, bool) {
	for _, re := range pricePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		cents, err := parseMoney(m[1])
		if err != nil {
			continue
		}
		if cents <= 0 || cents >= maxPriceCents {
			continue
		}
		return cents, true
	}
	return 0, false
}

// AllPrices returns every $-prefixed amount in document order, already
// sanity-bounded. Duplicate values are kept; callers that need de-duplication
// do it themselves.
func AllPrices(text string) []int64 {
	var out []int64
	for _, m := range dollarPattern.FindAllStringSubmatch(text, -1) {
		cents, err := parseMoney(m[1])
		if err != nil {
			continue
		}
		if cents <= 0 || cents >= maxPriceCents {
			continue
		}
		out = append(out, cents)
	}
	return out
}

// parseMoney converts a numeric string like "1,299.99" to integer cents.
func parseMoney(s string) (int64, error) {
	s = strings.ReplaceAll(s, ",", "")

	whole := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}

	dollars, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, err
	}

	cents := int64(0)
	switch len(frac) {
	case 0:
	case 1:
		n, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, err
		}
		cents = n * 10
	default:
		n, err := strconv.ParseInt(frac[:2], 10, 64)
		if err != nil {
			return 0, err
		}
		cents = n
	}

	return dollars*100 + cents, nil
}
