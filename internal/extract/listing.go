package extract

import (
	"regexp"
	"strings"
)

// denyPatterns mark search, category, and editorial pages. The denylist is
// matched before the allowlist so a search URL on a marketplace domain never
// classifies as a listing.
var denyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/sch/`),
	regexp.MustCompile(`(?i)/search\b`),
	regexp.MustCompile(`(?i)[?&](q|query|_nkw|keywords)=`),
	regexp.MustCompile(`(?i)/blog/`),
	regexp.MustCompile(`(?i)/news/`),
	regexp.MustCompile(`(?i)/category/`),
	regexp.MustCompile(`(?i)/browse/`),
	regexp.MustCompile(`(?i)/collections?/`),
	regexp.MustCompile(`(?i)\b(reddit|youtube|wikipedia|pinterest|quora)\.com`),
	regexp.MustCompile(`(?i)/forum`),
}

// listingPatterns allowlist per-marketplace item-detail paths. A URL matching
// one of these points at a specific item, not a results page, which is what
// makes a sell-side price observation trustworthy.
var listingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ebay\.com/itm/`),
	regexp.MustCompile(`(?i)etsy\.com/listing/`),
	regexp.MustCompile(`(?i)amazon\.com/(?:[^/]+/)?(?:dp|gp/product)/`),
	regexp.MustCompile(`(?i)mercari\.com/(?:us/)?item/`),
	regexp.MustCompile(`(?i)poshmark\.com/listing/`),
	regexp.MustCompile(`(?i)grailed\.com/listings/`),
	regexp.MustCompile(`(?i)depop\.com/products/`),
	regexp.MustCompile(`(?i)reverb\.com/item/`),
	regexp.MustCompile(`(?i)stockx\.com/[a-z0-9-]+$`),
	regexp.MustCompile(`(?i)goat\.com/sneakers/`),
	regexp.MustCompile(`(?i)discogs\.com/sell/item/`),
	regexp.MustCompile(`(?i)craigslist\.org/.+/\d+\.html`),
	regexp.MustCompile(`(?i)facebook\.com/marketplace/item/`),
	regexp.MustCompile(`(?i)offerup\.com/item/detail/`),
}

// IsListingURL classifies a URL as a genuine item-detail page versus a
// search, category, or editorial page. Pure and deterministic: denylist is
// checked first, then the allowlist; anything else is generic and treated as
// non-listing for qualification purposes (but still usable as a raw lead).
func IsListingURL(url string) bool {
	u := strings.TrimSpace(url)
	if u == "" {
		return false
	}
	for _, re := range denyPatterns {
		if re.MatchString(u) {
			return false
		}
	}
	for _, re := range listingPatterns {
		if re.MatchString(u) {
			return true
		}
	}
	return false
}
