package extract

import "testing"

func TestIsListingURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.ebay.com/itm/12345", true},
		{"https://www.ebay.com/sch/i.html?_nkw=jordan+4", false},
		{"https://example.com/blog/post", false},
		{"https://www.etsy.com/listing/98765/vintage-lamp", true},
		{"https://www.amazon.com/dp/B08N5WRWNW", true},
		{"https://www.amazon.com/Some-Product-Name/dp/B08N5WRWNW", true},
		{"https://www.mercari.com/us/item/m123456/", true},
		{"https://poshmark.com/listing/Nike-Dunk-Low-5f3", true},
		{"https://stockx.com/air-jordan-4-retro-bred", true},
		{"https://stockx.com/search?s=jordan", false},
		{"https://sfbay.craigslist.org/sby/ele/d/camera/7712345678.html", true},
		{"https://sfbay.craigslist.org/search/ele?query=camera", false},
		{"https://www.discogs.com/sell/item/2211445566", true},
		{"https://www.reddit.com/r/AVexchange/comments/abc123", false},
		{"https://news.site.com/news/best-deals-today", false},
		{"https://random-shop.com/product/some-thing", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsListingURL(tt.url); got != tt.want {
			t.Errorf("IsListingURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

// The classifier must be a pure function of its input: repeated calls on the
// same URL always agree.
func TestIsListingURLDeterministic(t *testing.T) {
	urls := []string{
		"https://www.ebay.com/itm/12345",
		"https://www.ebay.com/sch/i.html?_nkw=x",
		"https://example.com/blog/post",
	}
	for _, u := range urls {
		first := IsListingURL(u)
		for i := 0; i < 100; i++ {
			if IsListingURL(u) != first {
				t.Fatalf("IsListingURL(%q) not deterministic", u)
			}
		}
	}
}
