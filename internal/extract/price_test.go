package extract

import (
	"reflect"
	"testing"
)

func TestPrice(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		want  int64
		found bool
	}{
		{"plain dollars", "selling for $45", 4500, true},
		{"dollars and cents", "asking $45.99 obo", 4599, true},
		{"thousands separator", "grail piece, $1,299.99 shipped", 129999, true},
		{"usd prefix", "will take USD 250 for it", 25000, true},
		{"price label", "Price: 80", 8000, true},
		{"price label with dollar", "price: $17.50", 1750, true},
		{"single decimal digit", "cop for $9.5", 950, true},
		{"no price", "looking for offers, dm me", 0, false},
		{"zero excluded", "was $0 at one point", 0, false},
		{"over a million excluded", "$1,500,000 mansion", 0, false},
		{"first match wins", "was $200 now $75", 20000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Price(tt.text)
			if ok != tt.found {
				t.Fatalf("Price(%q) found = %v, want %v", tt.text, ok, tt.found)
			}
			if got != tt.want {
				t.Fatalf("Price(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestAllPrices(t *testing.T) {
	got := AllPrices("was $200, now $75, similar sold for $180.50")
	want := []int64{20000, 7500, 18050}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("AllPrices = %v, want %v", got, want)
	}
}

func TestAllPricesSkipsOutOfBounds(t *testing.T) {
	got := AllPrices("listed at $2,000,000 but comps are $900")
	want := []int64{90000}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("AllPrices = %v, want %v", got, want)
	}
}
