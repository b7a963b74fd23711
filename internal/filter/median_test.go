package filter

import "testing"

func TestWeightedMedian(t *testing.T) {
	tests := []struct {
		name   string
		points []PricePoint
		want   int64
	}{
		{
			name:   "empty",
			points: nil,
			want:   0,
		},
		{
			name:   "single point",
			points: []PricePoint{{Cents: 4200, Weight: 1}},
			want:   4200,
		},
		{
			name: "heavy tail entry wins",
			points: []PricePoint{
				{Cents: 100, Weight: 1},
				{Cents: 200, Weight: 1},
				{Cents: 300, Weight: 3},
			},
			want: 300,
		},
		{
			name: "equal weights take middle",
			points: []PricePoint{
				{Cents: 100, Weight: 1},
				{Cents: 200, Weight: 1},
				{Cents: 300, Weight: 1},
			},
			want: 200,
		},
		{
			name: "order independent",
			points: []PricePoint{
				{Cents: 300, Weight: 3},
				{Cents: 100, Weight: 1},
				{Cents: 200, Weight: 1},
			},
			want: 300,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeightedMedian(tt.points); got != tt.want {
				t.Fatalf("WeightedMedian = %d, want %d", got, tt.want)
			}
		})
	}
}
