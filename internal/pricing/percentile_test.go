package pricing

import (
	"math"
	"testing"
)

func TestPercentile_KnownRanks(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	cases := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{25, 3.25},
		{35, 4.15},
		{50, 5.5},
		{75, 7.75},
		{100, 10},
	}
	for _, tc := range cases {
		got := Percentile(values, tc.p)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Percentile(p=%v) = %v, want %v", tc.p, got, tc.want)
		}
	}
}

func TestPercentile_SingleElement(t *testing.T) {
	for _, p := range []float64{0, 35, 50, 100} {
		if got := Percentile([]float64{42}, p); got != 42 {
			t.Errorf("Percentile([42], %v) = %v, want 42", p, got)
		}
	}
}

func TestPercentile_WithinBounds(t *testing.T) {
	lists := [][]float64{
		{3, 7},
		{1, 1, 1, 1},
		{2, 5, 9, 14, 30},
		{10, 12, 15},
	}
	for _, values := range lists {
		for p := 0.0; p <= 100.0; p += 5 {
			got := Percentile(values, p)
			if got < values[0] || got > values[len(values)-1] {
				t.Errorf("Percentile(%v, %v) = %v outside [%v, %v]",
					values, p, got, values[0], values[len(values)-1])
			}
		}
		if got := Percentile(values, 0); got != values[0] {
			t.Errorf("p0 of %v = %v, want min %v", values, got, values[0])
		}
		if got := Percentile(values, 100); got != values[len(values)-1] {
			t.Errorf("p100 of %v = %v, want max %v", values, got, values[len(values)-1])
		}
	}
}

func TestSortedPrices_DropsNonPositive(t *testing.T) {
	got := sortedPrices([]int{15, 0, 10, -3, 12})
	want := []float64{10, 12, 15}
	if len(got) != len(want) {
		t.Fatalf("sortedPrices = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sortedPrices[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
