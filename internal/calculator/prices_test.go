package calculator

import (
	"math"
	"testing"
)

func TestScanPriceTokens(t *testing.T) {
	text := "EUR/USD held 1.0850 support, eyes 1.0920 after CPI rose 3.20% in 2024"
	got := ScanPriceTokens(text)
	want := []PriceToken{{Value: 1.085, Pos: 13}, {Value: 1.092, Pos: 34}}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestScanPriceTokens_NoTokens(t *testing.T) {
	if got := ScanPriceTokens("Fed holds rates steady in 2025"); len(got) != 0 {
		t.Errorf("expected no prices, got %v", got)
	}
}

func TestSplitSentences_KeepsDecimals(t *testing.T) {
	got := SplitSentences("USD/JPY tests 151.20. Sellers wait above! Bids at 150.80")
	if len(got) != 3 {
		t.Fatalf("expected 3 sentences, got %d: %q", len(got), got)
	}
	if got[0] != "USD/JPY tests 151.20" {
		t.Errorf("unexpected first sentence %q", got[0])
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{5, 1},
		{-3, -1},
		{0.4, 0.4},
		{math.NaN(), 0},
		{math.Inf(1), 1},
		{math.Inf(-1), -1},
	}
	for _, tt := range tests {
		if got := Clamp(tt.in, -1, 1); got != tt.want {
			t.Errorf("Clamp(%v): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestUniqueSorted(t *testing.T) {
	got := UniqueSorted([]float64{1.2, 1.1, 1.2, 0.9})
	want := []float64{0.9, 1.1, 1.2}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %v, got %v", i, want[i], got[i])
		}
	}
	if got := UniqueSorted(nil); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}
