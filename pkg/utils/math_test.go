package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestRoundToTick(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		tick     string
		expected string
	}{
		{"exact match", "0.123", "0.001", "0.123"},
		{"round down", "0.123456", "0.001", "0.123"},
		{"round down 2", "1.999", "0.01", "1.99"},
		{"whole numbers", "100.5", "1", "100"},
		{"zero value", "0", "0.001", "0"},
		{"zero tick means no rounding", "0.123", "0", "0.123"},
		{"negative tick means no rounding", "0.123", "-0.001", "0.123"},
		{"very small tick", "1.23456789", "0.00000001", "1.23456789"},
		{"large number", "12345.6789", "0.01", "12345.67"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundToTick(d(tt.value), d(tt.tick))
			want := d(tt.expected)
			if !got.Equal(want) {
				t.Errorf("RoundToTick(%s, %s) = %s, want %s", tt.value, tt.tick, got, want)
			}
		})
	}
}

func TestWeightedAveragePrice(t *testing.T) {
	levels := []LevelFill{
		{Price: d("50000"), Qty: d("0.01")},
		{Price: d("50100"), Qty: d("0.00998")},
	}
	got := WeightedAveragePrice(levels)
	// (50000*0.01 + 50100*0.00998) / (0.01+0.00998)
	want := d("500").Add(d("50100").Mul(d("0.00998"))).Div(d("0.01998"))
	if !got.Round(6).Equal(want.Round(6)) {
		t.Errorf("WeightedAveragePrice = %s, want %s", got, want)
	}
}

func TestWeightedAveragePrice_Empty(t *testing.T) {
	got := WeightedAveragePrice(nil)
	if !got.IsZero() {
		t.Errorf("expected zero for empty levels, got %s", got)
	}
}
