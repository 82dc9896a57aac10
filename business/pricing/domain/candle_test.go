package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func mkCandle(open, high, low, close string) Candle {
	now := time.Now()
	return Candle{
		OpenTime:  now.Add(-time.Hour),
		CloseTime: now,
		Open:      decimal.RequireFromString(open),
		High:      decimal.RequireFromString(high),
		Low:       decimal.RequireFromString(low),
		Close:     decimal.RequireFromString(close),
		Volume:    decimal.RequireFromString("1000"),
	}
}

func TestSummarize(t *testing.T) {
	candles := []Candle{
		mkCandle("100", "110", "95", "105"),
		mkCandle("105", "120", "100", "115"),
		mkCandle("115", "118", "108", "110"),
	}

	sum := Summarize("SOMI", "1h", candles)
	if sum == nil {
		t.Fatal("Summarize returned nil for non-empty series")
	}

	if !sum.High.Equal(decimal.RequireFromString("120")) {
		t.Errorf("High = %s, want 120", sum.High)
	}
	if !sum.Low.Equal(decimal.RequireFromString("95")) {
		t.Errorf("Low = %s, want 95", sum.Low)
	}
	// mean of closes: (105 + 115 + 110) / 3 = 110
	if !sum.Mean.Equal(decimal.RequireFromString("110")) {
		t.Errorf("Mean = %s, want 110", sum.Mean)
	}
	// (110 - 100) / 100 * 100 = 10%
	if !sum.ChangePercent.Equal(decimal.RequireFromString("10")) {
		t.Errorf("ChangePercent = %s, want 10", sum.ChangePercent)
	}
}

func TestSummarize_Empty(t *testing.T) {
	if got := Summarize("SOMI", "1h", nil); got != nil {
		t.Errorf("Summarize(empty) = %+v, want nil", got)
	}
}

func TestSummarize_ZeroOpenNoDivide(t *testing.T) {
	candles := []Candle{mkCandle("0", "10", "0", "5")}

	sum := Summarize("NEW", "1h", candles)
	if sum == nil {
		t.Fatal("Summarize returned nil")
	}
	if !sum.ChangePercent.IsZero() {
		t.Errorf("ChangePercent = %s, want 0 when open is zero", sum.ChangePercent)
	}
}

func TestVolatilityOf(t *testing.T) {
	tests := []struct {
		name       string
		closes     []string
		wantBucket VolatilityBucket
		wantZero   bool
	}{
		{
			name:     "fewer_than_two_closes",
			closes:   []string{"100"},
			wantZero: true, wantBucket: VolatilityLow,
		},
		{
			name:       "flat_series_zero_volatility",
			closes:     []string{"100", "100", "100"},
			wantZero:   true,
			wantBucket: VolatilityLow,
		},
		{
			name:       "mild_movement_low",
			closes:     []string{"100", "101", "99", "100.5"},
			wantBucket: VolatilityLow,
		},
		{
			name:       "wide_swings_high",
			closes:     []string{"100", "250", "80", "300"},
			wantBucket: VolatilityHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			closes := make([]decimal.Decimal, len(tt.closes))
			for i, c := range tt.closes {
				closes[i] = decimal.RequireFromString(c)
			}

			v := VolatilityOf("SOMI", 24, closes)

			if tt.wantZero && !v.Percent.IsZero() {
				t.Errorf("Percent = %s, want 0", v.Percent)
			}
			if !tt.wantZero && tt.name != "fewer_than_two_closes" && v.Percent.IsNegative() {
				t.Errorf("Percent = %s, want non-negative", v.Percent)
			}
			if v.Bucket != tt.wantBucket {
				t.Errorf("Bucket = %q, want %q", v.Bucket, tt.wantBucket)
			}
			if v.WindowHours != 24 {
				t.Errorf("WindowHours = %d, want 24", v.WindowHours)
			}
		})
	}
}

func TestBucketFor(t *testing.T) {
	tests := []struct {
		percent string
		want    VolatilityBucket
	}{
		{"0", VolatilityLow},
		{"19.9999", VolatilityLow},
		{"20", VolatilityMedium},
		{"49.9999", VolatilityMedium},
		{"50", VolatilityHigh},
		{"120", VolatilityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.percent, func(t *testing.T) {
			if got := BucketFor(decimal.RequireFromString(tt.percent)); got != tt.want {
				t.Errorf("BucketFor(%s) = %q, want %q", tt.percent, got, tt.want)
			}
		})
	}
}
