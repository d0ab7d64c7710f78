package indicators

import (
	"context"
	"testing"
)

func TestMACD_ConstantSeriesIsZero(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100
	}

	macd := NewMACD(MACDConfig{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9})
	value, err := macd.Calculate(context.Background(), testBars(closes...))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if value.DIF != 0 || value.DEA != 0 || value.Hist != 0 {
		t.Errorf("Expected zero MACD on a constant series, got %+v", value)
	}
}

func TestMACD_TrendSigns(t *testing.T) {
	up := make([]float64, 40)
	down := make([]float64, 40)
	for i := range up {
		up[i] = 100 + float64(i)
		down[i] = 100 - float64(i)
	}

	macd := NewMACD(MACDConfig{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9})

	rising, err := macd.Calculate(context.Background(), testBars(up...))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if rising.DIF <= 0 {
		t.Errorf("Expected positive DIF in an uptrend, got %f", rising.DIF)
	}

	falling, err := macd.Calculate(context.Background(), testBars(down...))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if falling.DIF >= 0 {
		t.Errorf("Expected negative DIF in a downtrend, got %f", falling.DIF)
	}
}

func TestMACD_HistogramDefinition(t *testing.T) {
	closes := []float64{
		100, 101, 99, 102, 104, 103, 105, 107, 106, 108,
		110, 109, 111, 113, 112, 114, 113, 115, 117, 116,
		118, 117, 119, 121, 120, 122, 121, 123, 125, 124,
		126, 125, 127, 129, 128, 130,
	}

	macd := NewMACD(MACDConfig{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9})
	value, err := macd.Calculate(context.Background(), testBars(closes...))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := (value.DIF - value.DEA) * 2
	if value.Hist-want > 1e-9 || value.Hist-want < -1e-9 {
		t.Errorf("Expected Hist = (DIF-DEA)*2 = %f, got %f", want, value.Hist)
	}
}

func TestMACD_InsufficientData(t *testing.T) {
	macd := NewMACD(MACDConfig{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9})

	if got := macd.RequiredDataPoints(); got != 35 {
		t.Errorf("Expected 35 required data points, got %d", got)
	}
	if _, err := macd.Calculate(context.Background(), testBars(100, 101, 102)); err == nil {
		t.Error("Expected error but got none")
	}
}
