package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedSizer(t *testing.T) {
	assert.Equal(t, 3, NewFixedSizer(3).Contracts(SizingRequest{}))
	// Misconfigured size falls back to one contract.
	assert.Equal(t, 1, NewFixedSizer(0).Contracts(SizingRequest{}))
	assert.Equal(t, 1, NewFixedSizer(-5).Contracts(SizingRequest{}))
}

func TestEquityPercentSizer(t *testing.T) {
	tests := []struct {
		name     string
		fraction float64
		req      SizingRequest
		want     int
	}{
		{
			name:     "basic notional target",
			fraction: 0.5,
			req:      SizingRequest{Equity: 100_000, ReferencePrice: 100, ContractMultiplier: 10, MarginRate: 0.1},
			want:     500, // 50_000 / (100 * 10 * 0.1)
		},
		{
			name:     "floors fractional contracts",
			fraction: 0.1,
			req:      SizingRequest{Equity: 100_000, ReferencePrice: 300, ContractMultiplier: 10, MarginRate: 0.1},
			want:     33, // 10_000 / 300 = 33.33
		},
		{
			name:     "zero on non-positive equity",
			fraction: 0.5,
			req:      SizingRequest{Equity: 0, ReferencePrice: 100, ContractMultiplier: 10, MarginRate: 0.1},
			want:     0,
		},
		{
			name:     "zero on missing margin rate",
			fraction: 0.5,
			req:      SizingRequest{Equity: 100_000, ReferencePrice: 100, ContractMultiplier: 10},
			want:     0,
		},
		{
			name:     "zero on non-positive fraction",
			fraction: 0,
			req:      SizingRequest{Equity: 100_000, ReferencePrice: 100, ContractMultiplier: 10, MarginRate: 0.1},
			want:     0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewEquityPercentSizer(tt.fraction).Contracts(tt.req))
		})
	}
}

func TestATRRiskSizer(t *testing.T) {
	tests := []struct {
		name string
		risk float64
		req  SizingRequest
		want int
	}{
		{
			name: "risk budget over stop distance",
			risk: 0.02,
			req:  SizingRequest{Equity: 100_000, StopDistance: 10, ContractMultiplier: 10},
			want: 20, // 2000 / (10 * 10)
		},
		{
			name: "floors fractional contracts",
			risk: 0.02,
			req:  SizingRequest{Equity: 100_000, StopDistance: 7, ContractMultiplier: 10},
			want: 28, // 2000 / 70 = 28.57
		},
		{
			name: "zero while the stop distance is undefined",
			risk: 0.02,
			req:  SizingRequest{Equity: 100_000, StopDistance: 0, ContractMultiplier: 10},
			want: 0,
		},
		{
			name: "zero on non-positive equity",
			risk: 0.02,
			req:  SizingRequest{Equity: -5, StopDistance: 10, ContractMultiplier: 10},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewATRRiskSizer(tt.risk).Contracts(tt.req))
		})
	}
}
