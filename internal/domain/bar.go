package domain

import "time"

// Bar represents a single OHLCV sample with open interest.
// Bars are immutable once produced by a feed and arrive in strictly
// increasing timestamp order.
type Bar struct {
	Timestamp    time.Time // Start time of the interval
	Symbol       string    // Trading symbol (e.g., "LH0", "ETHUSDT")
	Period       string    // Bar period (e.g., "daily", "5", "60")
	Open         float64   // Opening price
	High         float64   // Highest price
	Low          float64   // Lowest price
	Close        float64   // Closing price
	Volume       float64   // Traded volume
	OpenInterest float64   // Open interest at bar close
}
