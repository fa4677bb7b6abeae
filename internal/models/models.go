// Package models provides domain models for the coaching terminal.
package models

import (
	"fmt"
	"time"
)

// OrderSide represents the direction of a trade.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// MarketCondition represents the market regime at trade entry.
type MarketCondition string

const (
	ConditionTrendingUp   MarketCondition = "TRENDING_UP"
	ConditionTrendingDown MarketCondition = "TRENDING_DOWN"
	ConditionRanging      MarketCondition = "RANGING"
	ConditionVolatile     MarketCondition = "VOLATILE"
	ConditionUnknown      MarketCondition = "UNKNOWN"
)

// RiskTolerance represents how much risk the trader habitually takes.
type RiskTolerance string

const (
	RiskLow    RiskTolerance = "LOW"
	RiskMedium RiskTolerance = "MEDIUM"
	RiskHigh   RiskTolerance = "HIGH"
)

// Interval represents a candle timeframe.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
)

// ParseInterval validates a timeframe string.
func ParseInterval(s string) (Interval, error) {
	switch Interval(s) {
	case Interval1m, Interval5m, Interval15m, Interval1h:
		return Interval(s), nil
	}
	return "", fmt.Errorf("unsupported interval %q", s)
}

// Duration returns the wall-clock length of one candle.
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval1m:
		return time.Minute
	case Interval5m:
		return 5 * time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval1h:
		return time.Hour
	}
	return time.Minute
}

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}
