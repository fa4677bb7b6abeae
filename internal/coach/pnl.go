package coach

import (
	"math"

	"ghost-coach/internal/models"
)

// Slippage returns the cost of the gap between intent and entry price.
// Positive values mean the fill was worse than intended.
func Slippage(side models.OrderSide, intentPrice, entryPrice float64) float64 {
	if side == models.OrderSideBuy {
		return entryPrice - intentPrice
	}
	return intentPrice - entryPrice
}

// PnL returns the realized profit of a closed position.
func PnL(side models.OrderSide, entryPrice, exitPrice, size float64) float64 {
	if side == models.OrderSideBuy {
		return (exitPrice - entryPrice) * size
	}
	return (entryPrice - exitPrice) * size
}

// ClassifyCondition derives the market regime from recent candles.
func ClassifyCondition(candles []models.Candle) models.MarketCondition {
	const window = 20
	if len(candles) < 2 {
		return models.ConditionUnknown
	}
	if len(candles) > window {
		candles = candles[len(candles)-window:]
	}

	var rangeSum float64
	for _, c := range candles {
		rangeSum += c.High - c.Low
	}
	avgRange := rangeSum / float64(len(candles))

	first := candles[0].Close
	last := candles[len(candles)-1].Close
	net := last - first

	if avgRange > 0 && last > 0 && avgRange/last > 0.01 {
		return models.ConditionVolatile
	}
	if math.Abs(net) > 2*avgRange {
		if net > 0 {
			return models.ConditionTrendingUp
		}
		return models.ConditionTrendingDown
	}
	return models.ConditionRanging
}
