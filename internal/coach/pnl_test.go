package coach

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"ghost-coach/internal/models"
)

func TestSlippage(t *testing.T) {
	tests := []struct {
		name   string
		side   models.OrderSide
		intent float64
		entry  float64
		want   float64
	}{
		{"buy filled worse", models.OrderSideBuy, 100, 105, 5},
		{"buy filled better", models.OrderSideBuy, 100, 98, -2},
		{"buy exact fill", models.OrderSideBuy, 100, 100, 0},
		{"sell filled worse", models.OrderSideSell, 100, 95, 5},
		{"sell filled better", models.OrderSideSell, 100, 103, -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slippage(tt.side, tt.intent, tt.entry); got != tt.want {
				t.Errorf("Slippage(%s, %v, %v) = %v, want %v", tt.side, tt.intent, tt.entry, got, tt.want)
			}
		})
	}
}

func TestPnL(t *testing.T) {
	tests := []struct {
		name  string
		side  models.OrderSide
		entry float64
		exit  float64
		size  float64
		want  float64
	}{
		{"buy win", models.OrderSideBuy, 100, 120, 1, 20},
		{"buy loss", models.OrderSideBuy, 100, 90, 2, -20},
		{"sell win", models.OrderSideSell, 100, 80, 1, 20},
		{"sell loss", models.OrderSideSell, 100, 120, 1, -20},
		{"flat", models.OrderSideBuy, 100, 100, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PnL(tt.side, tt.entry, tt.exit, tt.size); got != tt.want {
				t.Errorf("PnL(%s, %v, %v, %v) = %v, want %v", tt.side, tt.entry, tt.exit, tt.size, got, tt.want)
			}
		})
	}
}

// Property: a BUY and a SELL over the same price path have opposite P&L.
func TestProperty_PnLSideAntisymmetry(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("BUY and SELL P&L are opposite", prop.ForAll(
		func(entry, exit, size float64) bool {
			long := PnL(models.OrderSideBuy, entry, exit, size)
			short := PnL(models.OrderSideSell, entry, exit, size)
			return long == -short
		},
		gen.Float64Range(1, 100000),
		gen.Float64Range(1, 100000),
		gen.Float64Range(0.001, 100),
	))

	properties.Property("P&L sign follows price direction for longs", prop.ForAll(
		func(entry, exit, size float64) bool {
			pnl := PnL(models.OrderSideBuy, entry, exit, size)
			switch {
			case exit > entry:
				return pnl > 0
			case exit < entry:
				return pnl < 0
			default:
				return pnl == 0
			}
		},
		gen.Float64Range(1, 100000),
		gen.Float64Range(1, 100000),
		gen.Float64Range(0.001, 100),
	))

	properties.TestingRun(t)
}

// Property: slippage is positive exactly when the fill is worse than the
// intent, for either side.
func TestProperty_SlippageWorseFillIsPositive(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("worse fills cost, better fills pay", prop.ForAll(
		func(intent, entry float64) bool {
			buySlip := Slippage(models.OrderSideBuy, intent, entry)
			sellSlip := Slippage(models.OrderSideSell, intent, entry)
			if buySlip != -sellSlip {
				return false
			}
			if entry > intent {
				return buySlip > 0 && sellSlip < 0
			}
			if entry < intent {
				return buySlip < 0 && sellSlip > 0
			}
			return buySlip == 0
		},
		gen.Float64Range(1, 100000),
		gen.Float64Range(1, 100000),
	))

	properties.TestingRun(t)
}

func TestClassifyCondition(t *testing.T) {
	mk := func(closes ...float64) []models.Candle {
		candles := make([]models.Candle, len(closes))
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		for i, c := range closes {
			candles[i] = models.Candle{
				Timestamp: base.Add(time.Duration(i) * time.Minute),
				Open:      c,
				High:      c + 1,
				Low:       c - 1,
				Close:     c,
			}
		}
		return candles
	}

	if got := ClassifyCondition(nil); got != models.ConditionUnknown {
		t.Errorf("empty candles = %v, want %v", got, models.ConditionUnknown)
	}
	if got := ClassifyCondition(mk(50000)); got != models.ConditionUnknown {
		t.Errorf("single candle = %v, want %v", got, models.ConditionUnknown)
	}

	// Flat closes with small ranges relative to price.
	if got := ClassifyCondition(mk(50000, 50001, 50000, 49999, 50000)); got != models.ConditionRanging {
		t.Errorf("flat series = %v, want %v", got, models.ConditionRanging)
	}

	// Steady climb well beyond the average range.
	if got := ClassifyCondition(mk(50000, 50003, 50006, 50009, 50012)); got != models.ConditionTrendingUp {
		t.Errorf("climbing series = %v, want %v", got, models.ConditionTrendingUp)
	}

	// Steady decline.
	if got := ClassifyCondition(mk(50012, 50009, 50006, 50003, 50000)); got != models.ConditionTrendingDown {
		t.Errorf("declining series = %v, want %v", got, models.ConditionTrendingDown)
	}

	// Huge ranges relative to price.
	wild := mk(100, 130, 90, 140, 95)
	for i := range wild {
		wild[i].High = wild[i].Close + 20
		wild[i].Low = wild[i].Close - 20
	}
	if got := ClassifyCondition(wild); got != models.ConditionVolatile {
		t.Errorf("wild series = %v, want %v", got, models.ConditionVolatile)
	}
}
