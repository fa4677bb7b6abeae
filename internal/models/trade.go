package models

import "time"

// Trade represents a single journaled trade. A trade with a nil ExitPrice
// is still open.
type Trade struct {
	ID              string
	Timestamp       time.Time
	IntentTimestamp time.Time
	Symbol          string
	Side            OrderSide
	Size            float64
	IntentPrice     float64
	EntryPrice      float64
	Slippage        float64
	ExitPrice       *float64
	ExitTimestamp   *time.Time
	PnL             *float64
	Reasoning       string
	Condition       MarketCondition
	BiasDetected    []string
	WasIntervened   bool
	CapitalSaved    *float64
	Narrative       string
}

// IsOpen reports whether the trade has not been closed yet.
func (t *Trade) IsOpen() bool {
	return t.ExitPrice == nil
}

// PsychologicalProfile is the coach's running read of the trader.
type PsychologicalProfile struct {
	TopBias           string
	RiskTolerance     RiskTolerance
	StreakCount       int
	FOMOScore         float64
	RevengeLikelihood float64
	CapitalPreserved  float64
	Summary           string
	UpdatedAt         time.Time
}

// DefaultProfile returns the profile used before any trades exist.
func DefaultProfile() *PsychologicalProfile {
	return &PsychologicalProfile{
		TopBias:       "None Detected",
		RiskTolerance: RiskMedium,
		Summary:       "Starting audit...",
	}
}

// InterventionEvidence is one historical trade cited in a verdict.
type InterventionEvidence struct {
	TradeID string
	PnL     float64
	Date    time.Time
	Reason  string
}
