// Package judge provides LLM-backed behavioral analysis of trade intents.
package judge

import (
	"context"

	"ghost-coach/internal/models"
)

// Intent is a trade the user wants to place, before execution.
type Intent struct {
	Side      models.OrderSide
	Price     float64
	Size      float64
	Reasoning string
}

// Verdict is the judge's evaluation of an intent.
type Verdict struct {
	InterventionRequired bool
	Reason               string
	EvidenceSummary      string
	EvidenceTrades       []models.InterventionEvidence
	EstimatedRiskAmount  float64
}

// Judge evaluates trader behavior against their own history.
type Judge interface {
	// EvaluateIntent judges a proposed trade against recent candles,
	// trade history and the psychological profile.
	EvaluateIntent(ctx context.Context, intent Intent, candles []models.Candle, history []models.Trade, profile *models.PsychologicalProfile) (*Verdict, error)

	// NarrateOutcome produces a short post-trade reflection for a
	// closed trade.
	NarrateOutcome(ctx context.Context, trade *models.Trade, candles []models.Candle) (string, error)

	// SynthesizePlaybook builds a personalized playbook from the full
	// trade history. It fails loudly rather than returning a partial
	// playbook.
	SynthesizePlaybook(ctx context.Context, history []models.Trade, profile *models.PsychologicalProfile) (*models.Playbook, error)

	// GenerateLessons derives lessons from recent trade history.
	GenerateLessons(ctx context.Context, history []models.Trade) ([]models.Lesson, error)
}
