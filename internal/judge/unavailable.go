package judge

import (
	"context"

	gcerrors "ghost-coach/internal/errors"
	"ghost-coach/internal/models"
)

// Unavailable is a Judge with no backing model. Every call fails, which
// the session treats as judgment failing open.
type Unavailable struct{}

func (Unavailable) EvaluateIntent(ctx context.Context, intent Intent, candles []models.Candle, history []models.Trade, profile *models.PsychologicalProfile) (*Verdict, error) {
	return nil, gcerrors.NewJudgeError("evaluate_intent", errNotConfigured)
}

func (Unavailable) NarrateOutcome(ctx context.Context, trade *models.Trade, candles []models.Candle) (string, error) {
	return "", gcerrors.NewJudgeError("narrate_outcome", errNotConfigured)
}

func (Unavailable) SynthesizePlaybook(ctx context.Context, history []models.Trade, profile *models.PsychologicalProfile) (*models.Playbook, error) {
	return nil, gcerrors.NewJudgeError("synthesize_playbook", errNotConfigured)
}

func (Unavailable) GenerateLessons(ctx context.Context, history []models.Trade) ([]models.Lesson, error) {
	return nil, gcerrors.NewJudgeError("generate_lessons", errNotConfigured)
}

var errNotConfigured = gcerrors.Wrap(gcerrors.ErrConfigInvalid, "no LLM API key configured")

var _ Judge = Unavailable{}
