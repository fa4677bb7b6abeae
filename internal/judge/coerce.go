package judge

import (
	"fmt"
	"strings"

	"ghost-coach/internal/models"
)

// coerceVerdict normalizes an LLM verdict so the session can trust it.
// Risk is clamped to non-negative, cited evidence must reference real
// trades, and a required intervention always carries a reason.
func coerceVerdict(v *Verdict, history []models.Trade) {
	if v.EstimatedRiskAmount < 0 {
		v.EstimatedRiskAmount = 0
	}

	known := make(map[string]bool, len(history))
	for _, t := range history {
		known[t.ID] = true
	}

	filtered := v.EvidenceTrades[:0]
	for _, ev := range v.EvidenceTrades {
		if known[ev.TradeID] {
			filtered = append(filtered, ev)
		}
	}
	v.EvidenceTrades = filtered

	if v.InterventionRequired && strings.TrimSpace(v.Reason) == "" {
		v.Reason = "Pattern match against prior losing behavior."
	}
}

// validatePlaybook checks that a synthesized playbook has exactly one
// module of each kind and reorders them canonically.
func validatePlaybook(p *models.Playbook) error {
	if len(p.Modules) != len(models.ModuleTypes) {
		return fmt.Errorf("playbook has %d modules, want %d", len(p.Modules), len(models.ModuleTypes))
	}

	byType := make(map[models.ModuleType]models.PlaybookModule, len(p.Modules))
	for _, m := range p.Modules {
		if _, dup := byType[m.Type]; dup {
			return fmt.Errorf("playbook has duplicate %q module", m.Type)
		}
		byType[m.Type] = m
	}

	ordered := make([]models.PlaybookModule, 0, len(models.ModuleTypes))
	for _, mt := range models.ModuleTypes {
		m, ok := byType[mt]
		if !ok {
			return fmt.Errorf("playbook missing %q module", mt)
		}
		ordered = append(ordered, m)
	}
	p.Modules = ordered
	return nil
}

// coerceLessonCategory maps free-form category text to a known category.
func coerceLessonCategory(s string) models.LessonCategory {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "risk":
		return models.LessonRisk
	case "technical":
		return models.LessonTechnical
	default:
		return models.LessonPsychology
	}
}
