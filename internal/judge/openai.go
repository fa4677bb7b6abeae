package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sashabaranov/go-openai"

	gcerrors "ghost-coach/internal/errors"
	"ghost-coach/internal/models"
)

const systemPrompt = `You are GHOST, a high-stakes behavioral trading coach. You audit a trader's
decisions against their own history, name the bias driving them, and answer
only in the format requested.`

// OpenAIJudge implements Judge using the OpenAI API.
type OpenAIJudge struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIJudge creates a new OpenAI-backed judge.
func NewOpenAIJudge(apiKey, model string, timeout time.Duration) *OpenAIJudge {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIJudge{
		client:  openai.NewClient(apiKey),
		model:   model,
		timeout: timeout,
	}
}

func (j *OpenAIJudge) complete(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: j.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := j.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}
	return resp.Choices[0].Message.Content, nil
}

// candleContext is the compact candle form passed in prompts.
type candleContext struct {
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

func candleJSON(candles []models.Candle, n int) string {
	if len(candles) > n {
		candles = candles[len(candles)-n:]
	}
	out := make([]candleContext, 0, len(candles))
	for _, c := range candles {
		out = append(out, candleContext{
			Time:   c.Timestamp.Format(time.RFC3339),
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		})
	}
	bs, _ := json.Marshal(out)
	return string(bs)
}

// losingTradeContext is the compact trade form cited in prompts.
type losingTradeContext struct {
	ID        string  `json:"id"`
	PnL       float64 `json:"pnl"`
	Reasoning string  `json:"reasoning"`
	Date      string  `json:"date"`
}

func losingTradesJSON(history []models.Trade, n int) string {
	out := make([]losingTradeContext, 0, n)
	for _, t := range history {
		if t.PnL == nil || *t.PnL >= 0 {
			continue
		}
		out = append(out, losingTradeContext{
			ID:        t.ID,
			PnL:       *t.PnL,
			Reasoning: t.Reasoning,
			Date:      t.Timestamp.Format("2006-01-02"),
		})
		if len(out) >= n {
			break
		}
	}
	bs, _ := json.Marshal(out)
	return string(bs)
}

// verdictPayload mirrors the JSON shape requested from the model.
type verdictPayload struct {
	InterventionRequired bool    `json:"interventionRequired"`
	Reason               string  `json:"reason"`
	EvidenceSummary      string  `json:"evidenceSummary"`
	EvidenceTrades       []struct {
		TradeID string  `json:"tradeId"`
		PnL     float64 `json:"pnl"`
		Date    string  `json:"date"`
		Reason  string  `json:"reason"`
	} `json:"evidenceTrades"`
	EstimatedRiskAmount float64 `json:"estimatedRiskAmount"`
}

// EvaluateIntent judges a proposed trade.
func (j *OpenAIJudge) EvaluateIntent(ctx context.Context, intent Intent, candles []models.Candle, history []models.Trade, profile *models.PsychologicalProfile) (*Verdict, error) {
	if profile == nil {
		profile = models.DefaultProfile()
	}

	prompt := fmt.Sprintf(`Analyze this trade intent.

TRADER INTENT:
- Action: %s
- Size: %g
- Intent Price: $%.2f
- Reasoning: %q

MARKET CONTEXT (Recent 10 Candles):
%s

Losing Trade History (Context for pattern matching):
%s

TRADER PROFILE:
- Top Bias: %s
- Risk Tolerance: %s
- Summary: %s

TASK:
Perform deep reasoning. Check if this trade matches a recurring losing pattern
(e.g. FOMO, Revenge, Ignoring Trend). If the trader's reasoning is weak or
contradicts the candles, intervention is REQUIRED.

If interventionRequired is true, pick 1-2 SPECIFIC trade IDs from the history
that match this behavior. Calculate estimatedRiskAmount from the trade size
and volatility.

Respond with a JSON object with keys: interventionRequired (boolean),
reason (string), evidenceSummary (string), evidenceTrades (array of objects
with tradeId, pnl, date, reason), estimatedRiskAmount (number).`,
		intent.Side, intent.Size, intent.Price, intent.Reasoning,
		candleJSON(candles, 10),
		losingTradesJSON(history, 5),
		profile.TopBias, profile.RiskTolerance, profile.Summary)

	raw, err := j.complete(ctx, prompt, true)
	if err != nil {
		return nil, gcerrors.NewJudgeError("evaluate_intent", err)
	}

	var payload verdictPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, gcerrors.NewJudgeError("evaluate_intent", fmt.Errorf("decoding verdict: %w", err))
	}

	verdict := &Verdict{
		InterventionRequired: payload.InterventionRequired,
		Reason:               payload.Reason,
		EvidenceSummary:      payload.EvidenceSummary,
		EstimatedRiskAmount:  payload.EstimatedRiskAmount,
	}
	for _, ev := range payload.EvidenceTrades {
		date, _ := time.Parse("2006-01-02", ev.Date)
		verdict.EvidenceTrades = append(verdict.EvidenceTrades, models.InterventionEvidence{
			TradeID: ev.TradeID,
			PnL:     ev.PnL,
			Date:    date,
			Reason:  ev.Reason,
		})
	}

	coerceVerdict(verdict, history)
	return verdict, nil
}

// NarrateOutcome produces a short post-trade reflection.
func (j *OpenAIJudge) NarrateOutcome(ctx context.Context, trade *models.Trade, candles []models.Candle) (string, error) {
	outcome := "LOSS"
	pnl := 0.0
	if trade.PnL != nil {
		pnl = *trade.PnL
		if pnl > 0 {
			outcome = "WIN"
		}
	}

	slippageInfo := ""
	if trade.Slippage != 0 {
		slippageInfo = fmt.Sprintf("NOTE: Execution caused a slippage of $%.2f between the trader's intent and actual entry.", trade.Slippage)
	}

	prompt := fmt.Sprintf(`Perform a "Brutal Mirror" analysis on this completed trade.
Trade Type: %s
Size: %g
Intent price: $%.2f
Actual entry price: $%.2f
Trader reasoning: %q
Outcome: %s ($%.2f)
%s

MARKET CONTEXT:
%s

Task: Explain the gap between the trader's expectation and what actually
happened. If the trader's idea was correct at their intent price but the
entry delay or an intervention caused a worse fill, acknowledge that as an
"Execution Cost" and defend their logic while explaining why the
intervention was still psychologically valuable. Limit to 2-3 piercing
sentences.`,
		trade.Side, trade.Size, trade.IntentPrice, trade.EntryPrice,
		trade.Reasoning, outcome, pnl, slippageInfo, candleJSON(candles, 10))

	text, err := j.complete(ctx, prompt, false)
	if err != nil {
		return "", gcerrors.NewJudgeError("narrate_outcome", err)
	}
	return text, nil
}

// playbookPayload mirrors the JSON shape requested from the model.
type playbookPayload struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Modules []struct {
		Title         string `json:"title"`
		Content       string `json:"content"`
		Type          string `json:"type"`
		VisualAidType string `json:"visualAidType"`
	} `json:"modules"`
}

// SynthesizePlaybook builds a personalized playbook from the full history.
func (j *OpenAIJudge) SynthesizePlaybook(ctx context.Context, history []models.Trade, profile *models.PsychologicalProfile) (*models.Playbook, error) {
	if profile == nil {
		profile = models.DefaultProfile()
	}

	historyJSON, _ := json.Marshal(summarizeTrades(history))
	profileJSON, _ := json.Marshal(map[string]interface{}{
		"topBias":       profile.TopBias,
		"riskTolerance": profile.RiskTolerance,
		"fomoScore":     profile.FOMOScore,
		"summary":       profile.Summary,
	})

	prompt := fmt.Sprintf(`Analyze this trader's complete history: %s
Profile Context: %s

TASK: Synthesize a "Personalized Master Strategy Course".
Focus on their specific strategies, behavioral biases and recurring
technical errors.

Respond with a JSON object with keys: title (string), summary (string),
modules (array of exactly 4 objects with title, content, type, visualAidType).
Module types, one each: "principle" (a foundational rule they MUST follow),
"mistake" (a deep analysis of their most frequent error), "pattern" (a
behavioral pattern recognition guide), "protocol" (a step-by-step execution
protocol for their edge). visualAidType is one of "bar", "list", "warning".`,
		string(historyJSON), string(profileJSON))

	raw, err := j.complete(ctx, prompt, true)
	if err != nil {
		return nil, gcerrors.NewJudgeError("synthesize_playbook", err)
	}

	var payload playbookPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, gcerrors.NewJudgeError("synthesize_playbook", fmt.Errorf("decoding playbook: %w", err))
	}

	playbook := &models.Playbook{
		ID:          ulid.Make().String(),
		Title:       payload.Title,
		Summary:     payload.Summary,
		GeneratedAt: time.Now(),
		TradeCount:  len(history),
	}
	for _, m := range payload.Modules {
		playbook.Modules = append(playbook.Modules, models.PlaybookModule{
			Type:      models.ModuleType(m.Type),
			Title:     m.Title,
			Content:   m.Content,
			VisualAid: models.VisualAid(m.VisualAidType),
		})
	}

	if err := validatePlaybook(playbook); err != nil {
		return nil, gcerrors.NewJudgeError("synthesize_playbook", err)
	}
	return playbook, nil
}

// lessonsPayload mirrors the JSON shape requested from the model.
type lessonsPayload struct {
	Lessons []struct {
		Title            string   `json:"title"`
		Content          string   `json:"content"`
		Category         string   `json:"category"`
		RelevantTradeIDs []string `json:"relevantTradeIds"`
	} `json:"lessons"`
}

// GenerateLessons derives lessons from recent trade history.
func (j *OpenAIJudge) GenerateLessons(ctx context.Context, history []models.Trade) ([]models.Lesson, error) {
	if len(history) == 0 {
		return nil, nil
	}

	recent := history
	if len(recent) > 15 {
		recent = recent[:15]
	}
	historyJSON, _ := json.Marshal(summarizeTrades(recent))

	prompt := fmt.Sprintf(`Analyze this specific trader's history: %s

TASK: Generate a high-quality personalized lesson from their own trades.
Structure the content as Symptom, Root Cause, Protocol.

Respond with a JSON object with a single key "lessons": an array containing
one comprehensive lesson object with title (string), content (string),
category ("Risk", "Psychology" or "Technical") and relevantTradeIds (array
of trade IDs from the history).`, string(historyJSON))

	raw, err := j.complete(ctx, prompt, true)
	if err != nil {
		return nil, gcerrors.NewJudgeError("generate_lessons", err)
	}

	var payload lessonsPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, gcerrors.NewJudgeError("generate_lessons", fmt.Errorf("decoding lessons: %w", err))
	}

	known := make(map[string]bool, len(history))
	for _, t := range history {
		known[t.ID] = true
	}

	lessons := make([]models.Lesson, 0, len(payload.Lessons))
	for _, l := range payload.Lessons {
		var tradeIDs []string
		for _, id := range l.RelevantTradeIDs {
			if known[id] {
				tradeIDs = append(tradeIDs, id)
			}
		}
		lessons = append(lessons, models.Lesson{
			ID:               ulid.Make().String(),
			Title:            l.Title,
			Content:          l.Content,
			Category:         coerceLessonCategory(l.Category),
			RelevantTradeIDs: tradeIDs,
			CreatedAt:        time.Now(),
		})
	}
	return lessons, nil
}

// tradeSummary is the compact trade form passed in prompts.
type tradeSummary struct {
	ID            string   `json:"id"`
	Side          string   `json:"side"`
	Size          float64  `json:"size"`
	EntryPrice    float64  `json:"entryPrice"`
	ExitPrice     *float64 `json:"exitPrice,omitempty"`
	PnL           *float64 `json:"pnl,omitempty"`
	Reasoning     string   `json:"reasoning"`
	Condition     string   `json:"condition"`
	WasIntervened bool     `json:"wasIntervened"`
	Date          string   `json:"date"`
}

func summarizeTrades(trades []models.Trade) []tradeSummary {
	out := make([]tradeSummary, 0, len(trades))
	for _, t := range trades {
		out = append(out, tradeSummary{
			ID:            t.ID,
			Side:          string(t.Side),
			Size:          t.Size,
			EntryPrice:    t.EntryPrice,
			ExitPrice:     t.ExitPrice,
			PnL:           t.PnL,
			Reasoning:     t.Reasoning,
			Condition:     string(t.Condition),
			WasIntervened: t.WasIntervened,
			Date:          t.Timestamp.Format("2006-01-02"),
		})
	}
	return out
}

// Ensure OpenAIJudge implements Judge interface
var _ Judge = (*OpenAIJudge)(nil)
