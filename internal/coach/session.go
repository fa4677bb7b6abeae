// Package coach implements the live coaching session. A session tracks
// the market for one symbol, routes trade intents through the judge and
// journals everything to the store.
package coach

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	gcerrors "ghost-coach/internal/errors"
	"ghost-coach/internal/judge"
	"ghost-coach/internal/logging"
	"ghost-coach/internal/models"
	"ghost-coach/internal/store"
)

// State is the session's position in the intent lifecycle.
type State string

const (
	StateIdle                State = "IDLE"
	StateAwaitingJudgment    State = "AWAITING_JUDGMENT"
	StateInterventionPending State = "INTERVENTION_PENDING"
	StateOpen                State = "OPEN"
)

// NarrativeUnavailable is stored when the post-trade reflection cannot
// be generated.
const NarrativeUnavailable = "Mirror unavailable."

// Config holds session behavior settings.
type Config struct {
	Symbol    string
	Interval  models.Interval
	Countdown time.Duration
	CandleCap int
}

type pendingIntervention struct {
	intent     judge.Intent
	intentTime time.Time
	verdict    *judge.Verdict
	deadline   time.Time
}

// Session is the live coaching controller for one symbol.
type Session struct {
	cfg    Config
	store  store.DataStore
	judge  judge.Judge
	clock  Clock
	logger zerolog.Logger

	mu        sync.Mutex
	state     State
	lastPrice float64
	candles   []models.Candle
	trades    []models.Trade // most recent first
	profile   *models.PsychologicalProfile
	openTrade *models.Trade
	pending   *pendingIntervention
}

// NewSession creates a session. Call Load before feeding it updates.
func NewSession(cfg Config, st store.DataStore, j judge.Judge, clock Clock, logger zerolog.Logger) *Session {
	if cfg.Countdown == 0 {
		cfg.Countdown = 10 * time.Second
	}
	if cfg.CandleCap == 0 {
		cfg.CandleCap = 200
	}
	if clock == nil {
		clock = SystemClock{}
	}

	return &Session{
		cfg:     cfg,
		store:   st,
		judge:   j,
		clock:   clock,
		logger:  logging.WithSymbol(logger, cfg.Symbol),
		state:   StateIdle,
		profile: models.DefaultProfile(),
	}
}

// Load restores trades, profile and candles from the store. An open
// trade in the journal resumes as the session's open position.
func (s *Session) Load(ctx context.Context) error {
	trades, err := s.store.GetTrades(ctx, store.TradeFilter{Symbol: s.cfg.Symbol})
	if err != nil {
		return gcerrors.Wrap(err, "loading trades")
	}

	profile, err := s.store.GetProfile(ctx)
	if err != nil {
		return gcerrors.Wrap(err, "loading profile")
	}
	if profile == nil {
		profile = models.DefaultProfile()
	}

	candles, err := s.store.GetCandles(ctx, s.cfg.Symbol, string(s.cfg.Interval), s.cfg.CandleCap)
	if err != nil {
		return gcerrors.Wrap(err, "loading candles")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = profile
	s.candles = candles
	// An open trade lives only in openTrade, never in the history list,
	// matching the fresh-session flow. CloseTrade prepends it once.
	for i := range trades {
		if trades[i].IsOpen() {
			t := trades[i]
			s.openTrade = &t
			s.state = StateOpen
			trades = append(trades[:i], trades[i+1:]...)
			break
		}
	}
	s.trades = trades
	return nil
}

// SeedCandles replaces the in-memory candle window, trimming to the cap.
func (s *Session) SeedCandles(candles []models.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(candles) > s.cfg.CandleCap {
		candles = candles[len(candles)-s.cfg.CandleCap:]
	}
	s.candles = append([]models.Candle(nil), candles...)
	if len(s.candles) > 0 {
		s.lastPrice = s.candles[len(s.candles)-1].Close
	}
}

// OnPrice records the latest traded price. Accepted in every state.
func (s *Session) OnPrice(price float64) {
	if price <= 0 {
		return
	}
	s.mu.Lock()
	s.lastPrice = price
	s.mu.Unlock()
}

// OnCandle records a closed candle and persists it best-effort.
func (s *Session) OnCandle(ctx context.Context, c models.Candle) {
	s.mu.Lock()
	if n := len(s.candles); n > 0 && s.candles[n-1].Timestamp.Equal(c.Timestamp) {
		s.candles[n-1] = c
	} else {
		s.candles = append(s.candles, c)
		if len(s.candles) > s.cfg.CandleCap {
			s.candles = s.candles[len(s.candles)-s.cfg.CandleCap:]
		}
	}
	s.lastPrice = c.Close
	s.mu.Unlock()

	if err := s.store.SaveCandles(ctx, s.cfg.Symbol, string(s.cfg.Interval), []models.Candle{c}); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist candle")
	}
}

// ProposeTrade runs a trade intent through the judge. If the judge does
// not require intervention the trade executes immediately; otherwise the
// session enters the intervention countdown. A judge failure never
// blocks the trade.
func (s *Session) ProposeTrade(ctx context.Context, side models.OrderSide, size float64, reasoning string) (*judge.Verdict, error) {
	s.mu.Lock()
	switch s.state {
	case StateIdle:
	case StateOpen:
		s.mu.Unlock()
		return nil, gcerrors.ErrPositionOpen
	default:
		s.mu.Unlock()
		return nil, gcerrors.NewValidationError("state", string(s.state), "an intent is already in flight")
	}
	if side != models.OrderSideBuy && side != models.OrderSideSell {
		s.mu.Unlock()
		return nil, gcerrors.NewValidationError("side", string(side), "must be BUY or SELL")
	}
	if size <= 0 {
		s.mu.Unlock()
		return nil, gcerrors.NewValidationError("size", size, "must be positive")
	}
	if strings.TrimSpace(reasoning) == "" {
		s.mu.Unlock()
		return nil, gcerrors.NewValidationError("reasoning", reasoning, "must not be empty")
	}
	if s.lastPrice <= 0 {
		s.mu.Unlock()
		return nil, gcerrors.ErrNoMarketPrice
	}

	intent := judge.Intent{
		Side:      side,
		Price:     s.lastPrice,
		Size:      size,
		Reasoning: reasoning,
	}
	intentTime := s.clock.Now()
	candles := append([]models.Candle(nil), s.candles...)
	history := append([]models.Trade(nil), s.trades...)
	profile := s.profile
	s.state = StateAwaitingJudgment
	s.mu.Unlock()

	verdict, err := s.judge.EvaluateIntent(ctx, intent, candles, history, profile)
	if err != nil {
		// Judgment failing open: the trade goes through unimpeded.
		s.logger.Warn().Err(err).Msg("Judgment unavailable, proceeding without intervention")
		verdict = &judge.Verdict{InterventionRequired: false, EstimatedRiskAmount: 0}
	}

	logging.LogVerdict(s.logger, s.cfg.Symbol, verdict.InterventionRequired, verdict.EstimatedRiskAmount, verdict.Reason)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !verdict.InterventionRequired {
		s.executeLocked(ctx, intent, intentTime, false)
		return verdict, nil
	}

	s.pending = &pendingIntervention{
		intent:     intent,
		intentTime: intentTime,
		verdict:    verdict,
		deadline:   s.clock.Now().Add(s.cfg.Countdown),
	}
	s.state = StateInterventionPending
	return verdict, nil
}

// CountdownRemaining reports how long the proceed option stays locked.
// Zero when no intervention is pending or the countdown has elapsed.
func (s *Session) CountdownRemaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return 0
	}
	remaining := s.pending.deadline.Sub(s.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ResolveIntervention ends a pending intervention. Declining credits the
// estimated risk to capital preserved. Proceeding is rejected until the
// countdown has elapsed.
func (s *Session) ResolveIntervention(ctx context.Context, proceed bool) (*models.Trade, error) {
	s.mu.Lock()

	if s.state != StateInterventionPending || s.pending == nil {
		s.mu.Unlock()
		return nil, gcerrors.ErrNoIntervention
	}

	if proceed {
		if s.clock.Now().Before(s.pending.deadline) {
			s.mu.Unlock()
			return nil, gcerrors.ErrCountdownActive
		}
		pending := s.pending
		s.pending = nil
		trade := s.executeLocked(ctx, pending.intent, pending.intentTime, true)
		s.mu.Unlock()
		logging.LogIntervention(s.logger, s.cfg.Symbol, true, 0)
		return trade, nil
	}

	saved := s.pending.verdict.EstimatedRiskAmount
	s.profile.CapitalPreserved += saved
	profile := *s.profile
	s.pending = nil
	s.state = StateIdle
	s.mu.Unlock()

	logging.LogIntervention(s.logger, s.cfg.Symbol, false, saved)

	if err := s.store.SaveProfile(ctx, &profile); err != nil {
		return nil, gcerrors.Wrap(err, "persisting profile")
	}
	return nil, nil
}

// executeLocked opens the position at the current market price. The
// caller holds the mutex.
func (s *Session) executeLocked(ctx context.Context, intent judge.Intent, intentTime time.Time, wasIntervened bool) *models.Trade {
	entry := s.lastPrice
	now := s.clock.Now()

	trade := &models.Trade{
		ID:              ulid.Make().String(),
		Timestamp:       now,
		IntentTimestamp: intentTime,
		Symbol:          s.cfg.Symbol,
		Side:            intent.Side,
		Size:            intent.Size,
		IntentPrice:     intent.Price,
		EntryPrice:      entry,
		Slippage:        Slippage(intent.Side, intent.Price, entry),
		Reasoning:       intent.Reasoning,
		Condition:       ClassifyCondition(s.candles),
		WasIntervened:   wasIntervened,
	}

	s.openTrade = trade
	s.state = StateOpen

	logging.LogTrade(s.logger, s.cfg.Symbol, string(intent.Side), intent.Size, entry)

	if err := s.store.SaveTrade(ctx, trade); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist open trade")
	}
	return trade
}

// CloseTrade exits the open position at the current market price. The
// close always completes; narration and persistence failures degrade to
// a placeholder narrative and an error return respectively.
func (s *Session) CloseTrade(ctx context.Context) (*models.Trade, error) {
	s.mu.Lock()
	if s.state != StateOpen || s.openTrade == nil {
		s.mu.Unlock()
		return nil, gcerrors.ErrNoOpenPosition
	}
	if s.lastPrice <= 0 {
		s.mu.Unlock()
		return nil, gcerrors.ErrNoMarketPrice
	}

	trade := s.openTrade
	exit := s.lastPrice
	exitTime := s.clock.Now()
	pnl := PnL(trade.Side, trade.EntryPrice, exit, trade.Size)
	trade.ExitPrice = &exit
	trade.ExitTimestamp = &exitTime
	trade.PnL = &pnl

	// Commit the close before releasing the lock for narration so a
	// concurrent CloseTrade cannot pass the state gate meanwhile.
	s.openTrade = nil
	s.state = StateIdle
	candles := append([]models.Candle(nil), s.candles...)
	s.mu.Unlock()

	narrative, err := s.judge.NarrateOutcome(ctx, trade, candles)
	if err != nil || strings.TrimSpace(narrative) == "" {
		if err != nil {
			s.logger.Warn().Err(err).Msg("Narration unavailable")
		}
		narrative = NarrativeUnavailable
	}

	s.mu.Lock()
	trade.Narrative = narrative
	s.trades = append([]models.Trade{*trade}, s.trades...)
	s.mu.Unlock()

	s.logger.Info().
		Str("trade_id", trade.ID).
		Float64("pnl", pnl).
		Msg("Trade closed")

	if err := s.store.SaveTrade(ctx, trade); err != nil {
		return trade, gcerrors.Wrap(err, "persisting closed trade")
	}
	return trade, nil
}

// LiveUnrealizedPnL reports the open position's mark-to-market profit.
func (s *Session) LiveUnrealizedPnL() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen || s.openTrade == nil {
		return 0, gcerrors.ErrNoOpenPosition
	}
	if s.lastPrice <= 0 {
		return 0, gcerrors.ErrNoMarketPrice
	}
	return PnL(s.openTrade.Side, s.openTrade.EntryPrice, s.lastPrice, s.openTrade.Size), nil
}

// GeneratePlaybook synthesizes and persists a playbook from the full
// history. Unlike judgment this propagates judge failures.
func (s *Session) GeneratePlaybook(ctx context.Context) (*models.Playbook, error) {
	s.mu.Lock()
	history := append([]models.Trade(nil), s.trades...)
	profile := s.profile
	s.mu.Unlock()

	playbook, err := s.judge.SynthesizePlaybook(ctx, history, profile)
	if err != nil {
		return nil, err
	}
	if err := s.store.SavePlaybook(ctx, playbook); err != nil {
		return nil, gcerrors.Wrap(err, "persisting playbook")
	}
	return playbook, nil
}

// GenerateLessons derives lessons from recent history and persists them.
func (s *Session) GenerateLessons(ctx context.Context) ([]models.Lesson, error) {
	s.mu.Lock()
	history := append([]models.Trade(nil), s.trades...)
	s.mu.Unlock()

	lessons, err := s.judge.GenerateLessons(ctx, history)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveLessons(ctx, lessons); err != nil {
		return nil, gcerrors.Wrap(err, "persisting lessons")
	}
	return lessons, nil
}

// State returns the session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastPrice returns the most recent traded price.
func (s *Session) LastPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPrice
}

// OpenTrade returns a copy of the open position, or nil.
func (s *Session) OpenTrade() *models.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openTrade == nil {
		return nil
	}
	t := *s.openTrade
	return &t
}

// Trades returns the journal, most recent first.
func (s *Session) Trades() []models.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Trade(nil), s.trades...)
}

// Profile returns a copy of the psychological profile.
func (s *Session) Profile() models.PsychologicalProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.profile
}

// PendingVerdict returns the verdict driving the current intervention,
// or nil when none is pending.
func (s *Session) PendingVerdict() *judge.Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	v := *s.pending.verdict
	return &v
}

// Candles returns the in-memory candle window.
func (s *Session) Candles() []models.Candle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Candle(nil), s.candles...)
}
