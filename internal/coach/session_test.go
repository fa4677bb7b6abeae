package coach

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gcerrors "ghost-coach/internal/errors"
	"ghost-coach/internal/judge"
	"ghost-coach/internal/models"
	"ghost-coach/internal/store"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// fakeJudge returns scripted results and can run a hook mid-evaluation.
type fakeJudge struct {
	verdict    *judge.Verdict
	verdictErr error
	narrative  string
	narrateErr error
	playbook   *models.Playbook
	lessons    []models.Lesson
	onEvaluate func()
	onNarrate  func()
}

func (j *fakeJudge) EvaluateIntent(ctx context.Context, intent judge.Intent, candles []models.Candle, history []models.Trade, profile *models.PsychologicalProfile) (*judge.Verdict, error) {
	if j.onEvaluate != nil {
		j.onEvaluate()
	}
	if j.verdictErr != nil {
		return nil, j.verdictErr
	}
	if j.verdict != nil {
		v := *j.verdict
		return &v, nil
	}
	return &judge.Verdict{}, nil
}

func (j *fakeJudge) NarrateOutcome(ctx context.Context, trade *models.Trade, candles []models.Candle) (string, error) {
	if j.onNarrate != nil {
		j.onNarrate()
	}
	return j.narrative, j.narrateErr
}

func (j *fakeJudge) SynthesizePlaybook(ctx context.Context, history []models.Trade, profile *models.PsychologicalProfile) (*models.Playbook, error) {
	if j.playbook == nil {
		return nil, gcerrors.NewJudgeError("playbook synthesis", errors.New("no playbook scripted"))
	}
	return j.playbook, nil
}

func (j *fakeJudge) GenerateLessons(ctx context.Context, history []models.Trade) ([]models.Lesson, error) {
	return j.lessons, nil
}

// memStore is an in-memory DataStore for session tests.
type memStore struct {
	trades   map[string]models.Trade
	profile  *models.PsychologicalProfile
	playbook *models.Playbook
	lessons  []models.Lesson
	saveErr  error
}

func newMemStore() *memStore {
	return &memStore{trades: make(map[string]models.Trade)}
}

func (m *memStore) SaveTrade(ctx context.Context, trade *models.Trade) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.trades[trade.ID] = *trade
	return nil
}

func (m *memStore) GetTrades(ctx context.Context, filter store.TradeFilter) ([]models.Trade, error) {
	var out []models.Trade
	for _, t := range m.trades {
		out = append(out, t)
	}
	return out, nil
}

func (m *memStore) GetTradeByID(ctx context.Context, id string) (*models.Trade, error) {
	if t, ok := m.trades[id]; ok {
		return &t, nil
	}
	return nil, nil
}

func (m *memStore) SaveProfile(ctx context.Context, profile *models.PsychologicalProfile) error {
	p := *profile
	m.profile = &p
	return nil
}

func (m *memStore) GetProfile(ctx context.Context) (*models.PsychologicalProfile, error) {
	return m.profile, nil
}

func (m *memStore) SavePlaybook(ctx context.Context, playbook *models.Playbook) error {
	m.playbook = playbook
	return nil
}

func (m *memStore) GetPlaybook(ctx context.Context) (*models.Playbook, error) {
	return m.playbook, nil
}

func (m *memStore) DeletePlaybook(ctx context.Context) error {
	m.playbook = nil
	return nil
}

func (m *memStore) SaveLessons(ctx context.Context, lessons []models.Lesson) error {
	m.lessons = append(m.lessons, lessons...)
	return nil
}

func (m *memStore) GetLessons(ctx context.Context) ([]models.Lesson, error) {
	return m.lessons, nil
}

func (m *memStore) SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error {
	return nil
}

func (m *memStore) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	return nil, nil
}

func (m *memStore) Close() error { return nil }

func newTestSession(j judge.Judge, st store.DataStore, clock Clock) *Session {
	return NewSession(Config{
		Symbol:    "BTCUSDT",
		Interval:  models.Interval("1m"),
		Countdown: 10 * time.Second,
		CandleCap: 200,
	}, st, j, clock, zerolog.Nop())
}

func TestProposeTradeExecutesWithoutIntervention(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	st := newMemStore()
	s := newTestSession(&fakeJudge{}, st, clock)

	s.OnPrice(50000)
	verdict, err := s.ProposeTrade(context.Background(), models.OrderSideBuy, 0.5, "clean breakout retest")
	require.NoError(t, err)
	require.NotNil(t, verdict)
	assert.False(t, verdict.InterventionRequired)

	assert.Equal(t, StateOpen, s.State())
	open := s.OpenTrade()
	require.NotNil(t, open)
	assert.Equal(t, models.OrderSideBuy, open.Side)
	assert.Equal(t, 50000.0, open.EntryPrice)
	assert.Equal(t, 0.0, open.Slippage)
	assert.False(t, open.WasIntervened)
	assert.Len(t, st.trades, 1)
}

func TestProposeTradeFailsOpenOnJudgeError(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	j := &fakeJudge{verdictErr: gcerrors.NewJudgeError("intent evaluation", errors.New("api down"))}
	s := newTestSession(j, newMemStore(), clock)

	s.OnPrice(50000)
	verdict, err := s.ProposeTrade(context.Background(), models.OrderSideSell, 1, "fading the spike")
	require.NoError(t, err)
	assert.False(t, verdict.InterventionRequired)
	assert.Equal(t, 0.0, verdict.EstimatedRiskAmount)
	assert.Equal(t, StateOpen, s.State())
}

func TestProposeTradeValidation(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	s := newTestSession(&fakeJudge{}, newMemStore(), clock)

	_, err := s.ProposeTrade(context.Background(), models.OrderSideBuy, 1, "no price yet")
	assert.ErrorIs(t, err, gcerrors.ErrNoMarketPrice)

	s.OnPrice(100)

	_, err = s.ProposeTrade(context.Background(), models.OrderSide("HOLD"), 1, "bad side")
	assert.ErrorIs(t, err, gcerrors.ErrInputValidation)

	_, err = s.ProposeTrade(context.Background(), models.OrderSideBuy, 0, "zero size")
	assert.ErrorIs(t, err, gcerrors.ErrInputValidation)

	_, err = s.ProposeTrade(context.Background(), models.OrderSideBuy, 1, "   ")
	assert.ErrorIs(t, err, gcerrors.ErrInputValidation)

	// Open a position, then a second intent must be rejected.
	_, err = s.ProposeTrade(context.Background(), models.OrderSideBuy, 1, "first position")
	require.NoError(t, err)
	_, err = s.ProposeTrade(context.Background(), models.OrderSideBuy, 1, "second position")
	assert.ErrorIs(t, err, gcerrors.ErrPositionOpen)
}

func TestInterventionCountdownGatesProceed(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	j := &fakeJudge{verdict: &judge.Verdict{
		InterventionRequired: true,
		Reason:               "revenge trading after a loss",
		EstimatedRiskAmount:  120,
	}}
	s := newTestSession(j, newMemStore(), clock)

	s.OnPrice(50000)
	verdict, err := s.ProposeTrade(context.Background(), models.OrderSideBuy, 1, "getting it back")
	require.NoError(t, err)
	require.True(t, verdict.InterventionRequired)
	assert.Equal(t, StateInterventionPending, s.State())
	assert.Equal(t, 10*time.Second, s.CountdownRemaining())

	// Proceed is locked while the countdown runs.
	_, err = s.ResolveIntervention(context.Background(), true)
	assert.ErrorIs(t, err, gcerrors.ErrCountdownActive)
	assert.Equal(t, StateInterventionPending, s.State())

	clock.Advance(4 * time.Second)
	assert.Equal(t, 6*time.Second, s.CountdownRemaining())
	_, err = s.ResolveIntervention(context.Background(), true)
	assert.ErrorIs(t, err, gcerrors.ErrCountdownActive)

	// After the countdown the trade executes, flagged as intervened.
	clock.Advance(7 * time.Second)
	assert.Equal(t, time.Duration(0), s.CountdownRemaining())
	trade, err := s.ResolveIntervention(context.Background(), true)
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.True(t, trade.WasIntervened)
	assert.Equal(t, StateOpen, s.State())
}

func TestInterventionDeclineCreditsCapitalPreserved(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	st := newMemStore()
	j := &fakeJudge{verdict: &judge.Verdict{
		InterventionRequired: true,
		Reason:               "FOMO entry at resistance",
		EstimatedRiskAmount:  25,
	}}
	s := newTestSession(j, st, clock)

	s.OnPrice(50000)
	_, err := s.ProposeTrade(context.Background(), models.OrderSideBuy, 1, "it keeps going up")
	require.NoError(t, err)

	trade, err := s.ResolveIntervention(context.Background(), false)
	require.NoError(t, err)
	assert.Nil(t, trade)
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 25.0, s.Profile().CapitalPreserved)
	require.NotNil(t, st.profile)
	assert.Equal(t, 25.0, st.profile.CapitalPreserved)

	// Nothing left to resolve.
	_, err = s.ResolveIntervention(context.Background(), false)
	assert.ErrorIs(t, err, gcerrors.ErrNoIntervention)
}

func TestSlippageBetweenIntentAndExecution(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	s := newTestSession(nil, newMemStore(), clock)
	j := &fakeJudge{onEvaluate: func() { s.OnPrice(50010) }}
	s.judge = j

	s.OnPrice(50000)
	_, err := s.ProposeTrade(context.Background(), models.OrderSideBuy, 1, "momentum entry")
	require.NoError(t, err)

	open := s.OpenTrade()
	require.NotNil(t, open)
	assert.Equal(t, 50000.0, open.IntentPrice)
	assert.Equal(t, 50010.0, open.EntryPrice)
	assert.Equal(t, 10.0, open.Slippage)
}

func TestCloseTradeRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	st := newMemStore()
	j := &fakeJudge{narrative: "You held through the chop and took the exit you planned."}
	s := newTestSession(j, st, clock)

	s.OnPrice(100)
	_, err := s.ProposeTrade(context.Background(), models.OrderSideBuy, 2, "support bounce")
	require.NoError(t, err)

	unrealized, err := s.LiveUnrealizedPnL()
	require.NoError(t, err)
	assert.Equal(t, 0.0, unrealized)

	s.OnPrice(120)
	unrealized, err = s.LiveUnrealizedPnL()
	require.NoError(t, err)
	assert.Equal(t, 40.0, unrealized)

	trade, err := s.CloseTrade(context.Background())
	require.NoError(t, err)
	require.NotNil(t, trade.PnL)
	assert.Equal(t, 40.0, *trade.PnL)
	require.NotNil(t, trade.ExitPrice)
	assert.Equal(t, 120.0, *trade.ExitPrice)
	assert.Equal(t, j.narrative, trade.Narrative)
	assert.Equal(t, StateIdle, s.State())
	assert.Nil(t, s.OpenTrade())

	trades := s.Trades()
	require.Len(t, trades, 1)
	assert.False(t, trades[0].IsOpen())

	_, err = s.CloseTrade(context.Background())
	assert.ErrorIs(t, err, gcerrors.ErrNoOpenPosition)
}

func TestCloseTradeSellSide(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	s := newTestSession(&fakeJudge{narrative: "ok"}, newMemStore(), clock)

	s.OnPrice(100)
	_, err := s.ProposeTrade(context.Background(), models.OrderSideSell, 1, "rejection at the high")
	require.NoError(t, err)

	s.OnPrice(120)
	trade, err := s.CloseTrade(context.Background())
	require.NoError(t, err)
	require.NotNil(t, trade.PnL)
	assert.Equal(t, -20.0, *trade.PnL)
}

func TestCloseTradeNarrationFailure(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	j := &fakeJudge{narrateErr: gcerrors.NewJudgeError("narration", errors.New("timeout"))}
	s := newTestSession(j, newMemStore(), clock)

	s.OnPrice(100)
	_, err := s.ProposeTrade(context.Background(), models.OrderSideBuy, 1, "quick scalp")
	require.NoError(t, err)

	s.OnPrice(101)
	trade, err := s.CloseTrade(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NarrativeUnavailable, trade.Narrative)
}

func TestCloseTradePersistFailureStillCloses(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	st := newMemStore()
	s := newTestSession(&fakeJudge{narrative: "ok"}, st, clock)

	s.OnPrice(100)
	_, err := s.ProposeTrade(context.Background(), models.OrderSideBuy, 1, "entry")
	require.NoError(t, err)

	st.saveErr = errors.New("disk full")
	s.OnPrice(110)
	trade, err := s.CloseTrade(context.Background())
	require.Error(t, err)
	require.NotNil(t, trade)
	assert.False(t, trade.IsOpen())
	assert.Equal(t, StateIdle, s.State())
}

func TestLoadResumesOpenTrade(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	st := newMemStore()
	st.trades["01ARZ3ND"] = models.Trade{
		ID:         "01ARZ3ND",
		Symbol:     "BTCUSDT",
		Side:       models.OrderSideBuy,
		Size:       1,
		EntryPrice: 50000,
	}
	s := newTestSession(&fakeJudge{}, st, clock)

	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, StateOpen, s.State())
	open := s.OpenTrade()
	require.NotNil(t, open)
	assert.Equal(t, "01ARZ3ND", open.ID)
}

func TestLoadKeepsOpenTradeOutOfHistory(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	st := newMemStore()
	st.trades["OPEN1"] = models.Trade{
		ID:         "OPEN1",
		Symbol:     "BTCUSDT",
		Side:       models.OrderSideBuy,
		Size:       1,
		EntryPrice: 50000,
	}
	closedPnL := 75.0
	closedExit := 49075.0
	st.trades["DONE1"] = models.Trade{
		ID:         "DONE1",
		Symbol:     "BTCUSDT",
		Side:       models.OrderSideSell,
		Size:       1,
		EntryPrice: 49150,
		ExitPrice:  &closedExit,
		PnL:        &closedPnL,
	}
	s := newTestSession(&fakeJudge{narrative: "ok"}, st, clock)

	require.NoError(t, s.Load(context.Background()))
	require.Equal(t, StateOpen, s.State())

	// The resumed open position lives only in OpenTrade.
	history := s.Trades()
	require.Len(t, history, 1)
	assert.Equal(t, "DONE1", history[0].ID)
}

func TestCloseAfterResumeRecordsTradeOnce(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	st := newMemStore()
	st.trades["OPEN1"] = models.Trade{
		ID:         "OPEN1",
		Symbol:     "BTCUSDT",
		Side:       models.OrderSideBuy,
		Size:       1,
		EntryPrice: 50000,
	}
	s := newTestSession(&fakeJudge{narrative: "ok"}, st, clock)

	require.NoError(t, s.Load(context.Background()))
	s.OnPrice(51000)

	trade, err := s.CloseTrade(context.Background())
	require.NoError(t, err)
	require.NotNil(t, trade.PnL)
	assert.Equal(t, 1000.0, *trade.PnL)

	history := s.Trades()
	require.Len(t, history, 1)
	assert.Equal(t, "OPEN1", history[0].ID)
	assert.False(t, history[0].IsOpen())
}

func TestCloseTradeReentrancyDuringNarration(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	st := newMemStore()
	s := newTestSession(nil, st, clock)
	var reentrantErr error
	s.judge = &fakeJudge{
		narrative: "ok",
		onNarrate: func() {
			_, reentrantErr = s.CloseTrade(context.Background())
		},
	}

	s.OnPrice(100)
	_, err := s.ProposeTrade(context.Background(), models.OrderSideBuy, 1, "entry")
	require.NoError(t, err)

	s.OnPrice(110)
	trade, err := s.CloseTrade(context.Background())
	require.NoError(t, err)
	require.NotNil(t, trade)

	// A close arriving while narration runs must not double-close.
	assert.ErrorIs(t, reentrantErr, gcerrors.ErrNoOpenPosition)
	assert.Len(t, s.Trades(), 1)
}

func TestOnCandleCapsWindow(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	s := NewSession(Config{
		Symbol:    "BTCUSDT",
		Interval:  models.Interval("1m"),
		CandleCap: 3,
	}, newMemStore(), &fakeJudge{}, clock, zerolog.Nop())

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.OnCandle(context.Background(), models.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Close:     100 + float64(i),
		})
	}

	candles := s.Candles()
	require.Len(t, candles, 3)
	assert.Equal(t, 102.0, candles[0].Close)
	assert.Equal(t, 104.0, candles[2].Close)
	assert.Equal(t, 104.0, s.LastPrice())

	// A repeated timestamp replaces the tail candle instead of appending.
	s.OnCandle(context.Background(), models.Candle{
		Timestamp: base.Add(4 * time.Minute),
		Close:     200,
	})
	candles = s.Candles()
	require.Len(t, candles, 3)
	assert.Equal(t, 200.0, candles[2].Close)
}

func TestGeneratePlaybookPropagatesJudgeError(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	s := newTestSession(&fakeJudge{}, newMemStore(), clock)

	_, err := s.GeneratePlaybook(context.Background())
	assert.Error(t, err)
}

func TestGeneratePlaybookPersists(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	st := newMemStore()
	j := &fakeJudge{playbook: &models.Playbook{Title: "The Discipline Edge"}}
	s := newTestSession(j, st, clock)

	pb, err := s.GeneratePlaybook(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "The Discipline Edge", pb.Title)
	require.NotNil(t, st.playbook)
	assert.Equal(t, pb.Title, st.playbook.Title)
}
