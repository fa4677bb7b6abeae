// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"ghost-coach/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Trades
	SaveTrade(ctx context.Context, trade *models.Trade) error
	GetTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error)
	GetTradeByID(ctx context.Context, id string) (*models.Trade, error)

	// Profile
	SaveProfile(ctx context.Context, profile *models.PsychologicalProfile) error
	GetProfile(ctx context.Context) (*models.PsychologicalProfile, error)

	// Playbook
	SavePlaybook(ctx context.Context, playbook *models.Playbook) error
	GetPlaybook(ctx context.Context) (*models.Playbook, error)
	DeletePlaybook(ctx context.Context) error

	// Lessons
	SaveLessons(ctx context.Context, lessons []models.Lesson) error
	GetLessons(ctx context.Context) ([]models.Lesson, error)

	// Candles
	SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)

	// Lifecycle
	Close() error
}

// TradeFilter represents filters for querying trades.
type TradeFilter struct {
	Symbol    string
	Side      string
	StartDate time.Time
	EndDate   time.Time
	OpenOnly  bool
	Limit     int
}
