// Package feed provides live market data for the coaching session.
package feed

import (
	"context"

	"ghost-coach/internal/models"
)

// Update is a single market event delivered by a feed.
type Update struct {
	Price        float64
	CandleClosed bool
	Candle       models.Candle
}

// Feed streams prices and candles for one symbol.
type Feed interface {
	// FetchHistory retrieves up to limit recent closed candles.
	FetchHistory(ctx context.Context, limit int) ([]models.Candle, error)

	// Connect establishes the live stream. It returns once connected
	// or when ctx is done.
	Connect(ctx context.Context) error

	// Close tears down the stream.
	Close() error

	OnUpdate(handler func(Update))
	OnError(handler func(error))
	OnConnect(handler func())
	OnDisconnect(handler func())
}
