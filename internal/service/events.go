// Package service holds the business operations behind the HTTP API:
// market curation, bet placement and settlement, portfolio statistics and
// the chain-status helpers.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

// MarketNotifier delivers operator alerts about market lifecycle changes.
type MarketNotifier interface {
	NotifyMarket(ctx context.Context, m domain.Market) error
}

const notifyTimeout = 15 * time.Second

// publisher fans domain events out to the signal bus and the durable event
// stream. Publishing is best effort: failures are logged, never returned.
type publisher struct {
	bus    domain.SignalBus
	logger *slog.Logger
	now    func() time.Time
}

func (p publisher) publish(ctx context.Context, channel, marketID string, data any) {
	if p.bus == nil {
		return
	}
	ev, err := domain.NewEvent(channel, marketID, data, p.now())
	if err != nil {
		p.logger.ErrorContext(ctx, "encode event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.ErrorContext(ctx, "marshal event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := p.bus.Publish(ctx, channel, payload); err != nil {
		p.logger.WarnContext(ctx, "publish event failed",
			slog.String("channel", channel),
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}
	if err := p.bus.StreamAppend(ctx, domain.StreamEvents, payload); err != nil {
		p.logger.WarnContext(ctx, "stream append failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
