package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

// MarketService handles market listing, lookup, creation and curation.
type MarketService struct {
	markets  domain.MarketStore
	cache    domain.MarketCache
	audit    domain.AuditStore
	notifier MarketNotifier
	events   publisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewMarketService creates a MarketService. cache and bus are required;
// use WithAudit and WithNotifier for the optional collaborators.
func NewMarketService(
	markets domain.MarketStore,
	cache domain.MarketCache,
	bus domain.SignalBus,
	logger *slog.Logger,
) *MarketService {
	logger = logger.With(slog.String("component", "market_service"))
	return &MarketService{
		markets: markets,
		cache:   cache,
		events:  publisher{bus: bus, logger: logger, now: time.Now},
		logger:  logger,
		now:     time.Now,
	}
}

// WithAudit records resolutions and cancellations in the audit log.
func (s *MarketService) WithAudit(audit domain.AuditStore) *MarketService {
	s.audit = audit
	return s
}

// WithNotifier sends operator alerts on creation, resolution and
// cancellation.
func (s *MarketService) WithNotifier(n MarketNotifier) *MarketService {
	s.notifier = n
	return s
}

// List returns the markets matching filter.
func (s *MarketService) List(ctx context.Context, filter domain.MarketFilter) ([]domain.Market, error) {
	if filter.SortBy != "" && !filter.SortBy.Valid() {
		v := &domain.Validator{}
		v.AddError("sortBy", "sortBy must be one of volume, newest, ending_soon")
		return nil, v.Err()
	}
	markets, err := s.markets.ListMarkets(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("market_service: list: %w", err)
	}
	return markets, nil
}

// Get retrieves a market by ID, checking the cache first and falling back
// to the store on a miss.
func (s *MarketService) Get(ctx context.Context, id string) (domain.Market, error) {
	m, err := s.cache.Get(ctx, id)
	if err == nil {
		return m, nil
	}

	m, err = s.markets.GetMarket(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get %q: %w", id, err)
	}

	if cacheErr := s.cache.Set(ctx, m); cacheErr != nil {
		s.logger.WarnContext(ctx, "cache set failed",
			slog.String("market_id", id),
			slog.String("error", cacheErr.Error()),
		)
	}
	return m, nil
}

// Create validates the payload and stores a new active market.
func (s *MarketService) Create(ctx context.Context, in domain.NewMarket) (domain.Market, error) {
	if err := in.Validate(); err != nil {
		return domain.Market{}, err
	}

	m := in.Build(uuid.NewString(), s.now())
	if err := s.markets.CreateMarket(ctx, m); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: create: %w", err)
	}

	s.logger.InfoContext(ctx, "market created",
		slog.String("market_id", m.ID),
		slog.String("category", string(m.Category)),
		slog.Int("outcomes", len(m.Outcomes)),
	)
	s.events.publish(ctx, domain.ChannelMarketCreated, m.ID, m)
	s.notify(ctx, m)
	return m, nil
}

// Update applies a partial update. Moving a market to resolved or
// cancelled triggers an audit entry and an operator alert.
func (s *MarketService) Update(ctx context.Context, id string, upd domain.MarketUpdate) (domain.Market, error) {
	current, err := s.markets.GetMarket(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: update %q: %w", id, err)
	}
	if err := upd.Validate(current); err != nil {
		return domain.Market{}, err
	}

	m, err := s.markets.UpdateMarket(ctx, id, upd)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: update %q: %w", id, err)
	}
	s.invalidate(ctx, id)
	s.events.publish(ctx, domain.ChannelMarketUpdated, m.ID, m)

	if m.Status != current.Status && m.Status.Final() {
		s.logger.InfoContext(ctx, "market closed",
			slog.String("market_id", m.ID),
			slog.String("status", string(m.Status)),
			slog.String("winning_outcome", m.WinningOutcomeID),
		)
		s.recordAudit(ctx, "market."+string(m.Status), map[string]any{
			"market_id":         m.ID,
			"winning_outcome":   m.WinningOutcomeID,
			"total_volume":      m.TotalVolume,
			"participant_count": m.ParticipantCount,
		})
		s.notify(ctx, m)
	}
	return m, nil
}

// Count returns the number of stored markets.
func (s *MarketService) Count(ctx context.Context) (int64, error) {
	n, err := s.markets.CountMarkets(ctx)
	if err != nil {
		return 0, fmt.Errorf("market_service: count: %w", err)
	}
	return n, nil
}

func (s *MarketService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		// The entry expires on its own.
		s.logger.WarnContext(ctx, "cache invalidate failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MarketService) recordAudit(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// notify sends the alert in the background so a slow webhook never holds
// up the request.
func (s *MarketService) notify(ctx context.Context, m domain.Market) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	go func() {
		defer cancel()
		if err := s.notifier.NotifyMarket(ctx, m); err != nil {
			s.logger.WarnContext(ctx, "notify failed",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()),
			)
		}
	}()
}
