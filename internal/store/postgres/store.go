package postgres

import "github.com/alanyoungcy/predictmarket/internal/domain"

// Store bundles the market and bet stores over one client so it satisfies
// domain.Store.
type Store struct {
	*MarketStore
	*BetStore
	client *Client
}

// NewStore builds a Store on top of an open client. Closing the store closes
// the client.
func NewStore(client *Client) *Store {
	return &Store{
		MarketStore: NewMarketStore(client.Pool()),
		BetStore:    NewBetStore(client.Pool()),
		client:      client,
	}
}

func (s *Store) Close() error {
	s.client.Close()
	return nil
}

var _ domain.Store = (*Store)(nil)
