package domain

import "sort"

// SortMarkets orders markets in place. Volume sorts descending, newest by
// creation time descending, ending_soon by resolution date ascending with
// unparseable dates last. Ties keep their relative order.
func SortMarkets(markets []Market, by MarketSort) {
	switch by {
	case SortByNewest:
		sort.SliceStable(markets, func(i, j int) bool {
			return markets[i].CreatedAt.After(markets[j].CreatedAt)
		})
	case SortByEndingSoon:
		sort.SliceStable(markets, func(i, j int) bool {
			a, b := markets[i].ResolvesAt(), markets[j].ResolvesAt()
			if a.IsZero() != b.IsZero() {
				return b.IsZero()
			}
			return a.Before(b)
		})
	default:
		sort.SliceStable(markets, func(i, j int) bool {
			return markets[i].TotalVolume > markets[j].TotalVolume
		})
	}
}

// Page applies offset and limit to a slice. A non-positive limit returns
// everything after offset.
func Page[T any](items []T, opts ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return []T{}
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}
