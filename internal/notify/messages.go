package notify

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

// MarketMessage renders the alert for a market lifecycle event. It returns
// the event type, a title and a body.
func MarketMessage(m domain.Market) (event, title, body string) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", m.Title)
	fmt.Fprintf(&b, "Category: %s | Volume: %.2f | Participants: %d\n", m.Category, m.TotalVolume, m.ParticipantCount)

	switch m.Status {
	case domain.MarketStatusResolved:
		event = EventMarketResolved
		title = "Market resolved"
		fmt.Fprintf(&b, "Winning outcome: %s", outcomeLabel(m, m.WinningOutcomeID))
	case domain.MarketStatusCancelled:
		event = EventMarketCancelled
		title = "Market cancelled"
		b.WriteString("All bets on this market are void.")
	default:
		event = EventMarketCreated
		title = "New market"
		labels := make([]string, len(m.Outcomes))
		for i, o := range m.Outcomes {
			labels[i] = o.Label
		}
		fmt.Fprintf(&b, "Outcomes: %s\nResolves: %s", strings.Join(labels, ", "), m.ResolutionDate)
	}
	return event, title, b.String()
}

func outcomeLabel(m domain.Market, id string) string {
	for _, o := range m.Outcomes {
		if o.ID == id {
			return o.Label
		}
	}
	if id == "" {
		return "n/a"
	}
	return id
}
