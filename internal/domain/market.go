package domain

import (
	"strings"
	"time"
)

// Category groups markets by subject.
type Category string

const (
	CategoryCrypto     Category = "crypto"
	CategoryPolitics   Category = "politics"
	CategorySports     Category = "sports"
	CategoryTechnology Category = "technology"
	CategoryFinance    Category = "finance"
	CategoryOther      Category = "other"
)

// Categories lists every accepted category in display order.
var Categories = []Category{
	CategoryCrypto,
	CategoryPolitics,
	CategorySports,
	CategoryTechnology,
	CategoryFinance,
	CategoryOther,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusPending   MarketStatus = "pending"
	MarketStatusActive    MarketStatus = "active"
	MarketStatusResolved  MarketStatus = "resolved"
	MarketStatusCancelled MarketStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s MarketStatus) Valid() bool {
	switch s {
	case MarketStatusPending, MarketStatusActive, MarketStatusResolved, MarketStatusCancelled:
		return true
	}
	return false
}

// Final reports whether the market can no longer change outcome.
func (s MarketStatus) Final() bool {
	return s == MarketStatusResolved || s == MarketStatusCancelled
}

// Outcome is one possible resolution of a market. Probability is a display
// hint in percent and is not required to sum to 100 across outcomes.
type Outcome struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Probability *float64 `json:"probability,omitempty"`
}

// Market is a single prediction question with a fixed set of outcomes.
type Market struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Description      string       `json:"description,omitempty"`
	Category         Category     `json:"category"`
	Outcomes         []Outcome    `json:"outcomes"`
	Status           MarketStatus `json:"status"`
	ResolutionDate   string       `json:"resolutionDate"`
	CreatedAt        time.Time    `json:"createdAt"`
	CreatorAddress   string       `json:"creatorAddress"`
	TotalVolume      float64      `json:"totalVolume"`
	ParticipantCount int          `json:"participantCount"`
	WinningOutcomeID string       `json:"winningOutcomeId,omitempty"`
	ImageURL         string       `json:"imageUrl,omitempty"`
	ChainMarketID    string       `json:"chainMarketId,omitempty"`
	TransactionID    string       `json:"transactionId,omitempty"`
}

// HasOutcome reports whether id names one of the market's outcomes.
func (m Market) HasOutcome(id string) bool {
	for _, o := range m.Outcomes {
		if o.ID == id {
			return true
		}
	}
	return false
}

// ResolvesAt parses ResolutionDate, accepting a plain date or RFC 3339.
// The zero time is returned when the value cannot be parsed.
func (m Market) ResolvesAt() time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, m.ResolutionDate); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Matches reports whether the market satisfies every set field of f.
// Pagination and ordering are not considered.
func (m Market) Matches(f MarketFilter) bool {
	if f.Category != "" && m.Category != f.Category {
		return false
	}
	if f.Status != "" && m.Status != f.Status {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(m.Title), q) &&
			!strings.Contains(strings.ToLower(m.Description), q) {
			return false
		}
	}
	return true
}

// Market size limits.
const (
	MinTitleLen       = 5
	MaxTitleLen       = 200
	MaxDescriptionLen = 1000
	MinOutcomes       = 2
	MaxOutcomes       = 10
)

// NewMarket is the inbound payload for market creation.
type NewMarket struct {
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Category       Category  `json:"category"`
	Outcomes       []Outcome `json:"outcomes"`
	ResolutionDate string    `json:"resolutionDate"`
	CreatorAddress string    `json:"creatorAddress"`
	ImageURL       string    `json:"imageUrl"`
	ChainMarketID  string    `json:"chainMarketId"`
	TransactionID  string    `json:"transactionId"`
}

// Validate trims text fields in place and checks every constraint, returning
// a *ValidationError listing all failures.
func (n *NewMarket) Validate() error {
	n.Title = strings.TrimSpace(n.Title)
	n.Description = strings.TrimSpace(n.Description)
	n.CreatorAddress = strings.TrimSpace(n.CreatorAddress)
	n.ResolutionDate = strings.TrimSpace(n.ResolutionDate)
	n.ChainMarketID = strings.TrimSpace(n.ChainMarketID)

	v := &Validator{}
	v.Check(between(n.Title, MinTitleLen, MaxTitleLen), "title", "title must be between 5 and 200 characters")
	v.Check(runeLen(n.Description) <= MaxDescriptionLen, "description", "description must be at most 1000 characters")
	v.Check(n.Category.Valid(), "category", "category must be one of crypto, politics, sports, technology, finance, other")
	v.Check(len(n.Outcomes) >= MinOutcomes, "outcomes", "market must have at least 2 outcomes")
	v.Check(len(n.Outcomes) <= MaxOutcomes, "outcomes", "market cannot have more than 10 outcomes")
	v.Check(n.ResolutionDate != "", "resolutionDate", "resolution date is required")
	v.Check(n.CreatorAddress != "", "creatorAddress", "creator address is required")
	if n.ChainMarketID != "" {
		v.Check(IsChainID(n.ChainMarketID), "chainMarketId", "chain market id must be a decimal number")
	}

	seen := make(map[string]bool, len(n.Outcomes))
	for i := range n.Outcomes {
		o := &n.Outcomes[i]
		o.ID = strings.TrimSpace(o.ID)
		o.Label = strings.TrimSpace(o.Label)
		field := outcomeField(i)
		v.Check(o.ID != "", field+".id", "outcome id is required")
		v.Check(o.Label != "", field+".label", "outcome label is required")
		if o.ID != "" {
			v.Check(!seen[o.ID], field+".id", "outcome id must be unique")
			seen[o.ID] = true
		}
		if o.Probability != nil {
			p := *o.Probability
			v.Check(p >= 0 && p <= 100, field+".probability", "probability must be between 0 and 100")
		}
	}
	return v.Err()
}

// Build turns a validated payload into an active market with zero aggregates.
func (n NewMarket) Build(id string, now time.Time) Market {
	outcomes := make([]Outcome, len(n.Outcomes))
	copy(outcomes, n.Outcomes)
	return Market{
		ID:             id,
		Title:          n.Title,
		Description:    n.Description,
		Category:       n.Category,
		Outcomes:       outcomes,
		Status:         MarketStatusActive,
		ResolutionDate: n.ResolutionDate,
		CreatedAt:      now.UTC(),
		CreatorAddress: n.CreatorAddress,
		ImageURL:       n.ImageURL,
		ChainMarketID:  n.ChainMarketID,
		TransactionID:  n.TransactionID,
	}
}

// MarketUpdate is a partial update. Nil fields are left unchanged.
type MarketUpdate struct {
	Status           *MarketStatus `json:"status"`
	WinningOutcomeID *string       `json:"winningOutcomeId"`
	TotalVolume      *float64      `json:"totalVolume"`
	ParticipantCount *int          `json:"participantCount"`
}

// Empty reports whether the update changes nothing.
func (u MarketUpdate) Empty() bool {
	return u.Status == nil && u.WinningOutcomeID == nil && u.TotalVolume == nil && u.ParticipantCount == nil
}

// Validate checks the update against the current market state.
func (u MarketUpdate) Validate(current Market) error {
	v := &Validator{}
	v.Check(!u.Empty(), "body", "at least one field must be provided")
	if u.Status != nil {
		v.Check(u.Status.Valid(), "status", "status must be one of pending, active, resolved, cancelled")
	}
	if u.WinningOutcomeID != nil {
		v.Check(current.HasOutcome(*u.WinningOutcomeID), "winningOutcomeId", "winning outcome must be one of the market's outcomes")
	}
	if u.TotalVolume != nil {
		v.Check(*u.TotalVolume >= 0, "totalVolume", "total volume must not be negative")
	}
	if u.ParticipantCount != nil {
		v.Check(*u.ParticipantCount >= 0, "participantCount", "participant count must not be negative")
	}
	return v.Err()
}

// Apply returns m with the update's set fields copied in.
func (u MarketUpdate) Apply(m Market) Market {
	if u.Status != nil {
		m.Status = *u.Status
	}
	if u.WinningOutcomeID != nil {
		m.WinningOutcomeID = *u.WinningOutcomeID
	}
	if u.TotalVolume != nil {
		m.TotalVolume = *u.TotalVolume
	}
	if u.ParticipantCount != nil {
		m.ParticipantCount = *u.ParticipantCount
	}
	return m
}

// MarketSort selects the ordering of a market listing.
type MarketSort string

const (
	SortByVolume     MarketSort = "volume"
	SortByNewest     MarketSort = "newest"
	SortByEndingSoon MarketSort = "ending_soon"
)

// Valid reports whether s is a known ordering.
func (s MarketSort) Valid() bool {
	return s == SortByVolume || s == SortByNewest || s == SortByEndingSoon
}

// MarketFilter narrows a market listing.
type MarketFilter struct {
	Category Category
	Status   MarketStatus
	Search   string
	SortBy   MarketSort
	ListOpts
}
