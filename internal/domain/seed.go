package domain

import "time"

func pct(v float64) *float64 { return &v }

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

// DemoMarkets returns the fixed set of markets used to populate an empty
// store for local development.
func DemoMarkets() []Market {
	return []Market{
		{
			ID:          "1",
			Title:       "Will Bitcoin exceed $150,000 by December 2026?",
			Description: "This market resolves YES if Bitcoin reaches $150,000 or higher on any major exchange (Coinbase, Binance, Kraken) for at least 24 hours.",
			Category:    CategoryCrypto,
			Outcomes: []Outcome{
				{ID: "1a", Label: "Yes", Probability: pct(65)},
				{ID: "1b", Label: "No", Probability: pct(35)},
			},
			Status:           MarketStatusActive,
			ResolutionDate:   "2026-12-31",
			CreatedAt:        day("2026-01-15"),
			CreatorAddress:   "aleo1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq3ljyzc",
			TotalVolume:      125000,
			ParticipantCount: 847,
		},
		{
			ID:          "2",
			Title:       "Will Ethereum 3.0 launch in Q1 2027?",
			Description: "Market resolves based on official Ethereum Foundation announcement of mainnet launch.",
			Category:    CategoryCrypto,
			Outcomes: []Outcome{
				{ID: "2a", Label: "Yes", Probability: pct(42)},
				{ID: "2b", Label: "No", Probability: pct(58)},
			},
			Status:           MarketStatusActive,
			ResolutionDate:   "2027-03-31",
			CreatedAt:        day("2026-01-20"),
			CreatorAddress:   "aleo1demo456xyz789abc123def456ghi789jkl012mno345pqr678stu901vwx",
			TotalVolume:      89500,
			ParticipantCount: 623,
		},
		{
			ID:          "3",
			Title:       "Who will win the 2028 US Presidential Election?",
			Description: "Market resolves based on Electoral College results certified by Congress.",
			Category:    CategoryPolitics,
			Outcomes: []Outcome{
				{ID: "3a", Label: "Democratic Candidate", Probability: pct(48)},
				{ID: "3b", Label: "Republican Candidate", Probability: pct(47)},
				{ID: "3c", Label: "Third Party", Probability: pct(5)},
			},
			Status:           MarketStatusActive,
			ResolutionDate:   "2028-11-05",
			CreatedAt:        day("2026-01-10"),
			CreatorAddress:   "aleo1demo789xyz123abc456def789ghi012jkl345mno678pqr901stu234vwx",
			TotalVolume:      450000,
			ParticipantCount: 2150,
		},
		{
			ID:          "4",
			Title:       "Will Apple release AR glasses in 2026?",
			Description: "Resolves YES if Apple announces consumer AR glasses this year.",
			Category:    CategoryTechnology,
			Outcomes: []Outcome{
				{ID: "4a", Label: "Yes", Probability: pct(78)},
				{ID: "4b", Label: "No", Probability: pct(22)},
			},
			Status:           MarketStatusActive,
			ResolutionDate:   "2026-12-31",
			CreatedAt:        day("2026-01-18"),
			CreatorAddress:   "aleo1demo321xyz456abc789def012ghi345jkl678mno901pqr234stu567vwx",
			TotalVolume:      67800,
			ParticipantCount: 412,
		},
		{
			ID:          "5",
			Title:       "Super Bowl 2027 Champion",
			Description: "Which team will win Super Bowl LXI?",
			Category:    CategorySports,
			Outcomes: []Outcome{
				{ID: "5a", Label: "Kansas City Chiefs", Probability: pct(18)},
				{ID: "5b", Label: "San Francisco 49ers", Probability: pct(15)},
				{ID: "5c", Label: "Philadelphia Eagles", Probability: pct(12)},
				{ID: "5d", Label: "Other Team", Probability: pct(55)},
			},
			Status:           MarketStatusActive,
			ResolutionDate:   "2027-02-14",
			CreatedAt:        day("2026-01-22"),
			CreatorAddress:   "aleo1demo654xyz789abc012def345ghi678jkl901mno234pqr567stu890vwx",
			TotalVolume:      234000,
			ParticipantCount: 1580,
		},
		{
			ID:          "6",
			Title:       "Will the Fed cut rates below 3% by end of 2026?",
			Description: "Based on Federal Reserve official announcements.",
			Category:    CategoryFinance,
			Outcomes: []Outcome{
				{ID: "6a", Label: "Yes", Probability: pct(55)},
				{ID: "6b", Label: "No", Probability: pct(45)},
			},
			Status:           MarketStatusActive,
			ResolutionDate:   "2026-12-31",
			CreatedAt:        day("2026-01-12"),
			CreatorAddress:   "aleo1demo987xyz012abc345def678ghi901jkl234mno567pqr890stu123vwx",
			TotalVolume:      178000,
			ParticipantCount: 934,
		},
	}
}
