package dashboard

// BuiltinTemplates are the static starter layouts. They are not persisted;
// user-saved templates live alongside them under their own storage key.
func BuiltinTemplates() []Template {
	return []Template{
		{
			ID:          "builtin-starter",
			Name:        "Starter",
			Description: "A single price card to get going",
			Widgets: []WidgetPayload{
				{
					Type:  TypePriceCard,
					Title: "Apple",
					Config: map[string]interface{}{
						"symbol":          "AAPL",
						"provider":        "alpha-vantage",
						"refreshInterval": 60,
					},
				},
			},
		},
		{
			ID:          "builtin-tech-watchlist",
			Name:        "Tech Watchlist",
			Description: "Price cards for the big tech names",
			Widgets: []WidgetPayload{
				{
					Type:  TypePriceCard,
					Title: "Apple",
					Config: map[string]interface{}{
						"symbol":          "AAPL",
						"provider":        "alpha-vantage",
						"refreshInterval": 60,
					},
				},
				{
					Type:  TypePriceCard,
					Title: "Microsoft",
					Config: map[string]interface{}{
						"symbol":          "MSFT",
						"provider":        "finnhub",
						"refreshInterval": 60,
					},
				},
				{
					Type:  TypePriceChart,
					Title: "Apple - Daily",
					Config: map[string]interface{}{
						"symbol": "AAPL",
						"range":  "3m",
					},
				},
			},
		},
		{
			ID:          "builtin-overview",
			Name:        "Portfolio Overview",
			Description: "Summary, table, and news",
			Widgets: []WidgetPayload{
				{
					Type:   TypePortfolioSummary,
					Title:  "Portfolio",
					Config: map[string]interface{}{},
				},
				{
					Type:  TypeTable,
					Title: "Holdings",
					Config: map[string]interface{}{
						"symbols": []interface{}{"AAPL", "MSFT", "GOOG"},
						"fields":  []interface{}{"price", "open", "high", "low"},
					},
				},
				{
					Type:   TypeMarketNews,
					Title:  "Market News",
					Config: map[string]interface{}{"limit": 10},
				},
			},
		},
	}
}
