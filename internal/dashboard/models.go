// Package dashboard owns the widget/template state store: persistence,
// schema versioning, defensive validation, and the one hard-coded provider
// migration applied during hydration.
package dashboard

import "encoding/json"

// SchemaVersion is the persisted-envelope version. Any stored blob whose
// version differs is discarded wholesale; there is no cross-version
// migration.
const SchemaVersion = 1

// Storage keys. WidgetOrderKey is a denormalized id-order array written
// opportunistically for external tooling.
const (
	WidgetsKey     = "stock_dashboard_widgets"
	TemplatesKey   = "stock_dashboard_templates"
	WidgetOrderKey = "stock_dashboard_widget_order"
)

// Widget types. Config shape depends on the type; the store treats config
// as an opaque object either way.
const (
	TypePriceCard        = "price-card"
	TypeTable            = "table"
	TypeChart            = "chart"
	TypeStockPrice       = "stock-price"
	TypePortfolioSummary = "portfolio-summary"
	TypeMarketNews       = "market-news"
	TypePriceChart       = "price-chart"
	TypeCustom           = "custom"
)

// Widget is a persisted dashboard unit. Timestamps are epoch milliseconds;
// UpdatedAt is bumped on every mutation.
type Widget struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Config    map[string]interface{} `json:"config"`
	CreatedAt int64                  `json:"createdAt"`
	UpdatedAt int64                  `json:"updatedAt"`
}

// WidgetPayload is the creation shape: a widget before id and timestamps
// are assigned. Templates and imports use the same shape.
type WidgetPayload struct {
	Type   string                 `json:"type"`
	Title  string                 `json:"title"`
	Config map[string]interface{} `json:"config"`
}

// Template is a named, reusable bundle of widget payloads.
type Template struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Widgets     []WidgetPayload `json:"widgets"`
}

// PersistedState is the versioned envelope written to durable storage as a
// whole on every widget mutation.
type PersistedState struct {
	Version     int      `json:"version"`
	Widgets     []Widget `json:"widgets"`
	DragEnabled bool     `json:"dragEnabled,omitempty"`
}

// parseWidget validates one raw persisted element against the widget
// invariant: non-empty string id, string type and title, object config,
// numeric timestamps. Non-conforming elements are dropped by the caller.
func parseWidget(raw json.RawMessage) (Widget, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Widget{}, false
	}

	var w Widget

	if err := json.Unmarshal(fields["id"], &w.ID); err != nil || w.ID == "" {
		return Widget{}, false
	}
	if err := json.Unmarshal(fields["type"], &w.Type); err != nil {
		return Widget{}, false
	}
	if err := json.Unmarshal(fields["title"], &w.Title); err != nil {
		return Widget{}, false
	}
	if err := json.Unmarshal(fields["config"], &w.Config); err != nil || w.Config == nil {
		return Widget{}, false
	}
	if err := json.Unmarshal(fields["createdAt"], &w.CreatedAt); err != nil {
		return Widget{}, false
	}
	if err := json.Unmarshal(fields["updatedAt"], &w.UpdatedAt); err != nil {
		return Widget{}, false
	}

	return w, true
}
