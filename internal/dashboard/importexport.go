package dashboard

import (
	"encoding/json"
	"errors"
)

// ExportFile is the canonical export shape. Imports also accept a bare
// widget array, and items missing id/timestamps are treated as creation
// payloads.
type ExportFile struct {
	Widgets []Widget `json:"widgets"`
}

// ExportWidgets renders widgets as an export document.
func ExportWidgets(widgets []Widget) ([]byte, error) {
	if widgets == nil {
		widgets = []Widget{}
	}
	return json.MarshalIndent(ExportFile{Widgets: widgets}, "", "  ")
}

// ParseImport decodes an import document into widgets. Accepted shapes:
// {"widgets": [...]}, a bare array of widgets, or payload-shaped items
// (no id/timestamps) which get synthesized ids and index-offset timestamps
// so relative ordering survives timestamp ties. Elements that are neither
// a valid widget nor a valid payload are dropped.
func ParseImport(data []byte, nowMs int64, newID func() string) ([]Widget, error) {
	var wrapped struct {
		Widgets []json.RawMessage `json:"widgets"`
	}
	var elements []json.RawMessage

	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Widgets != nil {
		elements = wrapped.Widgets
	} else if err := json.Unmarshal(data, &elements); err != nil {
		return nil, errors.New("unrecognized import format")
	}

	widgets := make([]Widget, 0, len(elements))
	for i, raw := range elements {
		if w, ok := parseWidget(raw); ok {
			widgets = append(widgets, w)
			continue
		}
		if w, ok := parsePayloadElement(raw, nowMs+int64(i), newID); ok {
			widgets = append(widgets, w)
		}
	}
	return widgets, nil
}

// parsePayloadElement accepts a widget-creation payload: string type and
// title plus an object config, with no id or timestamps required.
func parsePayloadElement(raw json.RawMessage, ts int64, newID func() string) (Widget, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Widget{}, false
	}

	var w Widget
	if err := json.Unmarshal(fields["type"], &w.Type); err != nil || w.Type == "" {
		return Widget{}, false
	}
	if err := json.Unmarshal(fields["title"], &w.Title); err != nil {
		return Widget{}, false
	}
	if rawConfig, ok := fields["config"]; ok {
		if err := json.Unmarshal(rawConfig, &w.Config); err != nil || w.Config == nil {
			return Widget{}, false
		}
	} else {
		w.Config = map[string]interface{}{}
	}

	w.ID = newID()
	w.CreatedAt = ts
	w.UpdatedAt = ts
	return w, true
}
