// Package handlers provides HTTP handlers for dashboard widget and
// template management.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/stockdash/internal/dashboard"
)

// Handler provides HTTP handlers for dashboard endpoints.
type Handler struct {
	store *dashboard.Store
	log   zerolog.Logger
}

// NewHandler creates a new dashboard handler.
func NewHandler(store *dashboard.Store, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		log:   log.With().Str("handler", "dashboard").Logger(),
	}
}

// widgetsResponse is the GET /api/dashboard/widgets payload.
type widgetsResponse struct {
	Widgets     []dashboard.Widget `json:"widgets"`
	DragEnabled bool               `json:"dragEnabled"`
}

// HandleListWidgets handles GET /api/dashboard/widgets
func (h *Handler) HandleListWidgets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.log, widgetsResponse{
		Widgets:     h.store.Widgets(),
		DragEnabled: h.store.DragEnabled(),
	})
}

// HandleAddWidget handles POST /api/dashboard/widgets
func (h *Handler) HandleAddWidget(w http.ResponseWriter, r *http.Request) {
	var payload dashboard.WidgetPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if payload.Type == "" {
		http.Error(w, "Widget type is required", http.StatusBadRequest)
		return
	}

	widget := h.store.AddWidget(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, h.log, widget)
}

// HandleUpdateWidget handles PUT /api/dashboard/widgets/{id}
func (h *Handler) HandleUpdateWidget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch dashboard.WidgetPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	widget, ok := h.store.UpdateWidget(id, patch)
	if !ok {
		http.Error(w, "Widget not found", http.StatusNotFound)
		return
	}
	writeJSON(w, h.log, widget)
}

// HandleRemoveWidget handles DELETE /api/dashboard/widgets/{id}
func (h *Handler) HandleRemoveWidget(w http.ResponseWriter, r *http.Request) {
	h.store.RemoveWidget(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// HandleClearWidgets handles DELETE /api/dashboard/widgets
func (h *Handler) HandleClearWidgets(w http.ResponseWriter, r *http.Request) {
	h.store.ClearWidgets()
	w.WriteHeader(http.StatusNoContent)
}

type reorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// HandleReorderWidgets handles POST /api/dashboard/widgets/reorder
// Invalid indices are a silent no-op, mirroring the store contract.
func (h *Handler) HandleReorderWidgets(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.store.ReorderWidgets(req.From, req.To)
	writeJSON(w, h.log, widgetsResponse{
		Widgets:     h.store.Widgets(),
		DragEnabled: h.store.DragEnabled(),
	})
}

// HandleExport handles GET /api/dashboard/export
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	data, err := dashboard.ExportWidgets(h.store.Widgets())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to export widgets")
		http.Error(w, "Failed to export widgets", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="dashboard-export.json"`)
	_, _ = w.Write(data)
}

// HandleImport handles POST /api/dashboard/import
// The body may be a wrapped export, a bare widget array, or creation
// payloads; invalid entries are dropped.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	widgets, err := dashboard.ParseImport(body, time.Now().UnixMilli(), uuid.NewString)
	if err != nil {
		http.Error(w, "Unrecognized import format", http.StatusBadRequest)
		return
	}

	imported := h.store.ImportWidgets(widgets)
	writeJSON(w, h.log, map[string]interface{}{"imported": imported})
}

// HandleListTemplates handles GET /api/dashboard/templates
// Built-in templates are listed ahead of user-saved ones.
func (h *Handler) HandleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates := append(dashboard.BuiltinTemplates(), h.store.Templates()...)
	writeJSON(w, h.log, templates)
}

type saveTemplateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// HandleSaveTemplate handles POST /api/dashboard/templates
func (h *Handler) HandleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	var req saveTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Template name is required", http.StatusBadRequest)
		return
	}

	template := h.store.SaveTemplate(req.Name, req.Description)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, h.log, template)
}

// HandleLoadTemplate handles POST /api/dashboard/templates/{id}/load
// Built-in template ids resolve against the static list first.
func (h *Handler) HandleLoadTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	for _, t := range dashboard.BuiltinTemplates() {
		if t.ID == id {
			widgets := make([]dashboard.Widget, 0, len(t.Widgets))
			nowMs := time.Now().UnixMilli()
			for i, p := range t.Widgets {
				config := p.Config
				if config == nil {
					config = map[string]interface{}{}
				}
				widgets = append(widgets, dashboard.Widget{
					ID:        uuid.NewString(),
					Type:      p.Type,
					Title:     p.Title,
					Config:    config,
					CreatedAt: nowMs + int64(i),
					UpdatedAt: nowMs + int64(i),
				})
			}
			h.store.ImportWidgets(widgets)
			writeJSON(w, h.log, h.store.Widgets())
			return
		}
	}

	if !h.store.LoadTemplate(id) {
		http.Error(w, "Template not found", http.StatusNotFound)
		return
	}
	writeJSON(w, h.log, h.store.Widgets())
}

// HandleRemoveTemplate handles DELETE /api/dashboard/templates/{id}
func (h *Handler) HandleRemoveTemplate(w http.ResponseWriter, r *http.Request) {
	h.store.RemoveTemplate(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

type dragRequest struct {
	Enabled bool `json:"enabled"`
}

// HandleSetDragEnabled handles PUT /api/dashboard/drag
func (h *Handler) HandleSetDragEnabled(w http.ResponseWriter, r *http.Request) {
	var req dragRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.store.SetDragEnabled(req.Enabled)
	writeJSON(w, h.log, map[string]bool{"dragEnabled": h.store.DragEnabled()})
}

func writeJSON(w http.ResponseWriter, log zerolog.Logger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
