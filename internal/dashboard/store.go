package dashboard

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// legacyProviders maps retired provider identifiers to their replacement.
// Applied once during hydration; migrated state is re-persisted immediately.
var legacyProviders = map[string]string{
	"indian-api": "alpha-vantage",
	"indian":     "alpha-vantage",
}

// Store is the single source of truth for widgets, templates, and the
// drag-enabled toggle. All mutations update memory first and then persist
// the full state synchronously; storage failures are logged and swallowed,
// so the in-memory state stays authoritative for the session.
type Store struct {
	mu          sync.Mutex
	storage     Storage
	log         zerolog.Logger
	widgets     []Widget
	templates   []Template
	dragEnabled bool
	hydrateOnce sync.Once

	// Injectable for tests
	now   func() time.Time
	newID func() string
}

// NewStore creates a widget store over storage. Call Hydrate before first
// use to load persisted state.
func NewStore(storage Storage, log zerolog.Logger) *Store {
	return &Store{
		storage: storage,
		log:     log.With().Str("component", "dashboard").Logger(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Hydrate loads persisted widgets and templates. Idempotent: runs at most
// once per Store; later calls are no-ops.
func (s *Store) Hydrate() {
	s.hydrateOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.hydrateWidgets()
		s.hydrateTemplates()
	})
}

// hydrateWidgets reads and validates the versioned widgets envelope.
// A version mismatch or structural violation deletes the entire blob; the
// store then starts empty. Widgets are populated only when the persisted
// list is non-empty, so an empty blob and an absent blob behave the same.
func (s *Store) hydrateWidgets() {
	data, err := s.storage.Read(WidgetsKey)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read persisted widgets")
		return
	}
	if data == nil {
		return
	}

	var envelope struct {
		Version     int               `json:"version"`
		Widgets     []json.RawMessage `json:"widgets"`
		DragEnabled bool              `json:"dragEnabled"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil ||
		envelope.Version != SchemaVersion || envelope.Widgets == nil {
		s.log.Warn().Int("version", envelope.Version).Msg("Discarding incompatible persisted state")
		s.deleteKey(WidgetsKey)
		return
	}

	widgets := make([]Widget, 0, len(envelope.Widgets))
	dropped := 0
	migrated := false
	for _, raw := range envelope.Widgets {
		w, ok := parseWidget(raw)
		if !ok {
			dropped++
			continue
		}
		if provider, ok := w.Config["provider"].(string); ok {
			if replacement, legacy := legacyProviders[provider]; legacy {
				w.Config["provider"] = replacement
				w.UpdatedAt = s.now().UnixMilli()
				migrated = true
			}
		}
		widgets = append(widgets, w)
	}
	if dropped > 0 {
		s.log.Warn().Int("dropped", dropped).Msg("Dropped invalid persisted widgets")
	}

	s.dragEnabled = envelope.DragEnabled
	if len(widgets) > 0 {
		s.widgets = widgets
	}

	if migrated {
		s.log.Info().Msg("Migrated legacy provider references")
		s.persistWidgetsLocked()
	}
}

func (s *Store) hydrateTemplates() {
	data, err := s.storage.Read(TemplatesKey)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read persisted templates")
		return
	}
	if data == nil {
		return
	}

	var templates []Template
	if err := json.Unmarshal(data, &templates); err != nil {
		s.log.Warn().Err(err).Msg("Discarding corrupted templates")
		s.deleteKey(TemplatesKey)
		return
	}
	s.templates = templates
}

// AddWidget assigns a fresh id and timestamps, appends, and persists.
func (s *Store) AddWidget(payload WidgetPayload) Widget {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := s.now().UnixMilli()
	config := cloneConfig(payload.Config)
	if config == nil {
		config = map[string]interface{}{}
	}
	widget := Widget{
		ID:        s.newID(),
		Type:      payload.Type,
		Title:     payload.Title,
		Config:    config,
		CreatedAt: nowMs,
		UpdatedAt: nowMs,
	}
	s.widgets = append(s.widgets, widget)
	s.persistWidgetsLocked()
	return widget.withClonedConfig()
}

// RemoveWidget deletes the widget with the given id. Unknown ids are a
// silent no-op.
func (s *Store) RemoveWidget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.widgets[:0]
	for _, w := range s.widgets {
		if w.ID != id {
			kept = append(kept, w)
		}
	}
	s.widgets = kept
	s.persistWidgetsLocked()
}

// WidgetPatch is a partial widget update. A nil Title leaves the title
// unchanged; Config entries are shallow-merged into the existing config.
type WidgetPatch struct {
	Title  *string                `json:"title"`
	Config map[string]interface{} `json:"config"`
}

// UpdateWidget applies patch to the widget with the given id and bumps its
// updatedAt. Returns false if no widget has that id.
func (s *Store) UpdateWidget(id string, patch WidgetPatch) (Widget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.widgets {
		if s.widgets[i].ID != id {
			continue
		}
		if patch.Title != nil {
			s.widgets[i].Title = *patch.Title
		}
		for k, v := range patch.Config {
			s.widgets[i].Config[k] = v
		}
		s.widgets[i].UpdatedAt = s.now().UnixMilli()
		s.persistWidgetsLocked()
		return s.widgets[i].withClonedConfig(), true
	}
	return Widget{}, false
}

// ReorderWidgets moves the widget at from to position to. Out-of-range
// indices or from == to are a silent no-op.
func (s *Store) ReorderWidgets(from, to int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.widgets)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		return
	}

	moved := s.widgets[from]
	s.widgets = append(s.widgets[:from], s.widgets[from+1:]...)
	s.widgets = append(s.widgets[:to], append([]Widget{moved}, s.widgets[to:]...)...)

	s.persistWidgetsLocked()
	s.persistWidgetOrderLocked()
}

// ImportWidgets replaces the entire widget list. Entries failing the
// widget invariant are silently dropped. Returns the number imported.
func (s *Store) ImportWidgets(widgets []Widget) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	valid := make([]Widget, 0, len(widgets))
	for _, w := range widgets {
		if w.ID == "" || w.Config == nil {
			continue
		}
		w.Config = cloneConfig(w.Config)
		valid = append(valid, w)
	}
	s.widgets = valid
	s.persistWidgetsLocked()
	return len(valid)
}

// ClearWidgets empties the widget list and persists the empty state.
func (s *Store) ClearWidgets() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.widgets = nil
	s.persistWidgetsLocked()
}

// SaveTemplate snapshots the current widget list (stripping ids and
// timestamps) as a named template.
func (s *Store) SaveTemplate(name, description string) Template {
	s.mu.Lock()
	defer s.mu.Unlock()

	payloads := make([]WidgetPayload, 0, len(s.widgets))
	for _, w := range s.widgets {
		payloads = append(payloads, WidgetPayload{
			Type:   w.Type,
			Title:  w.Title,
			Config: cloneConfig(w.Config),
		})
	}
	template := Template{
		ID:          s.newID(),
		Name:        name,
		Description: description,
		Widgets:     payloads,
	}
	s.templates = append(s.templates, template)
	s.persistTemplatesLocked()
	return template
}

// LoadTemplate replaces the widget list with freshly-id'd, freshly-
// timestamped copies of the template's payloads. Unknown template ids are
// a silent no-op; returns whether the template was found.
func (s *Store) LoadTemplate(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.templates {
		if t.ID != id {
			continue
		}
		nowMs := s.now().UnixMilli()
		widgets := make([]Widget, 0, len(t.Widgets))
		for i, p := range t.Widgets {
			config := cloneConfig(p.Config)
			if config == nil {
				config = map[string]interface{}{}
			}
			// Index offset keeps relative ordering stable on timestamp ties
			widgets = append(widgets, Widget{
				ID:        s.newID(),
				Type:      p.Type,
				Title:     p.Title,
				Config:    config,
				CreatedAt: nowMs + int64(i),
				UpdatedAt: nowMs + int64(i),
			})
		}
		s.widgets = widgets
		s.persistWidgetsLocked()
		return true
	}
	return false
}

// RemoveTemplate deletes the template with the given id.
func (s *Store) RemoveTemplate(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.templates[:0]
	for _, t := range s.templates {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	s.templates = kept
	s.persistTemplatesLocked()
}

// SetDragEnabled toggles whether the UI permits reordering. Persisted in
// the shared widgets envelope.
func (s *Store) SetDragEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dragEnabled = enabled
	s.persistWidgetsLocked()
}

// Widgets returns a snapshot of the current widget list in display order.
// Configs are deep-copied so callers (and concurrent JSON encoding) never
// alias store-internal maps.
func (s *Store) Widgets() []Widget {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Widget, 0, len(s.widgets))
	for _, w := range s.widgets {
		out = append(out, w.withClonedConfig())
	}
	return out
}

// Templates returns a snapshot of the current template list with
// deep-copied payload configs.
func (s *Store) Templates() []Template {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Template, 0, len(s.templates))
	for _, t := range s.templates {
		payloads := make([]WidgetPayload, 0, len(t.Widgets))
		for _, p := range t.Widgets {
			p.Config = cloneConfig(p.Config)
			payloads = append(payloads, p)
		}
		t.Widgets = payloads
		out = append(out, t)
	}
	return out
}

// DragEnabled reports whether reordering is enabled.
func (s *Store) DragEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dragEnabled
}

// persistWidgetsLocked writes the full versioned envelope. Callers hold mu.
func (s *Store) persistWidgetsLocked() {
	state := PersistedState{
		Version:     SchemaVersion,
		Widgets:     s.widgets,
		DragEnabled: s.dragEnabled,
	}
	if state.Widgets == nil {
		state.Widgets = []Widget{}
	}
	data, err := json.Marshal(state)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to marshal widget state")
		return
	}
	if err := s.storage.Write(WidgetsKey, data); err != nil {
		s.log.Warn().Err(err).Msg("Failed to persist widgets")
	}
}

func (s *Store) persistWidgetOrderLocked() {
	order := make([]string, 0, len(s.widgets))
	for _, w := range s.widgets {
		order = append(order, w.ID)
	}
	data, err := json.Marshal(order)
	if err != nil {
		return
	}
	if err := s.storage.Write(WidgetOrderKey, data); err != nil {
		s.log.Warn().Err(err).Msg("Failed to persist widget order")
	}
}

func (s *Store) persistTemplatesLocked() {
	templates := s.templates
	if templates == nil {
		templates = []Template{}
	}
	data, err := json.Marshal(templates)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to marshal templates")
		return
	}
	if err := s.storage.Write(TemplatesKey, data); err != nil {
		s.log.Warn().Err(err).Msg("Failed to persist templates")
	}
}

func (s *Store) deleteKey(key string) {
	if err := s.storage.Delete(key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to delete persisted state")
	}
}

// withClonedConfig returns a copy of w whose config no longer aliases the
// store's map.
func (w Widget) withClonedConfig() Widget {
	w.Config = cloneConfig(w.Config)
	return w
}

func cloneConfig(config map[string]interface{}) map[string]interface{} {
	if config == nil {
		return nil
	}
	out := make(map[string]interface{}, len(config))
	for k, v := range config {
		out[k] = v
	}
	return out
}
