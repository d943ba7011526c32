package dashboard

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() func() string {
	counter := 0
	return func() string {
		counter++
		return fmt.Sprintf("gen-%d", counter)
	}
}

func TestParseImportWrappedShape(t *testing.T) {
	data := []byte(`{"widgets": [
		{"id": "w1", "type": "price-card", "title": "A", "config": {"symbol": "AAPL"}, "createdAt": 10, "updatedAt": 10}
	]}`)

	widgets, err := ParseImport(data, 1000, sequentialIDs())
	require.NoError(t, err)
	require.Len(t, widgets, 1)
	assert.Equal(t, "w1", widgets[0].ID)
	assert.Equal(t, int64(10), widgets[0].CreatedAt)
}

func TestParseImportBareArray(t *testing.T) {
	data := []byte(`[
		{"id": "w1", "type": "price-card", "title": "A", "config": {}, "createdAt": 10, "updatedAt": 10},
		{"id": "w2", "type": "table", "title": "B", "config": {}, "createdAt": 11, "updatedAt": 11}
	]`)

	widgets, err := ParseImport(data, 1000, sequentialIDs())
	require.NoError(t, err)
	assert.Len(t, widgets, 2)
}

func TestParseImportPayloadShapeSynthesizesIdentity(t *testing.T) {
	data := []byte(`[
		{"type": "price-card", "title": "A", "config": {"symbol": "AAPL"}},
		{"type": "table", "title": "B"}
	]`)

	widgets, err := ParseImport(data, 1000, sequentialIDs())
	require.NoError(t, err)
	require.Len(t, widgets, 2)

	assert.Equal(t, "gen-1", widgets[0].ID)
	assert.Equal(t, "gen-2", widgets[1].ID)
	// Index-offset timestamps preserve relative ordering on ties
	assert.Equal(t, int64(1000), widgets[0].CreatedAt)
	assert.Equal(t, int64(1001), widgets[1].CreatedAt)
	assert.NotNil(t, widgets[1].Config)
}

func TestParseImportDropsInvalidElements(t *testing.T) {
	data := []byte(`[
		{"id": "good", "type": "price-card", "title": "A", "config": {}, "createdAt": 1, "updatedAt": 1},
		{"title": "no type"},
		42,
		{"type": "price-card", "title": "payload ok"}
	]`)

	widgets, err := ParseImport(data, 1000, sequentialIDs())
	require.NoError(t, err)
	require.Len(t, widgets, 2)
	assert.Equal(t, "good", widgets[0].ID)
	assert.Equal(t, "payload ok", widgets[1].Title)
}

func TestParseImportUnrecognizedFormat(t *testing.T) {
	_, err := ParseImport([]byte(`"just a string"`), 1000, sequentialIDs())
	require.Error(t, err)

	_, err = ParseImport([]byte(`not json`), 1000, sequentialIDs())
	require.Error(t, err)
}

func TestExportImportRoundTrip(t *testing.T) {
	original := []Widget{
		{ID: "w1", Type: TypePriceCard, Title: "A", Config: map[string]interface{}{"symbol": "AAPL"}, CreatedAt: 10, UpdatedAt: 20},
	}

	data, err := ExportWidgets(original)
	require.NoError(t, err)

	widgets, err := ParseImport(data, 1000, sequentialIDs())
	require.NoError(t, err)
	require.Len(t, widgets, 1)
	assert.Equal(t, original[0].ID, widgets[0].ID)
	assert.Equal(t, original[0].Title, widgets[0].Title)
	assert.Equal(t, original[0].CreatedAt, widgets[0].CreatedAt)
	assert.Equal(t, original[0].UpdatedAt, widgets[0].UpdatedAt)
}
