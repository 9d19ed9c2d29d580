package mpp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pageFields(t *testing.T, body string) map[string]json.RawMessage {
	t.Helper()
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	return raw
}

func TestParsePage(t *testing.T) {
	body := `{
		"next": "https://extraviados.mx/api/v1/mpps/?page=2",
		"previous": null,
		"count": 3,
		"results": [` + sampleRecord + `,` + sampleRecord + `]
	}`

	page, err := ParsePage(pageFields(t, body))
	require.NoError(t, err)

	require.NotNil(t, page.Next)
	assert.Equal(t, "https://extraviados.mx/api/v1/mpps/?page=2", *page.Next)
	assert.Nil(t, page.Previous)
	assert.Equal(t, 3, page.Count)
	assert.Len(t, page.Results, 2)
	assert.Equal(t, "jane-doe", page.Results[1].Slug)
}

func TestParsePage_MissingKey(t *testing.T) {
	for _, key := range []string{"results", "next", "previous", "count"} {
		t.Run(key, func(t *testing.T) {
			raw := pageFields(t, `{"next": null, "previous": null, "count": 0, "results": []}`)
			delete(raw, key)

			_, err := ParsePage(raw)

			var schemaErr SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Equal(t, key, schemaErr.Key)
		})
	}
}

func TestParsePage_BadResultFailsPage(t *testing.T) {
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(sampleRecord), &rec))
	delete(rec, "slug")
	broken, err := json.Marshal(rec)
	require.NoError(t, err)

	body := `{"next": null, "previous": null, "count": 2, "results": [` + sampleRecord + `,` + string(broken) + `]}`

	_, err = ParsePage(pageFields(t, body))

	var schemaErr SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "slug", schemaErr.Key)
}
