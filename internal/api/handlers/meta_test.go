package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/commander-builder/internal/cards"
	"github.com/ramonehamilton/commander-builder/internal/metrics"
)

func newMetaFixture() *MetaHandler {
	return NewMetaHandler(&mockMeta{
		top:        []*cards.Card{{ID: "atraxa", Name: "Atraxa, Praetors' Voice"}},
		categories: []string{"ramp", "removal"},
		byCategory: map[string][]*cards.Card{
			"ramp":    {{ID: "ring", Name: "Sol Ring"}},
			"removal": {{ID: "swords", Name: "Swords to Plowshares"}},
		},
	})
}

func TestMetaHandler_TopCommanders(t *testing.T) {
	h := newMetaFixture()

	w := serve(t, http.MethodGet, "/commanders", "/commanders", h.GetTopCommanders, "")
	require.Equal(t, http.StatusOK, w.Code)
	var top []cards.Card
	decodeData(t, w, &top)
	require.Len(t, top, 1)
	assert.Equal(t, "atraxa", top[0].ID)
}

func TestMetaHandler_CommanderMeta(t *testing.T) {
	h := newMetaFixture()
	const pattern = "/commanders/{name}/meta"

	w := serve(t, http.MethodGet, pattern, "/commanders/Atraxa/meta", h.GetCommanderMeta, "")
	require.Equal(t, http.StatusOK, w.Code)
	var meta CommanderMeta
	decodeData(t, w, &meta)
	assert.Equal(t, "Atraxa", meta.Commander)
	assert.Equal(t, []string{"ramp", "removal"}, meta.Categories)
	assert.Empty(t, meta.Cards)

	w = serve(t, http.MethodGet, pattern, "/commanders/Atraxa/meta?category=ramp", h.GetCommanderMeta, "")
	require.Equal(t, http.StatusOK, w.Code)
	meta = CommanderMeta{}
	decodeData(t, w, &meta)
	require.Len(t, meta.Cards["ramp"], 1)
	assert.Equal(t, "Sol Ring", meta.Cards["ramp"][0].Name)

	w = serve(t, http.MethodGet, pattern, "/commanders/Atraxa/meta?all=true", h.GetCommanderMeta, "")
	require.Equal(t, http.StatusOK, w.Code)
	meta = CommanderMeta{}
	decodeData(t, w, &meta)
	assert.Equal(t, []string{"ramp", "removal"}, meta.Categories)
	assert.Len(t, meta.Cards, 2)
}

func TestSystemHandler(t *testing.T) {
	m := metrics.NewRemoteMetrics()
	m.RecordCacheHit()
	h := NewSystemHandler(m, func() int { return 2 })

	w := serve(t, http.MethodGet, "/health", "/health", h.Health, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","websocket_clients":2}`, w.Body.String())

	w = serve(t, http.MethodGet, "/metrics", "/metrics", h.GetMetrics, "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats metrics.Stats
	decodeData(t, w, &stats)
	assert.EqualValues(t, 1, stats.CacheHits)

	w = serve(t, http.MethodGet, "/metrics", "/metrics", NewSystemHandler(nil, nil).GetMetrics, "")
	assert.Equal(t, http.StatusOK, w.Code)
}
