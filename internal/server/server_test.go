package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/weavelabs/weave/internal/config"
	"github.com/weavelabs/weave/internal/core"
	"github.com/weavelabs/weave/internal/core/model"
	"github.com/weavelabs/weave/internal/core/resolve"
)

func newTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Storage.URI = "" // force the file backend
	cfg.Storage.DataDir = t.TempDir()

	s, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	return s, s.SetupRouter()
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seedBatch(t *testing.T, r *gin.Engine) {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/integrate", gin.H{
		"entities": []gin.H{
			{"id": "bert", "name": "BERT", "type": "Model", "confidence": 0.9, "source": "paper-1"},
			{"id": "squad", "name": "SQuAD", "type": "Dataset", "confidence": 0.85, "source": "paper-1"},
		},
		"relationships": []gin.H{
			{"id": "r1", "source": "bert", "target": "squad", "relation_type": "EVALUATED_ON", "confidence": 0.8},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestIntegrateEndpoint(t *testing.T) {
	_, r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/integrate", gin.H{
		"entities": []gin.H{
			{"id": "bert", "name": "BERT", "type": "Model", "confidence": 0.9},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var res core.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 1, res.IntegratedEntities)
	assert.Empty(t, res.FailedEntities)
}

func TestIntegrateRejectsMalformedBody(t *testing.T) {
	_, r := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/integrate", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryEndpoint(t *testing.T) {
	_, r := newTestServer(t)
	seedBatch(t, r)

	w := doJSON(t, r, http.MethodPost, "/query", gin.H{
		"query_type": "entity",
		"filters":    gin.H{"label": "Model"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var res core.QueryResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Count)
	require.Len(t, res.Entities, 1)
	assert.Equal(t, "bert", res.Entities[0].ID)

	w = doJSON(t, r, http.MethodPost, "/query", gin.H{"query_type": "nonsense"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryAndEvolutionEndpoints(t *testing.T) {
	_, r := newTestServer(t)
	seedBatch(t, r)

	w := doJSON(t, r, http.MethodGet, "/entities/bert/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Equal(t, 1, history.Count)

	w = doJSON(t, r, http.MethodGet, "/entities/bert/evolution", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/entities/ghost/evolution", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStateEndpointValidatesTimestamp(t *testing.T) {
	_, r := newTestServer(t)
	seedBatch(t, r)

	w := doJSON(t, r, http.MethodGet, "/state?at=not-a-time", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodGet, "/state?at=2099-01-01T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state struct {
		Entities map[string]json.RawMessage `json:"entities"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Contains(t, state.Entities, "bert")
}

func TestStatisticsEndpoint(t *testing.T) {
	_, r := newTestServer(t)
	seedBatch(t, r)

	w := doJSON(t, r, http.MethodGet, "/statistics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats core.Statistics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.EntityCount)
	assert.Equal(t, 1, stats.RelationshipCount)
}

func TestClearEndpoint(t *testing.T) {
	_, r := newTestServer(t)
	seedBatch(t, r)

	w := doJSON(t, r, http.MethodPost, "/clear", gin.H{"confirm": false})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/clear", gin.H{"confirm": true})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/statistics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats core.Statistics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Zero(t, stats.EntityCount)
}

func TestBuildResolverConfigIgnoresUnknownNames(t *testing.T) {
	cfg := config.ResolverConfig{
		ConfidenceThreshold: 0.2,
		Strategies: map[string]string{
			"entity_name": "use_newest",
			"bogus_type":  "use_newest",
			"entity_type": "bogus_strategy",
		},
		Contradictions: [][]string{
			{"SUPPORTS", "REFUTES"},
			{"ONLY_ONE"},
		},
	}

	out := buildResolverConfig(cfg, zap.NewNop())
	assert.InDelta(t, 0.2, out.ConfidenceThreshold, 1e-9)
	assert.Equal(t, resolve.StrategyUseNewest, out.Strategies[model.ConflictEntityName])
	assert.Equal(t, resolve.StrategyUseExisting, out.Strategies[model.ConflictEntityType])
	assert.Equal(t, [][2]string{{"SUPPORTS", "REFUTES"}}, out.ContradictionPairs)
}
