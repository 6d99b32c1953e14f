package controlplane

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/gofut/internal/engine"
	"github.com/betbot/gofut/internal/offset"
	"github.com/betbot/gofut/internal/oms"
	"github.com/betbot/gofut/pkg/eventbus"
)

type idleStrategy struct {
	engine.BaseStrategy
}

func init() {
	engine.Register("Idle", func() engine.Strategy { return &idleStrategy{} })
}

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	bus := eventbus.New()
	book := oms.NewOrderBook()
	eng := engine.NewEngine(engine.Config{DataDir: t.TempDir()}, bus, book,
		offset.NewConverter(book), nil, nil)
	t.Cleanup(eng.Close)
	return New(Config{}, eng, book), eng
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestStrategiesListShowsLoaded(t *testing.T) {
	s, eng := newTestServer(t)
	require.NoError(t, eng.AddStrategy("Idle", "idle_rb", "rb2401.SHFE", nil, false, false))

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/strategies", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Strategies []engine.Snapshot `json:"strategies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Strategies, 1)
	assert.Equal(t, "idle_rb", body.Strategies[0].Name)
	assert.Equal(t, "Idle", body.Strategies[0].ClassName)
	assert.False(t, body.Strategies[0].Trading)
}

func TestStartRequiresInited(t *testing.T) {
	s, eng := newTestServer(t)
	require.NoError(t, eng.AddStrategy("Idle", "idle_start", "rb2401.SHFE", nil, false, false))

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/strategies/idle_start/start", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownStrategyReturns404(t *testing.T) {
	s, _ := newTestServer(t)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/strategies/ghost/init", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/strategies/ghost/reload", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPositionsEmptyByDefault(t *testing.T) {
	s, _ := newTestServer(t)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/positions", nil))
	require.Equal(t, http.StatusOK, w.Code)
}
