package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lawallet/card-server/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHandler_ReturnsNonNil(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil, Config{}, logger.Nop())

	require.NotNil(t, h)
}

func TestNewHandler_StoresConfig(t *testing.T) {
	cfg := Config{CardWriterPubkey: "writer-pubkey"}
	h := NewHandler(nil, nil, nil, nil, cfg, logger.Nop())

	assert.Equal(t, cfg, h.cfg)
}

func TestNewHandler_IndependentInstances(t *testing.T) {
	h1 := NewHandler(nil, nil, nil, nil, Config{}, logger.Nop())
	h2 := NewHandler(nil, nil, nil, nil, Config{}, logger.Nop())

	assert.NotSame(t, h1, h2)
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	return NewHandler(nil, nil, nil, nil, Config{}, logger.Nop())
}

func TestInit_ReturnsRouter(t *testing.T) {
	router := newTestHandler(t).Init()

	require.NotNil(t, router)
}

// routeCase describes a single expected route.
type routeCase struct {
	method string
	path   string
}

// expectedRoutes lists every route that Init() must register.
var expectedRoutes = []routeCase{
	{http.MethodPost, "/ntag424"},
	{http.MethodPatch, "/ntag424"},
	{http.MethodDelete, "/ntag424"},
	{http.MethodPost, "/card"},
	{http.MethodGet, "/card/scan"},
	{http.MethodGet, "/card/pay"},
	{http.MethodPost, "/card/pay"},
	{http.MethodPost, "/card/data/request"},
	{http.MethodPost, "/card/config/request"},
	{http.MethodPost, "/card/publish-data"},
	{http.MethodPost, "/card/reset/request"},
	{http.MethodPost, "/card/reset/claim"},
}

func TestInit_RegistersAllRoutes(t *testing.T) {
	router := newTestHandler(t).Init()

	for _, tc := range expectedRoutes {
		tc := tc
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.NotEqual(t, http.StatusNotFound, rec.Code,
				"route not found: %s %s", tc.method, tc.path)
			assert.NotEqual(t, http.StatusMethodNotAllowed, rec.Code,
				"method not allowed: %s %s", tc.method, tc.path)
		})
	}
}

func TestInit_UnknownRouteReturns404(t *testing.T) {
	router := newTestHandler(t).Init()

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInit_WrongMethodReturns404NotMethodNotAllowed(t *testing.T) {
	router := newTestHandler(t).Init()

	req := httptest.NewRequest(http.MethodGet, "/card/reset/claim", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
