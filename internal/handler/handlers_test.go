package handler

import (
	"testing"

	"github.com/lawallet/card-server/internal/handler/http"
	"github.com/lawallet/card-server/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logger.Logger {
	return logger.Nop()
}

// TestNewHandlers_BuildsHTTPHandler verifies that NewHandlers always
// populates the HTTP transport; every domain dependency is nil-safe at
// construction time since NewHandler only stores the pointers it's given.
func TestNewHandlers_BuildsHTTPHandler(t *testing.T) {
	h := NewHandlers(nil, nil, nil, nil, http.Config{}, newTestLogger())

	require.NotNil(t, h)
	assert.NotNil(t, h.HTTP)
}

func TestNewHandlers_IndependentInstances(t *testing.T) {
	h1 := NewHandlers(nil, nil, nil, nil, http.Config{}, newTestLogger())
	h2 := NewHandlers(nil, nil, nil, nil, http.Config{}, newTestLogger())

	assert.NotSame(t, h1, h2)
	assert.NotSame(t, h1.HTTP, h2.HTTP)
}

func TestNewHandlers_ReturnType(t *testing.T) {
	h := NewHandlers(nil, nil, nil, nil, http.Config{}, newTestLogger())

	assert.IsType(t, &Handlers{}, h)
}
