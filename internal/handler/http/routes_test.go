package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInit_TraceIDHeader_AlwaysSet(t *testing.T) {
	router := newTestHandler(t).Init()

	req := httptest.NewRequest(http.MethodPost, "/card/data/request", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.NotEmpty(t, rr.Header().Get("X-Trace-ID"))
}

func TestInit_TraceIDHeader_EchoedFromRequest(t *testing.T) {
	router := newTestHandler(t).Init()
	const customTraceID = "my-custom-trace-id-12345"

	req := httptest.NewRequest(http.MethodPost, "/card/data/request", nil)
	req.Header.Set("X-Trace-ID", customTraceID)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, customTraceID, rr.Header().Get("X-Trace-ID"))
}
