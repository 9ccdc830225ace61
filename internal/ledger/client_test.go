package ledger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalance_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/balance/holder-pub", r.URL.Path)
		assert.Equal(t, "BTC", r.URL.Query().Get("token"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"balance":5000}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	balance, err := c.Balance(context.Background(), "holder-pub", "BTC")
	require.NoError(t, err)
	assert.EqualValues(t, 5000, balance)
}

func TestBalance_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.Balance(context.Background(), "holder-pub", "BTC")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}
