package identityprovider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferIdentity_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/identity/transfer", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"name":"Satoshi"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	name, err := c.TransferIdentity(context.Background(), "old-pub", "new-pub")
	require.NoError(t, err)
	assert.Equal(t, "Satoshi", name)
}

func TestTransferIdentity_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.TransferIdentity(context.Background(), "old-pub", "new-pub")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestNew_RejectsEmptyBaseURL(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}
