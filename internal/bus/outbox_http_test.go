package bus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lawallet/card-server/internal/nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPOutbox_Publish_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/events", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	outbox, err := NewHTTPOutbox(srv.URL, 0)
	require.NoError(t, err)

	err = outbox.Publish(context.Background(), &nostr.Event{ID: "abc", Kind: nostr.KindRegular})
	require.NoError(t, err)
}

func TestHTTPOutbox_Publish_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	outbox, err := NewHTTPOutbox(srv.URL, 0)
	require.NoError(t, err)

	err = outbox.Publish(context.Background(), &nostr.Event{ID: "abc"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPublishFailed)
}

func TestNewHTTPOutbox_RejectsEmptyBaseURL(t *testing.T) {
	_, err := NewHTTPOutbox("", 0)
	require.Error(t, err)
}
