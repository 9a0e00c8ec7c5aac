package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildURL(t *testing.T) {
	got, err := BuildURL("https://v6.vbb.transport.rest/", "stops/900100003/departures", url.Values{"duration": {"10"}})
	require.NoError(t, err)
	assert.Equal(t, "https://v6.vbb.transport.rest/stops/900100003/departures?duration=10", got)
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "secret", r.Header.Get("x-apikey"))
		w.Write([]byte(`{"name": "U8"}`))
	}))
	defer srv.Close()

	var out struct {
		Name string `json:"name"`
	}
	err := GetJSON(context.Background(), NewHTTPClient(time.Second), srv.URL, map[string]string{"x-apikey": "secret"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "U8", out.Name)
}

func TestGetStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("maintenance"))
	}))
	defer srv.Close()

	_, err := Get(context.Background(), NewHTTPClient(0), srv.URL, nil)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, "maintenance", statusErr.Body)
}
