package ecosystem

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPRegistryFetchParsesEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"vendor":"Acme","model":"Atlas-3","api_availability_date":"2026-07-01T00:00:00Z"}]`))
	}))
	defer srv.Close()

	reg := NewHTTPRegistry(srv.URL, srv.Client())
	entries, err := reg.Fetch(t.Context())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Acme", entries[0].Vendor)
	assert.Equal(t, "Atlas-3", entries[0].ModelName)
}

func TestHTTPRegistryEmptyEndpointIsNoop(t *testing.T) {
	reg := NewHTTPRegistry("", http.DefaultClient)
	entries, err := reg.Fetch(t.Context())
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestHTTPRegistryServerErrorIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	reg := NewHTTPRegistry(srv.URL, srv.Client())
	_, err := reg.Fetch(t.Context())
	assert.Error(t, err)
}
