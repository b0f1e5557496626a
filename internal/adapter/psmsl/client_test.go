package psmsl

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/climate-index/internal/domain"
	"github.com/couchcryptid/climate-index/internal/sealevel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

var cartagena = sealevel.Station{Name: "Cartagena", ID: 572, Dataset: "met"}

func TestClient_StationURL(t *testing.T) {
	c := NewClient("", time.Second, slog.Default())
	assert.Equal(t, "https://psmsl.org/data/obtaining/met.monthly.data/572.metdata", c.StationURL(cartagena))
	assert.Equal(t, "https://psmsl.org/data/obtaining/rlr.monthly.data/2116.rlrdata", c.StationURL(sealevel.Station{ID: 2116}))
}

func TestClient_Fetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/met.monthly.data/572.metdata", r.URL.Path)
		_, _ = w.Write([]byte("1950.0417;  7012;  0;000\n1950.1250;-99999; 31;000\n"))
	}))
	defer srv.Close()

	recs, err := testClient(srv.URL).Fetch(context.Background(), cartagena)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 7012.0, recs[0].ValueMM)
}

func TestClient_Fetch_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background(), cartagena)
	assert.ErrorIs(t, err, domain.ErrMissingInput)
}

func TestClient_Fetch_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background(), cartagena)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "maintenance")
}

func TestClient_Fetch_Malformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not;a;number\n"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background(), cartagena)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cartagena")
}

func TestClient_Fetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.httpClient.Timeout = 50 * time.Millisecond

	_, err := c.Fetch(context.Background(), cartagena)
	require.Error(t, err)
}
