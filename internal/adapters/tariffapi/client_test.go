package tariffapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	perr "tariffsync/internal/platform/errors"
	"tariffsync/internal/platform/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const moscowBody = `{"response":{"data":{"dtNextBox":"","dtTillMax":"2025-01-31","warehouseList":[
	{"boxDeliveryAndStorageExpr":"160","boxDeliveryBase":"47,5","boxDeliveryLiter":"-",
	 "boxStorageBase":"0,1","boxStorageLiter":"0,1","warehouseName":"Moscow"}]}}}`

func newTestClient(t *testing.T, srv *httptest.Server, retries int) (*Client, *[]time.Duration) {
	t.Helper()
	c := NewClient(Options{BaseURL: srv.URL + "/api/v1/tariffs/box", Token: "secret", MaxRetries: retries, RetryBase: 10 * time.Millisecond})
	var slept []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return c, &slept
}

func TestFetch_RequestShapeAndDecode(t *testing.T) {
	var gotAuth, gotDate, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotDate = r.URL.Query().Get("date")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(moscowBody))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, 0)
	day := time.Date(2025, 1, 30, 23, 30, 0, 0, time.FixedZone("MSK", 3*3600))
	snap, err := c.Fetch(context.Background(), day)
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "2025-01-30", gotDate, "date is the caller's calendar day")
	assert.Equal(t, "/api/v1/tariffs/box", gotPath)

	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), snap.DtTillMax)
	require.Len(t, snap.Items, 1)
	it := snap.Items[0]
	assert.Equal(t, "Moscow", it.WarehouseName)
	assert.Equal(t, "47,5", it.DeliveryBase)
	assert.Equal(t, "-", it.DeliveryLiter)
	assert.Equal(t, "160", it.DeliveryAndStorageExpr)
}

func TestFetch_RetriesTransientThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch hits.Add(1) {
		case 1:
			w.WriteHeader(http.StatusBadGateway)
		case 2:
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			_, _ = w.Write([]byte(moscowBody))
		}
	}))
	defer srv.Close()

	c, slept := newTestClient(t, srv, 3)
	_, err := c.Fetch(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 2 * time.Second}, *slept)
}

func TestFetch_GivesUpAsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	}))
	defer srv.Close()

	c, slept := newTestClient(t, srv, 2)
	_, err := c.Fetch(context.Background(), time.Now())
	require.Error(t, err)
	assert.Equal(t, perr.ErrorCodeTransport, perr.CodeOf(err))
	testkit.MustContain(t, err.Error(), "maintenance")
	assert.Len(t, *slept, 2)
}

func TestFetch_ClientErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, 3)
	_, err := c.Fetch(context.Background(), time.Now())
	require.Error(t, err)
	assert.Equal(t, perr.ErrorCodeTransport, perr.CodeOf(err))
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetch_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	c, _ := newTestClient(t, srv, 1)
	srv.Close()

	_, err := c.Fetch(context.Background(), time.Now())
	require.Error(t, err)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeTransport))
}

func TestFetch_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(moscowBody))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, _ := newTestClient(t, srv, 3)
	_, err := c.Fetch(ctx, time.Now())
	require.Error(t, err)
	assert.Equal(t, perr.ErrorCodeTransport, perr.CodeOf(err))
}

func TestDecode_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":         `<html>`,
		"missing date":     `{"response":{"data":{"warehouseList":[]}}}`,
		"bad date":         `{"response":{"data":{"dtTillMax":"31.01.2025","warehouseList":[]}}}`,
		"nameless row":     `{"response":{"data":{"dtTillMax":"2025-01-31","warehouseList":[{"boxDeliveryBase":"1"}]}}}`,
		"missing envelope": `{}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decode([]byte(body))
			require.Error(t, err)
			assert.Equal(t, perr.ErrorCodeTransport, perr.CodeOf(err))
		})
	}
}

func TestDecode_EmptyListIsValid(t *testing.T) {
	snap, err := decode([]byte(`{"response":{"data":{"dtTillMax":"2025-01-31","warehouseList":[]}}}`))
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
}

func TestBackoffCaps(t *testing.T) {
	c := NewClient(Options{RetryBase: time.Second})
	assert.Equal(t, time.Second, c.backoff(0))
	assert.Equal(t, 4*time.Second, c.backoff(2))
	assert.Equal(t, time.Minute, c.backoff(30))
}

func TestFetch_OneBlankWarehouseDoesNotRejectSnapshot(t *testing.T) {
	body := `{"response":{"data":{"dtTillMax":"2025-01-31","warehouseList":[
		{"boxDeliveryBase":"47,5","warehouseName":"Moscow"},
		{"boxDeliveryBase":"40","warehouseName":""}]}}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, 0)
	snap, err := c.Fetch(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, snap.Items, 2)
	assert.Equal(t, "Moscow", snap.Items[0].WarehouseName)
	assert.Equal(t, "", snap.Items[1].WarehouseName)
}

func TestFetch_BackoffStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, MaxRetries: 3})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Fetch(ctx, time.Now())
	require.Error(t, err)
	assert.Equal(t, perr.ErrorCodeTransport, perr.CodeOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second, "Retry-After must not outlive the context")
}
