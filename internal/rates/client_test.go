package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rateServer struct {
	*httptest.Server
	calls atomic.Int32
}

func newRateServer(t *testing.T, handler http.HandlerFunc) *rateServer {
	t.Helper()
	rs := &rateServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(rs.Close)
	return rs
}

func TestConvert_SameCurrencyMakesNoCall(t *testing.T) {
	srv := newRateServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	})
	client := NewClient(Options{BaseURL: srv.URL})

	amount := decimal.RequireFromString("123.456")
	got, err := client.Convert(context.Background(), amount, "USD", "usd")

	require.NoError(t, err)
	assert.True(t, amount.Equal(got))
	assert.Equal(t, int32(0), srv.calls.Load())
}

func TestConvert_Success(t *testing.T) {
	srv := newRateServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/convert", r.URL.Path)
		assert.Equal(t, "USD", r.URL.Query().Get("from"))
		assert.Equal(t, "EUR", r.URL.Query().Get("to"))
		assert.Equal(t, "100", r.URL.Query().Get("amount"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"result":91.5}`))
	})
	client := NewClient(Options{BaseURL: srv.URL + "/"})

	got, err := client.Convert(context.Background(), decimal.NewFromInt(100), "usd", "EUR")

	require.NoError(t, err)
	assert.Equal(t, "91.5", got.String())
	assert.Equal(t, int32(1), srv.calls.Load())
}

func TestConvert_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"missing result", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false}`))
		}},
		{"null result", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"result":null}`))
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newRateServer(t, tt.handler)
			client := NewClient(Options{BaseURL: srv.URL})

			_, err := client.Convert(context.Background(), decimal.NewFromInt(1), "USD", "EUR")
			assert.ErrorIs(t, err, ErrUnavailable)
			assert.Equal(t, int32(1), srv.calls.Load(), "no retries")
		})
	}
}

func TestConvert_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(Options{BaseURL: url, Timeout: time.Second})
	_, err := client.Convert(context.Background(), decimal.NewFromInt(1), "USD", "EUR")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFetchRates(t *testing.T) {
	srv := newRateServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest", r.URL.Path)
		assert.Equal(t, "EUR", r.URL.Query().Get("base"))
		_, _ = w.Write([]byte(`{"base":"EUR","rates":{"USD":1.08,"GBP":0.85}}`))
	})
	client := NewClient(Options{BaseURL: srv.URL})

	got, err := client.FetchRates(context.Background(), "eur")

	require.NoError(t, err)
	assert.Equal(t, "EUR", got.Base)
	require.Len(t, got.Rates, 2)
	assert.Equal(t, "1.08", got.Rates["USD"].String())
	assert.False(t, got.FetchedAt.IsZero())
}

func TestFetchRates_Failures(t *testing.T) {
	srv := newRateServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"base":"EUR"}`))
	})
	client := NewClient(Options{BaseURL: srv.URL})

	_, err := client.FetchRates(context.Background(), "EUR")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = client.FetchRates(context.Background(), " ")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFetchRates_Cached(t *testing.T) {
	srv := newRateServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rates":{"USD":1.1}}`))
	})
	client := NewClient(Options{BaseURL: srv.URL, CacheTTL: time.Minute})

	for i := 0; i < 3; i++ {
		_, err := client.FetchRates(context.Background(), "EUR")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), srv.calls.Load())

	_, err := client.FetchRates(context.Background(), "GBP")
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.calls.Load())
}

func TestFetchRates_NoCacheWhenTTLZero(t *testing.T) {
	srv := newRateServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rates":{"USD":1.1}}`))
	})
	client := NewClient(Options{BaseURL: srv.URL})

	_, _ = client.FetchRates(context.Background(), "EUR")
	_, _ = client.FetchRates(context.Background(), "EUR")
	assert.Equal(t, int32(2), srv.calls.Load())
}

func TestFetchRates_ConcurrentCallsShareRequest(t *testing.T) {
	release := make(chan struct{})
	srv := newRateServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"rates":{"USD":1.1}}`))
	})
	client := NewClient(Options{BaseURL: srv.URL, CacheTTL: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.FetchRates(context.Background(), "EUR")
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), srv.calls.Load())
}

func TestFetchRates_CanceledCallerDoesNotFailOthers(t *testing.T) {
	release := make(chan struct{})
	srv := newRateServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"rates":{"USD":1.1}}`))
	})
	client := NewClient(Options{BaseURL: srv.URL, Timeout: 5 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := client.FetchRates(ctx, "EUR")
		first <- err
	}()
	require.Eventually(t, func() bool { return srv.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	second := make(chan error, 1)
	go func() {
		r, err := client.FetchRates(context.Background(), "EUR")
		if err == nil && !r.Rates["USD"].Equal(decimal.RequireFromString("1.1")) {
			err = assert.AnError
		}
		second <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-first:
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.ErrorContains(t, err, context.Canceled.Error())
	case <-time.After(time.Second):
		t.Fatal("canceled caller kept waiting")
	}

	close(release)
	select {
	case err := <-second:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller never returned")
	}
	assert.Equal(t, int32(1), srv.calls.Load())
}

func TestFetchRates_ReturnsIndependentMaps(t *testing.T) {
	srv := newRateServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rates":{"USD":1.1}}`))
	})
	client := NewClient(Options{BaseURL: srv.URL, CacheTTL: time.Minute})

	first, err := client.FetchRates(context.Background(), "EUR")
	require.NoError(t, err)
	delete(first.Rates, "USD")
	first.Rates["GBP"] = decimal.NewFromInt(1)

	cached, err := client.FetchRates(context.Background(), "EUR")
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.calls.Load())
	require.Len(t, cached.Rates, 1)
	assert.True(t, cached.Rates["USD"].Equal(decimal.RequireFromString("1.1")))

	cached.Rates["USD"] = decimal.Zero
	again, err := client.FetchRates(context.Background(), "EUR")
	require.NoError(t, err)
	assert.True(t, again.Rates["USD"].Equal(decimal.RequireFromString("1.1")))
}

func TestConvertAsync(t *testing.T) {
	srv := newRateServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":2}`))
	})
	client := NewClient(Options{BaseURL: srv.URL})

	select {
	case res := <-client.ConvertAsync(context.Background(), decimal.NewFromInt(1), "USD", "EUR"):
		require.NoError(t, res.Err)
		assert.Equal(t, "2", res.Amount.String())
	case <-time.After(2 * time.Second):
		t.Fatal("conversion did not resolve")
	}

	same := <-client.ConvertAsync(context.Background(), decimal.NewFromInt(5), "EUR", "EUR")
	require.NoError(t, same.Err)
	assert.Equal(t, "5", same.Amount.String())
	assert.Equal(t, int32(1), srv.calls.Load())
}

func TestConvertAsync_AbandonedReceiverDoesNotBlock(t *testing.T) {
	srv := newRateServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	client := NewClient(Options{BaseURL: srv.URL})

	ch := client.ConvertAsync(context.Background(), decimal.NewFromInt(1), "USD", "EUR")
	require.Eventually(t, func() bool { return len(ch) == 1 }, 2*time.Second, 5*time.Millisecond)
	res := <-ch
	assert.ErrorIs(t, res.Err, ErrUnavailable)
}
