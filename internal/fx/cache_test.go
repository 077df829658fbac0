package fx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/showfunnel/internal/fetcher"
)

type fakeSource struct {
	calls atomic.Int32
	rates map[string]float64
	err   error
}

func (f *fakeSource) FetchRates(_ context.Context) (map[string]float64, error) {
	f.calls.Add(1)
	return f.rates, f.err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestConvert_ReferenceIsIdentity(t *testing.T) {
	src := &fakeSource{rates: map[string]float64{"USD": 0.5}}
	c := NewCache(src)

	for _, x := range []float64{0, 1, 1234.56, -20} {
		assert.Equal(t, x, c.Convert(context.Background(), x, "USD"))
		assert.Equal(t, x, c.Convert(context.Background(), x, ""))
	}
	assert.Equal(t, int32(0), src.calls.Load())
}

func TestConvert_UsesLiveRates(t *testing.T) {
	src := &fakeSource{rates: map[string]float64{"BRL": 0.18}}
	c := NewCache(src)

	assert.InDelta(t, 180.0, c.Convert(context.Background(), 1000, "brl"), 1e-9)
	// Codes missing from the feed keep their static rate.
	assert.InDelta(t, 108.0, c.Convert(context.Background(), 100, "EUR"), 1e-9)
}

func TestConvert_UnknownCodePassesThrough(t *testing.T) {
	c := NewCache(nil)
	assert.Equal(t, 500.0, c.Convert(context.Background(), 500, "JPY"))
}

func TestRates_FallbackOnFailure(t *testing.T) {
	src := &fakeSource{err: eris.New("boom")}
	c := NewCache(src)

	assert.InDelta(t, 200.0, c.Convert(context.Background(), 1000, "BRL"), 1e-9)
	assert.True(t, c.Status().Fallback)
	assert.Equal(t, len(StaticRates), c.Status().Codes)
}

func TestRates_TTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)}
	src := &fakeSource{rates: map[string]float64{"BRL": 0.2}}
	c := NewCache(src, WithClock(clock.Now), WithTTL(6*time.Hour))

	c.Rates(context.Background())
	c.Rates(context.Background())
	assert.Equal(t, int32(1), src.calls.Load())

	clock.Advance(5*time.Hour + 59*time.Minute)
	c.Rates(context.Background())
	assert.Equal(t, int32(1), src.calls.Load())

	clock.Advance(2 * time.Minute)
	c.Rates(context.Background())
	assert.Equal(t, int32(2), src.calls.Load())
	assert.Equal(t, clock.Now(), c.Status().FetchedAt)
}

func TestRates_FailedRefreshWaitsForTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)}
	src := &fakeSource{err: eris.New("down")}
	c := NewCache(src, WithClock(clock.Now), WithTTL(time.Hour))

	c.Rates(context.Background())
	c.Rates(context.Background())
	assert.Equal(t, int32(1), src.calls.Load())
}

type blockingSource struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingSource) FetchRates(_ context.Context) (map[string]float64, error) {
	close(b.started)
	<-b.release
	return map[string]float64{"BRL": 0.1}, nil
}

func TestRates_StaleReadDuringRefresh(t *testing.T) {
	src := &blockingSource{started: make(chan struct{}), release: make(chan struct{})}
	c := NewCache(src)

	done := make(chan map[string]float64)
	go func() { done <- c.Rates(context.Background()) }()
	<-src.started

	// A concurrent reader does not block on the in-flight refresh.
	rates := c.Rates(context.Background())
	assert.InDelta(t, StaticRates["BRL"], rates["BRL"], 1e-9)

	close(src.release)
	refreshed := <-done
	assert.InDelta(t, 0.1, refreshed["BRL"], 1e-9)
	assert.InDelta(t, 0.1, c.Rates(context.Background())["BRL"], 1e-9)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":"success","base_code":"USD","rates":{"USD":1,"BRL":5,"EUR":0.8,"BAD":0}}`))
	}))
	defer srv.Close()

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{BackoffBase: time.Millisecond})
	rates, err := NewHTTPSource(f, srv.URL).FetchRates(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.2, rates["BRL"], 1e-9)
	assert.InDelta(t, 1.25, rates["EUR"], 1e-9)
	assert.NotContains(t, rates, "BAD")
}

func TestHTTPSource_WrongBase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"success","base_code":"EUR","rates":{"USD":1.1}}`))
	}))
	defer srv.Close()

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{BackoffBase: time.Millisecond})
	_, err := NewHTTPSource(f, srv.URL).FetchRates(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed base EUR")
}
