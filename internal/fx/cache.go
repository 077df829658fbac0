// Package fx converts revenue amounts into the reference currency using a
// TTL-cached rate table with a static fallback.
package fx

import (
	"context"
	"maps"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/showfunnel/internal/parse"
)

const (
	// DefaultTTL is how long a fetched rate table stays fresh.
	DefaultTTL = 6 * time.Hour
	// DefaultTimeout bounds a single refresh.
	DefaultTimeout = 10 * time.Second
)

// StaticRates are reference-currency (USD) values of one unit of each
// currency, used when no live table can be fetched.
var StaticRates = map[string]float64{
	"USD": 1.0,
	"BRL": 0.20,
	"MXN": 0.055,
	"CAD": 0.74,
	"AUD": 0.66,
	"GBP": 1.27,
	"EUR": 1.08,
	"COP": 0.00026,
	"CLP": 0.0011,
	"ARS": 0.0012,
	"PEN": 0.27,
}

// RateSource fetches live reference-currency values per unit of currency.
type RateSource interface {
	FetchRates(ctx context.Context) (map[string]float64, error)
}

// Converter converts an amount in a currency into the reference currency.
type Converter interface {
	Convert(ctx context.Context, amount float64, code string) float64
}

type snapshot struct {
	rates     map[string]float64
	fetchedAt time.Time
	fallback  bool
}

// Status describes the rate table currently in use.
type Status struct {
	FetchedAt time.Time `json:"fetched_at"`
	Fallback  bool      `json:"fallback"`
	Codes     int       `json:"codes"`
}

// Cache holds the current rate table. Readers load it atomically; a single
// writer refreshes it once the TTL expires while other readers keep using the
// stale table.
type Cache struct {
	source  RateSource
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time

	refreshing sync.Mutex
	current    atomic.Pointer[snapshot]
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) { c.ttl = d }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Cache) { c.timeout = d }
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a cache over src. A nil src serves StaticRates only.
func NewCache(src RateSource, opts ...Option) *Cache {
	c := &Cache{
		source:  src,
		ttl:     DefaultTTL,
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Cache) fresh(s *snapshot) bool {
	return s != nil && c.now().Sub(s.fetchedAt) < c.ttl
}

// Rates returns the current table, refreshing it first when it is stale.
// If another caller is already refreshing, the stale table is returned.
func (c *Cache) Rates(ctx context.Context) map[string]float64 {
	snap := c.current.Load()
	if c.fresh(snap) {
		return snap.rates
	}

	if !c.refreshing.TryLock() {
		if snap != nil {
			return snap.rates
		}
		return StaticRates
	}
	defer c.refreshing.Unlock()

	// Another writer may have finished between Load and TryLock.
	if snap = c.current.Load(); c.fresh(snap) {
		return snap.rates
	}
	return c.refresh(ctx).rates
}

func (c *Cache) refresh(ctx context.Context) *snapshot {
	next := &snapshot{fetchedAt: c.now(), rates: maps.Clone(StaticRates)}

	if c.source == nil {
		next.fallback = true
		c.current.Store(next)
		return next
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	live, err := c.source.FetchRates(ctx)
	if err != nil || len(live) == 0 {
		zap.L().Warn("fx: rate refresh failed, using static fallback", zap.Error(err))
		next.fallback = true
	} else {
		for code, rate := range live {
			if rate > 0 {
				next.rates[strings.ToUpper(code)] = rate
			}
		}
		next.rates[parse.ReferenceCurrency] = 1.0
		zap.L().Debug("fx: rates refreshed", zap.Int("codes", len(next.rates)))
	}

	c.current.Store(next)
	return next
}

// Convert returns amount expressed in the reference currency. The reference
// currency passes through untouched; unknown codes pass through unconverted.
func (c *Cache) Convert(ctx context.Context, amount float64, code string) float64 {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || code == parse.ReferenceCurrency {
		return amount
	}
	rate, ok := c.Rates(ctx)[code]
	if !ok || rate <= 0 {
		zap.L().Warn("fx: unknown currency, amount left unconverted",
			zap.String("currency", code),
			zap.Float64("amount", amount),
		)
		return amount
	}
	return amount * rate
}

// Status reports the table in use; zero when nothing has been loaded yet.
func (c *Cache) Status() Status {
	snap := c.current.Load()
	if snap == nil {
		return Status{}
	}
	return Status{FetchedAt: snap.fetchedAt, Fallback: snap.fallback, Codes: len(snap.rates)}
}
