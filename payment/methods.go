package payment

import (
	"context"
	"time"

	"github.com/lnvps/lnvps-go"
	"github.com/lnvps/lnvps-go/cache"
)

// MethodsCacheKey is the store key of the cached method list.
var MethodsCacheKey = cache.Key("payment-methods")

// DefaultMethodsTTL is how long a fetched method list stays fresh.
const DefaultMethodsTTL = 24 * time.Hour

// MethodLister fetches the rails offered by the backend.
type MethodLister interface {
	PaymentMethods(ctx context.Context) ([]lnvps.PaymentMethod, error)
}

// MethodCache is a TTL cache of the backend's payment methods.
type MethodCache struct {
	lister MethodLister
	cache  *cache.Cache[[]lnvps.PaymentMethod]
	ttl    time.Duration
}

// NewMethodCache creates a MethodCache over store.
func NewMethodCache(lister MethodLister, store cache.Store, opts ...cache.Option) *MethodCache {
	return &MethodCache{
		lister: lister,
		cache:  cache.New[[]lnvps.PaymentMethod](store, opts...),
		ttl:    DefaultMethodsTTL,
	}
}

// WithTTL returns a copy of the cache using ttl.
func (m *MethodCache) WithTTL(ttl time.Duration) *MethodCache {
	cp := *m
	cp.ttl = ttl
	return &cp
}

// Get returns the cached methods, fetching them when stale.
func (m *MethodCache) Get(ctx context.Context) ([]lnvps.PaymentMethod, error) {
	return m.cache.GetOrFetch(ctx, MethodsCacheKey, m.lister.PaymentMethods, m.ttl)
}

// Reload fetches the methods regardless of freshness.
func (m *MethodCache) Reload(ctx context.Context) ([]lnvps.PaymentMethod, error) {
	return m.cache.ReloadNow(ctx, MethodsCacheKey, m.lister.PaymentMethods)
}
