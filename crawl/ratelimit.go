package crawl

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/fwojciec/pagewalk"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

var _ pagewalk.DomainLimiter = (*DomainLimiter)(nil)

// DefaultNavigationInterval is the minimum gap between two URL navigations
// to one site.
const DefaultNavigationInterval = 500 * time.Millisecond

// DomainLimiter paces navigations per registrable domain using token buckets.
// Subdomains of one site share a bucket, since paginated listings move
// between them. Each domain gets a burst of 1.
type DomainLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval time.Duration
}

// NewDomainLimiter creates a DomainLimiter allowing one navigation per
// interval per domain. A non-positive interval selects the default.
func NewDomainLimiter(interval time.Duration) *DomainLimiter {
	if interval <= 0 {
		interval = DefaultNavigationInterval
	}
	return &DomainLimiter{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
	}
}

// Wait blocks until the rate limit allows a navigation to domain.
// Returns an error if the context is canceled before the wait completes.
func (d *DomainLimiter) Wait(ctx context.Context, domain string) error {
	key := siteKey(domain)

	d.mu.Lock()
	limiter, ok := d.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(d.interval), 1)
		d.limiters[key] = limiter
	}
	d.mu.Unlock()

	return limiter.Wait(ctx)
}

// siteKey reduces a host to its registrable domain when it has one.
func siteKey(host string) string {
	if site, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return site
	}
	return host
}

// hostOf returns the host name of rawURL, or "" when it has none.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
