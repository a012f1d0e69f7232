package verifier

import (
	"context"
	"errors"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// LookupMXFunc issues one MX query. Injectable so tests can count calls and
// script answers.
type LookupMXFunc func(ctx context.Context, domain string) ([]*net.MX, error)

// MXHost is one mail exchanger, lowest Pref first after sorting.
type MXHost struct {
	Host string `json:"host"`
	Pref uint16 `json:"pref"`
}

// MXRecordSet is a cached MX answer for a domain. An empty Hosts slice is a
// valid, cacheable answer meaning the domain cannot receive mail.
type MXRecordSet struct {
	Domain    string    `json:"domain"`
	Hosts     []MXHost  `json:"hosts"`
	FetchedAt time.Time `json:"fetched_at"`
}

// HasRecords reports whether any exchanger exists.
func (s MXRecordSet) HasRecords() bool { return len(s.Hosts) > 0 }

type cacheEntry struct {
	set     MXRecordSet
	expires time.Time
}

// Resolver performs MX lookups with a TTL cache. Concurrent misses for the
// same domain collapse into a single outstanding query via singleflight, and
// negative answers are cached just like positive ones.
type Resolver struct {
	lookup  LookupMXFunc
	timeout time.Duration
	ttl     time.Duration

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewResolver builds a resolver with the given per-query timeout and cache
// TTL. A nil lookup falls back to net.DefaultResolver.
func NewResolver(timeout, ttl time.Duration, lookup LookupMXFunc) *Resolver {
	if lookup == nil {
		lookup = func(ctx context.Context, domain string) ([]*net.MX, error) {
			return net.DefaultResolver.LookupMX(ctx, domain)
		}
	}
	return &Resolver{
		lookup:  lookup,
		timeout: timeout,
		ttl:     ttl,
		cache:   make(map[string]cacheEntry),
	}
}

// ResolveMX returns the exchangers for a domain, cheapest first. Both "no
// records" and a timed-out query surface as an empty set with a sentinel
// error (ErrNoMXRecords / ErrResolutionTimeout); neither is fatal to the
// caller's pipeline.
func (r *Resolver) ResolveMX(ctx context.Context, domain string) (MXRecordSet, error) {
	domain = strings.ToLower(domain)

	r.mu.RLock()
	e, ok := r.cache[domain]
	r.mu.RUnlock()
	if ok && time.Now().Before(e.expires) {
		return r.withSentinel(e.set)
	}

	v, err, _ := r.group.Do(domain, func() (any, error) {
		// Re-check under the flight: another goroutine may have refreshed
		// the entry while this one queued.
		r.mu.RLock()
		e, ok := r.cache[domain]
		r.mu.RUnlock()
		if ok && time.Now().Before(e.expires) {
			return e.set, nil
		}

		qctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		records, err := r.lookup(qctx, domain)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return MXRecordSet{}, ErrResolutionTimeout
			}
			var dnsErr *net.DNSError
			if errors.As(err, &dnsErr) && dnsErr.IsTimeout {
				return MXRecordSet{}, ErrResolutionTimeout
			}
			// NXDOMAIN and friends: a real, cacheable "no records" answer.
			records = nil
		}

		set := MXRecordSet{Domain: domain, FetchedAt: time.Now()}
		for _, mx := range records {
			if mx == nil || mx.Host == "" {
				continue
			}
			set.Hosts = append(set.Hosts, MXHost{
				Host: strings.TrimSuffix(mx.Host, "."),
				Pref: mx.Pref,
			})
		}
		sort.SliceStable(set.Hosts, func(i, j int) bool {
			return set.Hosts[i].Pref < set.Hosts[j].Pref
		})

		r.mu.Lock()
		r.cache[domain] = cacheEntry{set: set, expires: time.Now().Add(r.ttl)}
		r.mu.Unlock()

		return set, nil
	})
	if err != nil {
		// Timeouts are not cached; the next call may succeed.
		return MXRecordSet{Domain: domain, FetchedAt: time.Now()}, err
	}
	return r.withSentinel(v.(MXRecordSet))
}

func (r *Resolver) withSentinel(set MXRecordSet) (MXRecordSet, error) {
	if !set.HasRecords() {
		return set, ErrNoMXRecords
	}
	return set, nil
}

// CacheLen reports the number of cached domains, for diagnostics.
func (r *Resolver) CacheLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}
