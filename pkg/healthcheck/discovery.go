package healthcheck

import (
	"context"
	"log/slog"
	"sync"
)

// defaultRefreshEvery is how many calls pass between two real CRD
// listings. Discovery runs inside the fast loop, and the route set
// changes far slower than the loop ticks.
const defaultRefreshEvery = 10

// Discovery maintains the set of services exposed through ingress
// routes, refreshing from the cluster every N calls.
type Discovery struct {
	monitor      *IngressMonitor
	refreshEvery int

	mu      sync.Mutex
	calls   int
	cached  []Route
	primed  bool
}

// NewDiscovery creates a discovery over the given ingress monitor.
// refreshEvery <= 0 uses the default.
func NewDiscovery(monitor *IngressMonitor, refreshEvery int) *Discovery {
	if refreshEvery <= 0 {
		refreshEvery = defaultRefreshEvery
	}
	return &Discovery{monitor: monitor, refreshEvery: refreshEvery}
}

// Services returns the discovered routes, listing from the cluster on
// the first call and then every refreshEvery calls. Between refreshes
// the cached set is returned. A failed refresh keeps the cache.
func (d *Discovery) Services(ctx context.Context) []Route {
	d.mu.Lock()
	refresh := !d.primed || d.calls%d.refreshEvery == 0
	d.calls++
	d.mu.Unlock()

	if refresh {
		routes, err := d.monitor.Routes(ctx)
		if err != nil {
			slog.Warn("Service discovery refresh failed", "error", err)
		} else {
			d.mu.Lock()
			d.cached = routes
			d.primed = true
			d.mu.Unlock()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Route, len(d.cached))
	copy(out, d.cached)
	return out
}

// Hosts returns the deduplicated hostnames of all discovered routes.
func (d *Discovery) Hosts(ctx context.Context) []string {
	seen := map[string]bool{}
	var hosts []string
	for _, route := range d.Services(ctx) {
		for _, host := range route.Hosts {
			if !seen[host] {
				seen[host] = true
				hosts = append(hosts, host)
			}
		}
	}
	return hosts
}
