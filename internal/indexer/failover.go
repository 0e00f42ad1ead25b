package indexer

import (
	"log/slog"
	"sync"
	"time"
)

const unhealthyDuration = 5 * time.Minute // Cooldown before retry

type endpointStatus struct {
	url           string
	healthy       bool
	lastError     error
	lastErrorTime time.Time
}

// failover rotates between indexer base URLs, skipping failing ones until
// their cooldown expires
type failover struct {
	mu           sync.Mutex
	endpoints    []*endpointStatus
	currentIndex int
	now          func() time.Time
	logger       *slog.Logger
}

func newFailover(urls []string, logger *slog.Logger) *failover {
	f := &failover{
		endpoints: make([]*endpointStatus, 0, len(urls)),
		now:       time.Now,
		logger:    logger,
	}
	for _, u := range urls {
		f.endpoints = append(f.endpoints, &endpointStatus{url: u, healthy: true})
	}
	return f
}

// candidates returns the URLs to try, starting at the current endpoint.
// When every endpoint is cooling down all of them are returned, so a single
// failing indexer is still retried on the next poll.
func (f *failover) candidates() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.endpoints)
	usable := make([]string, 0, n)
	all := make([]string, 0, n)
	for i := range n {
		ep := f.endpoints[(f.currentIndex+i)%n]
		all = append(all, ep.url)
		if ep.healthy || f.now().Sub(ep.lastErrorTime) > unhealthyDuration {
			usable = append(usable, ep.url)
		}
	}
	if len(usable) == 0 {
		return all
	}
	return usable
}

// markHealthy makes url the current endpoint
func (f *failover) markHealthy(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, ep := range f.endpoints {
		if ep.url != url {
			continue
		}
		if !ep.healthy {
			f.logger.Info("Indexer endpoint recovered", "url", url)
		}
		ep.healthy = true
		ep.lastError = nil
		f.currentIndex = i
		return
	}
}

// markUnhealthy records a failure on url
func (f *failover) markUnhealthy(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ep := range f.endpoints {
		if ep.url != url {
			continue
		}
		ep.healthy = false
		ep.lastError = err
		ep.lastErrorTime = f.now()

		if len(f.endpoints) > 1 {
			f.logger.Warn("Marked indexer endpoint as unhealthy, will retry after cooldown",
				"url", url,
				"error", err,
				"retry_after", unhealthyDuration)
		}
		return
	}
}

func (f *failover) health() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]bool, len(f.endpoints))
	for _, ep := range f.endpoints {
		out[ep.url] = ep.healthy
	}
	return out
}
