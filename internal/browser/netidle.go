// File: internal/browser/netidle.go
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// minPollInterval keeps WaitIdle from spinning when the quiet period is tiny.
const minPollInterval = 10 * time.Millisecond

// NetworkTracker listens to a tab's CDP network events and counts in-flight requests.
// It backs the "network idle" navigation heuristic: at most N requests outstanding
// for a sustained quiet period.
type NetworkTracker struct {
	logger *zap.Logger

	mu       sync.Mutex
	inflight map[network.RequestID]struct{}
}

// NewNetworkTracker creates a tracker with no requests in flight.
func NewNetworkTracker(logger *zap.Logger) *NetworkTracker {
	return &NetworkTracker{
		logger:   logger.Named("netidle"),
		inflight: make(map[network.RequestID]struct{}),
	}
}

// Attach registers the tracker on the tab held by tabCtx. The network domain still has
// to be enabled (network.Enable) for events to arrive.
func (t *NetworkTracker) Attach(tabCtx context.Context) {
	chromedp.ListenTarget(tabCtx, t.handleEvent)
}

func (t *NetworkTracker) handleEvent(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.mu.Lock()
		// Redirects reuse the request ID, so this is a no-op for the next leg.
		t.inflight[e.RequestID] = struct{}{}
		t.mu.Unlock()
	case *network.EventLoadingFinished:
		t.done(e.RequestID)
	case *network.EventLoadingFailed:
		t.done(e.RequestID)
	}
}

func (t *NetworkTracker) done(id network.RequestID) {
	t.mu.Lock()
	delete(t.inflight, id)
	t.mu.Unlock()
}

// Inflight returns the number of requests currently outstanding.
func (t *NetworkTracker) Inflight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}

// WaitIdle blocks until no more than maxInflight requests have been outstanding for
// quietPeriod, or until ctx is done.
func (t *NetworkTracker) WaitIdle(ctx context.Context, maxInflight int, quietPeriod time.Duration) error {
	interval := quietPeriod / 5
	if interval < minPollInterval {
		interval = minPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var idleSince time.Time
	for {
		count := t.Inflight()
		now := time.Now()
		switch {
		case count > maxInflight:
			idleSince = time.Time{}
		case idleSince.IsZero():
			idleSince = now
		case now.Sub(idleSince) >= quietPeriod:
			return nil
		}

		select {
		case <-ctx.Done():
			t.logger.Debug("Network idle wait aborted.", zap.Int("inflight_requests", count), zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
