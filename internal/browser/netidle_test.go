// File: internal/browser/netidle_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestNetworkTracker_Counts(t *testing.T) {
	tr := NewNetworkTracker(zaptest.NewLogger(t))

	tr.handleEvent(&network.EventRequestWillBeSent{RequestID: "1"})
	tr.handleEvent(&network.EventRequestWillBeSent{RequestID: "2"})
	tr.handleEvent(&network.EventRequestWillBeSent{RequestID: "2"}) // redirect leg
	tr.handleEvent(&network.EventRequestWillBeSent{RequestID: "3"})
	assert.Equal(t, 3, tr.Inflight())

	tr.handleEvent(&network.EventLoadingFinished{RequestID: "1"})
	tr.handleEvent(&network.EventLoadingFailed{RequestID: "2"})
	tr.handleEvent(&network.EventLoadingFinished{RequestID: "unknown"})
	tr.handleEvent(&network.EventResponseReceived{RequestID: "3"})
	assert.Equal(t, 1, tr.Inflight())
}

func TestNetworkTracker_WaitIdle(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("returns once the quiet period has passed", func(t *testing.T) {
		tr := NewNetworkTracker(zaptest.NewLogger(t))
		tr.handleEvent(&network.EventRequestWillBeSent{RequestID: "1"})
		tr.handleEvent(&network.EventRequestWillBeSent{RequestID: "2"})

		start := time.Now()
		err := tr.WaitIdle(context.Background(), 2, 50*time.Millisecond)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("waits while too many requests are outstanding", func(t *testing.T) {
		tr := NewNetworkTracker(zaptest.NewLogger(t))
		for _, id := range []network.RequestID{"1", "2", "3"} {
			tr.handleEvent(&network.EventRequestWillBeSent{RequestID: id})
		}

		go func() {
			time.Sleep(100 * time.Millisecond)
			tr.handleEvent(&network.EventLoadingFinished{RequestID: "3"})
		}()

		start := time.Now()
		require.NoError(t, tr.WaitIdle(context.Background(), 2, 50*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	})

	t.Run("gives up when the context ends", func(t *testing.T) {
		tr := NewNetworkTracker(zaptest.NewLogger(t))
		for _, id := range []network.RequestID{"1", "2", "3"} {
			tr.handleEvent(&network.EventRequestWillBeSent{RequestID: id})
		}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
		defer cancel()
		err := tr.WaitIdle(ctx, 2, 20*time.Millisecond)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestCombineContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	type key struct{}
	tabCtx := context.WithValue(context.Background(), key{}, "tab")

	t.Run("inherits tab values and follows the operation context", func(t *testing.T) {
		opCtx, opCancel := context.WithCancel(context.Background())
		combined, cancel := CombineContext(tabCtx, opCtx)
		defer cancel()

		assert.Equal(t, "tab", combined.Value(key{}))
		assert.NoError(t, combined.Err())

		opCancel()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context was not canceled with the operation context")
		}
	})

	t.Run("follows the tab context", func(t *testing.T) {
		tab, tabCancel := context.WithCancel(tabCtx)
		combined, cancel := CombineContext(tab, context.Background())
		defer cancel()

		tabCancel()
		<-combined.Done()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("cancel releases the operation context hook", func(t *testing.T) {
		opCtx, opCancel := context.WithCancel(context.Background())
		defer opCancel()
		combined, cancel := CombineContext(tabCtx, opCtx)
		cancel()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})
}
