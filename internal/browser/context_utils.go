// File: internal/browser/context_utils.go
package browser

import "context"

// CombineContext returns a context derived from tabCtx, so it keeps the chromedp values
// that identify the browser tab, which is additionally canceled when opCtx is done.
// opCtx typically belongs to the HTTP request that owns the session.
func CombineContext(tabCtx, opCtx context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(tabCtx)

	stop := context.AfterFunc(opCtx, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}
