// File: internal/browser/session.go
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/dlsmap/internal/config"
)

var (
	// ErrElementNotFound is returned by Select when the selector matches nothing.
	ErrElementNotFound = errors.New("element not found")
	// ErrNotSelect is returned by Select when the element is not a <select>.
	ErrNotSelect = errors.New("element is not a <select>")
	// ErrNoMatchingOption is returned by Select when no option has the requested value or label.
	ErrNoMatchingOption = errors.New("no option matches the requested value")
)

// Options controls how a Session launches and how it waits for the page.
type Options struct {
	Browser         config.BrowserConfig
	IdleMaxInflight int
	IdleQuietPeriod time.Duration
}

// OptionsFromConfig extracts the session options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Browser:         cfg.Browser,
		IdleMaxInflight: cfg.Form.IdleMaxInflight,
		IdleQuietPeriod: cfg.Form.IdleQuietPeriod,
	}
}

// Session is one browser process with a single page, owned by exactly one caller.
type Session struct {
	opts   Options
	logger *zap.Logger

	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	tracker     *NetworkTracker

	closeOnce sync.Once
	closeErr  error
	onClose   func()
}

// Launch starts a new browser process and opens its first page. The returned session
// must be closed by the caller. ctx bounds the launch only; the browser outlives it.
func Launch(ctx context.Context, opts Options, logger *zap.Logger) (*Session, error) {
	id := uuid.New().String()
	log := logger.With(zap.String("session_id", id))

	// The browser is deliberately not parented on ctx: Close must still be able to shut it
	// down after the request context is gone.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), AllocatorOptions(opts.Browser)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		opts:        opts,
		logger:      log,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		tracker:     NewNetworkTracker(log),
	}
	s.tracker.Attach(tabCtx)

	// The first Run allocates the browser. It must run on the undecorated tab context,
	// because a deadline on that call would kill the browser when it expires, so the
	// launch timeout is enforced from outside.
	errCh := make(chan error, 1)
	go func() {
		errCh <- chromedp.Run(tabCtx,
			network.Enable(),
			chromedp.EmulateViewport(int64(opts.Browser.Viewport.Width), int64(opts.Browser.Viewport.Height)),
		)
	}()

	timer := time.NewTimer(opts.Browser.OperationTimeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-errCh:
	case <-timer.C:
		err = fmt.Errorf("browser did not start within %s", opts.Browser.OperationTimeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, err
	}

	log.Info("Browser session launched.")
	return s, nil
}

// operationContext scopes one page operation to the tab, the caller's context and the
// per-operation ceiling.
func (s *Session) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	combined, cancelCombined := CombineContext(s.tabCtx, ctx)
	opCtx, cancelTimeout := context.WithTimeout(combined, s.opts.Browser.OperationTimeout)
	return opCtx, func() {
		cancelTimeout()
		cancelCombined()
	}
}

// Navigate loads url and waits until the network is idle.
func (s *Session) Navigate(ctx context.Context, url string) error {
	opCtx, cancel := s.operationContext(ctx)
	defer cancel()

	s.logger.Info("Navigating.", zap.String("url", url))
	if err := chromedp.Run(opCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	if err := s.tracker.WaitIdle(opCtx, s.opts.IdleMaxInflight, s.opts.IdleQuietPeriod); err != nil {
		return fmt.Errorf("waiting for network idle on %s: %w", url, err)
	}
	return nil
}

// WaitIdle waits for network idleness for at most ceiling. Reaching the ceiling is not an
// error; only cancellation of ctx is.
func (s *Session) WaitIdle(ctx context.Context, ceiling time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, ceiling)
	defer cancel()

	err := s.tracker.WaitIdle(waitCtx, s.opts.IdleMaxInflight, s.opts.IdleQuietPeriod)
	if err != nil && ctx.Err() == nil {
		return nil
	}
	return err
}

// Exists reports whether selector matches an element right now, without waiting.
func (s *Session) Exists(ctx context.Context, selector string) (bool, error) {
	opCtx, cancel := s.operationContext(ctx)
	defer cancel()

	var found bool
	script := fmt.Sprintf(`document.querySelector(%s) !== null`, jsonString(selector))
	if err := chromedp.Run(opCtx, chromedp.Evaluate(script, &found)); err != nil {
		return false, fmt.Errorf("probing %s: %w", selector, err)
	}
	return found, nil
}

// selectScript picks an option by value, falling back to its visible label, then fires the
// input and change events a user selection would.
const selectScript = `(function(selector, wanted) {
	const el = document.querySelector(selector);
	if (!el) return {ok: false, reason: "not_found"};
	if (el.nodeName !== "SELECT") return {ok: false, reason: "not_select"};
	const options = Array.from(el.options);
	let match = options.find(o => o.value === wanted);
	if (!match) match = options.find(o => o.textContent.trim() === wanted.trim());
	if (!match) return {ok: false, reason: "no_option"};
	el.value = match.value;
	el.dispatchEvent(new Event("input", {bubbles: true}));
	el.dispatchEvent(new Event("change", {bubbles: true}));
	return {ok: true, value: match.value};
})(%s, %s)`

type selectOutcome struct {
	OK     bool   `json:"ok"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// Select sets the <select> matched by selector to value and returns the option value
// that was applied.
func (s *Session) Select(ctx context.Context, selector, value string) (string, error) {
	opCtx, cancel := s.operationContext(ctx)
	defer cancel()

	var out selectOutcome
	script := fmt.Sprintf(selectScript, jsonString(selector), jsonString(value))
	if err := chromedp.Run(opCtx, chromedp.Evaluate(script, &out)); err != nil {
		return "", fmt.Errorf("selecting %q in %s: %w", value, selector, err)
	}
	if out.OK {
		return out.Value, nil
	}

	switch out.Reason {
	case "not_found":
		return "", fmt.Errorf("%s: %w", selector, ErrElementNotFound)
	case "not_select":
		return "", fmt.Errorf("%s: %w", selector, ErrNotSelect)
	default:
		return "", fmt.Errorf("%s has no option %q: %w", selector, value, ErrNoMatchingOption)
	}
}

// screenshotQuality must stay 100: below that, FullScreenshot encodes JPEG instead of PNG.
const screenshotQuality = 100

// Screenshot captures the whole page, not just the viewport, as a PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	opCtx, cancel := s.operationContext(ctx)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(opCtx, chromedp.FullScreenshot(&buf, screenshotQuality)); err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	if len(buf) == 0 {
		return nil, errors.New("capturing screenshot: browser returned an empty image")
	}
	return buf, nil
}

// Close shuts the browser down. It is safe to call more than once; only the first call
// does any work.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		// Cancel on the tab that allocated the browser closes the whole browser gracefully.
		s.closeErr = chromedp.Cancel(s.tabCtx)
		s.tabCancel()
		s.allocCancel()
		if errors.Is(s.closeErr, context.Canceled) {
			s.closeErr = nil
		}

		s.logger.Info("Browser session closed.")
		if s.onClose != nil {
			s.onClose()
		}
	})
	return s.closeErr
}

func jsonString(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}
