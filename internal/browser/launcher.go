// File: internal/browser/launcher.go
package browser

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/dlsmap/internal/observability"
)

// LaunchFunc starts one browser session. It is swapped out in tests.
type LaunchFunc func(ctx context.Context, opts Options, logger *zap.Logger) (*Session, error)

// Launcher creates one Session per call. Sessions are never pooled or shared.
type Launcher struct {
	opts   Options
	logger *zap.Logger
	launch LaunchFunc

	// sem bounds concurrent browser processes; nil means unbounded.
	sem *semaphore.Weighted
}

// NewLauncher creates a launcher for the given options.
func NewLauncher(opts Options, logger *zap.Logger) *Launcher {
	l := &Launcher{
		opts:   opts,
		logger: logger.Named("browser"),
		launch: Launch,
	}
	if opts.Browser.MaxSessions > 0 {
		l.sem = semaphore.NewWeighted(int64(opts.Browser.MaxSessions))
	}
	return l
}

// Launch starts a new browser session, waiting for a free slot first when the number of
// concurrent sessions is bounded.
func (l *Launcher) Launch(ctx context.Context) (*Session, error) {
	if l.sem != nil {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("waiting for a free browser slot: %w", err)
		}
	}
	release := func() {
		if l.sem != nil {
			l.sem.Release(1)
		}
	}

	s, err := l.launch(ctx, l.opts, l.logger)
	if err != nil {
		release()
		return nil, err
	}

	observability.ActiveSessions.Inc()
	s.onClose = func() {
		observability.ActiveSessions.Dec()
		release()
	}
	return s, nil
}
