// File: internal/orchestrator/types.go
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/xkilldash9x/dlsmap/internal/browser"
)

// SuccessMessage is returned with every successful submission.
const SuccessMessage = "DLS form processed successfully!"

// FieldSet maps a form field key (governorate, directorate, ...) to the value to select.
// Values are whatever the client decoded and are echoed back verbatim. Only strings can be
// selected; unknown keys are ignored.
type FieldSet map[string]any

// FieldStatus is the outcome of applying one field to the page.
type FieldStatus string

const (
	// FieldStatusSet means the control was found and its value was set.
	FieldStatusSet FieldStatus = "set"
	// FieldStatusSkipped means no value, or an empty one (null, "", false, 0), was supplied.
	FieldStatusSkipped FieldStatus = "skipped"
	// FieldStatusMissing means the control was not on the page.
	FieldStatusMissing FieldStatus = "missing"
	// FieldStatusFailed means the value was not a string, or looking up or setting the
	// control returned an error.
	FieldStatusFailed FieldStatus = "failed"
)

// FieldResult records what happened to one recognized field.
type FieldResult struct {
	Field    string      `json:"field"`
	Selector string      `json:"selector"`
	Value    string      `json:"value,omitempty"`
	Applied  string      `json:"applied,omitempty"`
	Status   FieldStatus `json:"status"`
	Error    string      `json:"error,omitempty"`
}

// Result is the outcome of a successful submission.
type Result struct {
	Message      string
	Fields       FieldSet
	Screenshot   string // base64-encoded PNG
	FieldResults []FieldResult
}

// Page is the subset of a browser session the orchestrator drives.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitIdle(ctx context.Context, ceiling time.Duration) error
	Exists(ctx context.Context, selector string) (bool, error)
	Select(ctx context.Context, selector, value string) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Launcher creates a new, exclusively owned Page per call.
type Launcher interface {
	Launch(ctx context.Context) (Page, error)
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context) (Page, error)

// Launch calls f.
func (f LauncherFunc) Launch(ctx context.Context) (Page, error) {
	return f(ctx)
}

// BrowserLauncher exposes a chromedp-backed launcher as a Launcher.
func BrowserLauncher(l *browser.Launcher) Launcher {
	return LauncherFunc(func(ctx context.Context) (Page, error) {
		s, err := l.Launch(ctx)
		if err != nil {
			// Never hand back a typed nil inside the interface.
			return nil, err
		}
		return s, nil
	})
}

// -- Errors --

// ErrValueNotString is recorded for a field whose value is a number, boolean, object or array.
var ErrValueNotString = errors.New("value must be a string")

// SessionLaunchError means the browser could not be started.
type SessionLaunchError struct{ Err error }

func (e *SessionLaunchError) Error() string { return e.Err.Error() }
func (e *SessionLaunchError) Unwrap() error { return e.Err }

// NavigationError means the target page could not be loaded.
type NavigationError struct{ Err error }

func (e *NavigationError) Error() string { return e.Err.Error() }
func (e *NavigationError) Unwrap() error { return e.Err }

// CaptureError means the page could not be rendered or captured.
type CaptureError struct{ Err error }

func (e *CaptureError) Error() string { return e.Err.Error() }
func (e *CaptureError) Unwrap() error { return e.Err }

// Stage classifies a Submit error for logs and metrics.
func Stage(err error) string {
	var (
		launchErr  *SessionLaunchError
		navErr     *NavigationError
		captureErr *CaptureError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &launchErr):
		return "launch_error"
	case errors.As(err, &navErr):
		return "navigation_error"
	case errors.As(err, &captureErr):
		return "capture_error"
	default:
		return "error"
	}
}
