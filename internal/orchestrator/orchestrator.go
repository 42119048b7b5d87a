// File: internal/orchestrator/orchestrator.go
// Description: Drives one browser session through the DLS search form and captures the
// resulting map. It depends on the browser only through the Launcher and Page interfaces.

package orchestrator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/dlsmap/internal/config"
	"github.com/xkilldash9x/dlsmap/internal/observability"
)

// Orchestrator runs form submissions. It holds no per-request state, so one instance
// serves any number of concurrent submissions.
type Orchestrator struct {
	cfg      config.FormConfig
	launcher Launcher
	logger   *zap.Logger

	// sleep implements the fixed delays; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Orchestrator.
func New(cfg config.FormConfig, launcher Launcher, logger *zap.Logger) (*Orchestrator, error) {
	if launcher == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid form configuration: %w", err)
	}
	return &Orchestrator{
		cfg:      cfg,
		launcher: launcher,
		logger:   logger.Named("orchestrator"),
		sleep:    sleepContext,
	}, nil
}

// Submit launches a browser, applies fields to the form, waits for the map to render and
// returns a full-page screenshot. The browser session is always closed before Submit
// returns. Errors are *SessionLaunchError, *NavigationError or *CaptureError; problems
// with individual fields are reported in Result.FieldResults and never fail the call.
func (o *Orchestrator) Submit(ctx context.Context, fields FieldSet) (res *Result, err error) {
	start := time.Now()
	if fields == nil {
		fields = FieldSet{}
	}
	o.logger.Info("Received fields.", zap.Any("fields", fields))

	defer func() {
		observability.Submissions.WithLabelValues(Stage(err)).Inc()
		observability.SubmissionDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			o.logger.Error("Form submission failed.", zap.String("stage", Stage(err)), zap.Error(err))
		}
	}()

	// 1. Launch.
	page, err := o.launcher.Launch(ctx)
	if err != nil {
		return nil, &SessionLaunchError{Err: err}
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			o.logger.Warn("Browser session did not close cleanly.", zap.Error(closeErr))
		}
	}()

	// 2. Navigate and let client-side rendering catch up.
	o.logger.Info("Navigating to DLS website.", zap.String("url", o.cfg.TargetURL))
	if err := page.Navigate(ctx, o.cfg.TargetURL); err != nil {
		return nil, &NavigationError{Err: err}
	}
	if err := o.pause(ctx, page, o.cfg.SettleDelay); err != nil {
		return nil, &NavigationError{Err: err}
	}

	// 3. Fill in whatever fields we can.
	results := o.applyFields(ctx, page, fields)

	// 4. Give the map time to redraw, then capture it.
	o.logger.Info("Waiting for map to load.", zap.Duration("ceiling", o.cfg.RenderDelay))
	if err := o.pause(ctx, page, o.cfg.RenderDelay); err != nil {
		return nil, &CaptureError{Err: err}
	}

	png, err := page.Screenshot(ctx)
	if err != nil {
		return nil, &CaptureError{Err: err}
	}
	o.logger.Info("Screenshot captured.", zap.Int("bytes", len(png)))

	return &Result{
		Message:      SuccessMessage,
		Fields:       fields,
		Screenshot:   base64.StdEncoding.EncodeToString(png),
		FieldResults: results,
	}, nil
}

// applyFields sets each recognized field in order. Nothing here aborts the submission.
func (o *Orchestrator) applyFields(ctx context.Context, page Page, fields FieldSet) []FieldResult {
	results := make([]FieldResult, 0, len(config.FieldKeys))

	for _, key := range config.FieldKeys {
		raw := fields[key]
		r := FieldResult{Field: key, Selector: o.cfg.Selectors[key], Value: displayValue(raw)}
		log := o.logger.With(zap.String("field", key), zap.String("selector", r.Selector))

		switch _, isString := raw.(string); {
		case isEmptyValue(raw):
			r.Status = FieldStatusSkipped
		case !isString:
			r.Status, r.Error = FieldStatusFailed, ErrValueNotString.Error()
			log.Warn("Field value is not a string.", zap.Any("value", raw))
		default:
			o.applyField(ctx, page, &r, log)
		}

		observability.FieldResults.WithLabelValues(key, string(r.Status)).Inc()
		results = append(results, r)
	}
	return results
}

func (o *Orchestrator) applyField(ctx context.Context, page Page, r *FieldResult, log *zap.Logger) {
	exists, err := page.Exists(ctx, r.Selector)
	if err != nil {
		r.Status, r.Error = FieldStatusFailed, err.Error()
		log.Warn("Could not look up field.", zap.Error(err))
		return
	}
	if !exists {
		r.Status = FieldStatusMissing
		log.Warn("Selector not found.")
		return
	}

	log.Info("Setting field.", zap.String("value", r.Value))
	applied, err := page.Select(ctx, r.Selector, r.Value)
	if err != nil {
		r.Status, r.Error = FieldStatusFailed, err.Error()
		log.Warn("Could not set field.", zap.Error(err))
		return
	}
	r.Status, r.Applied = FieldStatusSet, applied

	// The next select's options are loaded in response to this change.
	if err := o.pause(ctx, page, o.cfg.FieldDelay); err != nil {
		log.Debug("Field delay interrupted.", zap.Error(err))
	}
}

// isEmptyValue reports whether v counts as "not supplied": null, "", false or zero.
func isEmptyValue(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case bool:
		return !v
	case float64:
		return v == 0
	case json.Number:
		f, err := v.Float64()
		return err == nil && f == 0
	default:
		return false
	}
}

// displayValue renders a field value for FieldResult.Value.
func displayValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// pause waits d, or up to d for network idleness under the idle strategy.
func (o *Orchestrator) pause(ctx context.Context, page Page, d time.Duration) error {
	if o.cfg.WaitStrategy == config.WaitIdle {
		return page.WaitIdle(ctx, d)
	}
	return o.sleep(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
