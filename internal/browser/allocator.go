// File: internal/browser/allocator.go
package browser

import (
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/dlsmap/internal/config"
)

// launchFlags computes the Chrome command-line flags for a session. Keys are flag names
// without the leading dashes; a value of true means a bare switch.
func launchFlags(cfg config.BrowserConfig) map[string]interface{} {
	flags := map[string]interface{}{
		"headless":    cfg.Headless,
		"window-size": fmt.Sprintf("%d,%d", cfg.Viewport.Width, cfg.Viewport.Height),
		// /dev/shm is tiny in most containers.
		"disable-dev-shm-usage": true,
	}

	if cfg.NoSandbox {
		flags["no-sandbox"] = true
		flags["disable-setuid-sandbox"] = true
	}
	if cfg.DisableGPU {
		flags["disable-gpu"] = true
	}

	// Custom arguments from the config file win over the computed ones.
	for _, arg := range cfg.Args {
		arg = strings.TrimPrefix(strings.TrimSpace(arg), "--")
		if arg == "" {
			continue
		}
		name, value, hasValue := strings.Cut(arg, "=")
		if hasValue {
			flags[name] = value
		} else {
			flags[name] = true
		}
	}
	return flags
}

// AllocatorOptions builds the exec allocator options for one browser process.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	for name, value := range launchFlags(cfg) {
		opts = append(opts, chromedp.Flag(name, value))
	}

	// Without an explicit path chromedp searches the usual Chrome/Chromium install locations.
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}
