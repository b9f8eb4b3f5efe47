// internal/browser/allocator.go
package browser

import (
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/pilot-cli/internal/config"
)

// DefaultAllocatorOptions builds the Chrome launch flags for a session.
// Extra args use the "--name=value" or "--name" form.
func DefaultAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-plugins", true),
		chromedp.Flag("hide-scrollbars", true),
	)

	// DefaultExecAllocatorOptions already contains headless.
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	if cfg.Width > 0 && cfg.Height > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.Width, cfg.Height))
	}

	if cfg.IgnoreTLSErrors {
		opts = append(opts,
			chromedp.Flag("ignore-certificate-errors", true),
			chromedp.Flag("allow-insecure-localhost", true),
		)
	}

	for _, arg := range cfg.Args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name == "" {
			continue
		}
		if hasValue {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	return opts
}
