// Package browser manages the driven browser lifecycle and the tab pool.
package browser

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/openshelf/fedcat/config"
)

// Browser wraps a rod browser (either one we launched or an external one we
// attached to) plus a reusable page pool. It is safe for concurrent use.
type Browser struct {
	browser     *rod.Browser
	pool        rod.Pool[rod.Page]
	cfg         config.BrowserConfig
	launched    bool
	activePages atomic.Int32
	log         *slog.Logger
}

// New connects to the browser. When cfg.CDPURL is set it attaches to that
// endpoint; otherwise it launches a headless instance with automation
// markers suppressed.
func New(cfg config.BrowserConfig, log *slog.Logger) (*Browser, error) {
	var (
		controlURL string
		launched   bool
	)

	if cfg.CDPURL != "" {
		controlURL = cfg.CDPURL
	} else {
		l := launcher.New().
			Headless(cfg.Headless).
			NoSandbox(cfg.NoSandbox)
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}

		// Legacy OPACs sit behind the same bot walls as everything else.
		l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		l.Delete(flags.Flag("enable-automation"))
		l.Set(flags.Flag("disable-popup-blocking"))
		l.Set(flags.Flag("disable-background-timer-throttling"))
		l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
		l.Set(flags.Flag("disable-component-update"))
		l.Set(flags.Flag("disable-default-apps"))
		l.Set(flags.Flag("disable-dev-shm-usage"))
		l.Set(flags.Flag("disable-extensions"))
		l.Set(flags.Flag("no-first-run"))

		var err error
		controlURL, err = l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		launched = true
		log.Info("browser launched", "controlURL", controlURL)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	if !launched {
		log.Info("attached to external browser", "controlURL", controlURL)
	}

	return &Browser{
		browser:  b,
		pool:     rod.NewPagePool(cfg.MaxPages),
		cfg:      cfg,
		launched: launched,
		log:      log,
	}, nil
}

// Rod exposes the underlying browser for callers that open their own tabs
// (session acquisition's auxiliary tab).
func (b *Browser) Rod() *rod.Browser { return b.browser }

// Acquire borrows a tab from the pool, creating one on demand.
func (b *Browser) Acquire() (*rod.Page, error) {
	page, err := b.pool.Get(func() (*rod.Page, error) {
		return b.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return nil, fmt.Errorf("browser: acquire page: %w", err)
	}
	b.activePages.Add(1)
	return page, nil
}

// Release blanks the tab and returns it to the pool. Blanking uses the
// original page reference so cleanup succeeds even after the request
// context has expired.
func (b *Browser) Release(page *rod.Page) {
	if navErr := page.Navigate("about:blank"); navErr != nil {
		b.log.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
	}
	b.pool.Put(page)
	b.activePages.Add(-1)
}

// ActivePages reports the number of borrowed tabs.
func (b *Browser) ActivePages() int { return int(b.activePages.Load()) }

// MaxPages reports the pool capacity.
func (b *Browser) MaxPages() int { return b.cfg.MaxPages }

// Close drains the page pool and, for launched browsers, kills the process.
// Attached browsers are only disconnected.
func (b *Browser) Close() {
	b.log.Info("browser shutting down: draining page pool")
	b.pool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	if b.launched {
		b.browser.MustClose()
	} else {
		_ = b.browser.Close()
	}
	b.log.Info("browser shutdown complete")
}
