// Package browser owns the single headless-browser session shared by all
// fetches in a run. Session creation is expensive, so one session is reused
// and recreated only when it dies. Use is fully serial: the orchestrator
// guarantees at most one fetch in flight, so there is no internal locking.
package browser

import (
	"context"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/minleu94/technical-analysis-sub001/internal/config"
)

// Manager is the lifecycle interface the fetcher depends on.
type Manager interface {
	// Ensure returns a live browser context, creating the session if needed.
	Ensure(ctx context.Context) (context.Context, error)
	// IsAlive is a cheap liveness probe; any failure means not alive.
	IsAlive(ctx context.Context) bool
	// Recreate tears down the current session and builds a fresh one.
	Recreate(ctx context.Context) (context.Context, error)
	// Cleanup terminates the session. Idempotent, safe with no session.
	Cleanup()
}

// ChromeManager implements Manager on a chromedp exec allocator.
type ChromeManager struct {
	cfg    config.ScraperConfig
	logger *slog.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	ctxCancel   context.CancelFunc
}

// NewChromeManager creates a manager; no browser process is started until
// the first Ensure call.
func NewChromeManager(cfg config.ScraperConfig, logger *slog.Logger) *ChromeManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChromeManager{cfg: cfg, logger: logger}
}

// Ensure returns the live browser context, creating the session on demand.
func (m *ChromeManager) Ensure(ctx context.Context) (context.Context, error) {
	if m.browserCtx != nil && m.browserCtx.Err() == nil {
		return m.browserCtx, nil
	}
	return m.create(ctx)
}

func (m *ChromeManager) create(ctx context.Context) (context.Context, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.cfg.Headless),
		// Images are never needed for table extraction.
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		// The upstream site serves an error shell to obvious automation.
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(1366, 900),
	)

	m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	m.browserCtx, m.ctxCancel = chromedp.NewContext(m.allocCtx)

	// Starting the browser eagerly surfaces launch failures here instead of
	// inside the first page load.
	startCtx, cancel := context.WithTimeout(m.browserCtx, m.cfg.PageLoadTimeout)
	defer cancel()
	if err := chromedp.Run(startCtx); err != nil {
		m.teardown()
		return nil, err
	}

	m.logger.Info("browser session created", slog.Bool("headless", m.cfg.Headless))
	return m.browserCtx, nil
}

// IsAlive probes the session by evaluating the current URL. Any error,
// including a dead browser process, reports not alive.
func (m *ChromeManager) IsAlive(ctx context.Context) bool {
	if m.browserCtx == nil || m.browserCtx.Err() != nil {
		return false
	}
	probeCtx, cancel := context.WithTimeout(m.browserCtx, 5*time.Second)
	defer cancel()

	var href string
	if err := chromedp.Run(probeCtx, chromedp.Evaluate(`window.location.href`, &href)); err != nil {
		m.logger.Debug("liveness probe failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

// Recreate tears down the current session, swallowing teardown errors, and
// creates a fresh one.
func (m *ChromeManager) Recreate(ctx context.Context) (context.Context, error) {
	m.logger.Warn("recreating browser session")
	m.teardown()
	return m.create(ctx)
}

// Cleanup terminates the session at the end of a run.
func (m *ChromeManager) Cleanup() {
	if m.browserCtx == nil {
		return
	}
	m.logger.Info("browser session cleanup")
	m.teardown()
}

func (m *ChromeManager) teardown() {
	if m.browserCtx != nil {
		// Best-effort graceful browser shutdown before cancelling contexts.
		_ = chromedp.Cancel(m.browserCtx)
	}
	if m.ctxCancel != nil {
		m.ctxCancel()
	}
	if m.allocCancel != nil {
		m.allocCancel()
	}
	m.browserCtx = nil
	m.ctxCancel = nil
	m.allocCtx = nil
	m.allocCancel = nil
}
