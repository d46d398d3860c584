package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"github.com/minleu94/technical-analysis-sub001/internal/browser"
	"github.com/minleu94/technical-analysis-sub001/internal/config"
	"github.com/minleu94/technical-analysis-sub001/internal/dataprocessing"
	"github.com/minleu94/technical-analysis-sub001/pkg/contracts/domain"
)

// PageLoadFunc loads one URL in the given browser context and returns the
// rendered document. Injectable so the retry machine is testable without a
// browser process.
type PageLoadFunc func(ctx context.Context, url string) (string, error)

// Fetcher issues one page load per (branch, date) pair through the session
// manager and classifies the outcome.
type Fetcher struct {
	cfg     config.ScraperConfig
	browser browser.Manager
	logger  *slog.Logger
	limiter *rate.Limiter
	load    PageLoadFunc

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration)
}

// NewFetcher creates a fetcher using the real chromedp page loader.
func NewFetcher(cfg config.ScraperConfig, mgr browser.Manager, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fetcher{
		cfg:     cfg,
		browser: mgr,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(cfg.RequestDelay), 1),
		sleep:   sleepCtx,
	}
	f.load = f.loadPage
	return f
}

// SetLoader replaces the page loader; used by tests.
func (f *Fetcher) SetLoader(load PageLoadFunc) { f.load = load }

// SetSleeper replaces the backoff sleeper; used by tests.
func (f *Fetcher) SetSleeper(sleep func(ctx context.Context, d time.Duration)) { f.sleep = sleep }

// SetDelay replaces the inter-request delay for the rest of the run.
func (f *Fetcher) SetDelay(d time.Duration) {
	f.cfg.RequestDelay = d
	f.limiter = rate.NewLimiter(rate.Every(d), 1)
}

// FetchDay fetches and extracts the table set for one (branch, date) pair.
// It retries up to the configured attempt budget, recreating the browser
// session on session faults. A nil error means the page yielded at least the
// minimum table count.
func (f *Fetcher) FetchDay(ctx context.Context, branch domain.BranchEntry, date time.Time) ([]dataprocessing.Table, error) {
	url, err := BuildURL(branch, date)
	if err != nil {
		return nil, err
	}

	log := f.logger.With(
		slog.String("branch", branch.SystemKey),
		slog.String("date", date.Format("2006-01-02")))

	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxRetries; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		tables, err := f.attempt(ctx, url, log)
		if err == nil {
			return tables, nil
		}
		lastErr = err

		class := Classify(err)
		if class == ClassFatal {
			return nil, err
		}

		backoff := f.cfg.RequestDelay * 2
		if class == ClassSessionFault {
			backoff = f.cfg.RequestDelay * 3
			if _, recreateErr := f.browser.Recreate(ctx); recreateErr != nil {
				log.Error("session recreate failed",
					slog.Int("attempt", attempt),
					slog.String("error", recreateErr.Error()))
			}
		}
		log.Warn("fetch attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", f.cfg.MaxRetries),
			slog.String("class", class.String()),
			slog.String("error", err.Error()))

		if attempt < f.cfg.MaxRetries {
			f.sleep(ctx, backoff)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("fetch failed after %d attempts: %w", f.cfg.MaxRetries, lastErr)
}

func (f *Fetcher) attempt(ctx context.Context, url string, log *slog.Logger) ([]dataprocessing.Table, error) {
	// A dead session is replaced before the load; this consumes no retry
	// budget beyond the current attempt.
	if !f.browser.IsAlive(ctx) {
		if _, err := f.browser.Recreate(ctx); err != nil {
			return nil, fmt.Errorf("session recreate: %w", err)
		}
	}
	browserCtx, err := f.browser.Ensure(ctx)
	if err != nil {
		return nil, fmt.Errorf("session ensure: %w", err)
	}

	html, err := f.load(browserCtx, url)
	if err != nil {
		return nil, err
	}

	// Error-shell detection is logged but never final: benign pages trip
	// these signatures often enough that extraction still gets its chance.
	if reason, suspect := detectErrorPage(html); suspect {
		log.Warn("page content matches error signature", slog.String("reason", reason))
	}

	tables, err := dataprocessing.ExtractTables(html)
	if err != nil {
		return nil, err
	}
	if len(tables) < f.cfg.MinTableCount {
		return nil, fmt.Errorf("page has %d tables, minimum is %d", len(tables), f.cfg.MinTableCount)
	}

	log.Debug("fetch succeeded", slog.Int("tables", len(tables)))
	return tables, nil
}

// loadPage is the chromedp-backed page loader.
func (f *Fetcher) loadPage(browserCtx context.Context, url string) (string, error) {
	navCtx, cancel := context.WithTimeout(browserCtx, f.cfg.PageLoadTimeout)
	defer cancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		// Best effort: stop a hung load so the next attempt starts clean.
		stopCtx, stopCancel := context.WithTimeout(browserCtx, 3*time.Second)
		_ = chromedp.Run(stopCtx, chromedp.Stop())
		stopCancel()
		return "", fmt.Errorf("navigate: %w", err)
	}

	// Soft wait for the body; absence is logged, not fatal.
	bodyCtx, bodyCancel := context.WithTimeout(browserCtx, 10*time.Second)
	if err := chromedp.Run(bodyCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		f.logger.Warn("body element not ready", slog.String("error", err.Error()))
	}
	bodyCancel()

	// Short fixed pause for client-side rendering.
	f.sleep(browserCtx, 1500*time.Millisecond)

	// Soft wait for a table element; some branches render without a table
	// wrapper in edge cases, so absence is logged only.
	tableCtx, tableCancel := context.WithTimeout(browserCtx, 5*time.Second)
	if err := chromedp.Run(tableCtx, chromedp.WaitVisible("table", chromedp.ByQuery)); err != nil {
		f.logger.Warn("no table element visible", slog.String("error", err.Error()))
	}
	tableCancel()

	var html string
	htmlCtx, htmlCancel := context.WithTimeout(browserCtx, f.cfg.ScriptTimeout)
	defer htmlCancel()
	if err := chromedp.Run(htmlCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return html, nil
}

// titleErrorKeywords flag an error page when they appear in the title.
var titleErrorKeywords = []string{"404", "error", "無法顯示", "錯誤"}

// bodyErrorKeywords flag an error page when they appear in the body text.
var bodyErrorKeywords = []string{
	"not found",
	"server error",
	"access denied",
	"service unavailable",
	"查無資料",
	"系統忙碌",
}

// shortBodyThreshold is the document size under which an error keyword in
// the body is treated as significant.
const shortBodyThreshold = 4096

func detectErrorPage(html string) (string, bool) {
	lower := strings.ToLower(html)

	title := extractTitle(lower)
	for _, kw := range titleErrorKeywords {
		if strings.Contains(title, kw) {
			return "title contains " + kw, true
		}
	}
	for _, kw := range bodyErrorKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return "body contains " + kw, true
		}
	}
	if len(html) < shortBodyThreshold {
		for _, kw := range append(titleErrorKeywords, "fail") {
			if strings.Contains(lower, kw) {
				return "short body with keyword " + kw, true
			}
		}
	}
	return "", false
}

func extractTitle(lowerHTML string) string {
	start := strings.Index(lowerHTML, "<title>")
	if start < 0 {
		return ""
	}
	end := strings.Index(lowerHTML[start:], "</title>")
	if end < 0 {
		return ""
	}
	return lowerHTML[start+len("<title>") : start+end]
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
