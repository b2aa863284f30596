// Package render implements batch rendering against the shared browser
// session: one page worker per url, scheduled in bounded waves.
package render

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/phoenixlabs/renderd/internal/browser"
	"github.com/phoenixlabs/renderd/internal/metrics"
	"github.com/phoenixlabs/renderd/internal/sanitize"
	"github.com/phoenixlabs/renderd/internal/types"
)

// Worker renders a single url in a fresh tab. It owns the full
// lifecycle of that tab: open, navigate, settle, capture, sanitize,
// close. Any failure along the way yields an empty result; a worker
// never fails its batch.
type Worker struct {
	driver      browser.Driver
	rules       *sanitize.Manager
	navTimeout  time.Duration
	settleDelay time.Duration
}

// NewWorker creates a page worker.
func NewWorker(driver browser.Driver, rules *sanitize.Manager, navTimeout, settleDelay time.Duration) *Worker {
	return &Worker{
		driver:      driver,
		rules:       rules,
		navTimeout:  navTimeout,
		settleDelay: settleDelay,
	}
}

// Render processes one batch item. The index is carried for logging
// only; result ordering is the scheduler's responsibility.
//
// A recover guard turns a panicking CDP call into a failed item rather
// than a dead batch.
func (w *Worker) Render(ctx context.Context, req types.RenderRequest, index int) (result types.RenderResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("url", req.URL).
				Int("index", index).
				Msg("Page worker panicked")
			result = types.RenderResult{}
		}
		status := "error"
		if result.OK {
			status = "ok"
		}
		metrics.RecordPage(status, time.Since(start))
	}()

	page, err := w.driver.NewPage(ctx)
	if err != nil {
		log.Warn().Err(err).Str("url", req.URL).Int("index", index).Msg("Failed to open page")
		return types.RenderResult{}
	}
	metrics.OpenPages.Inc()

	// The page is closed exactly once, no matter how rendering ends.
	// A close failure means the tab is already gone; the shared browser
	// is unaffected either way.
	defer func() {
		if err := page.Close(); err != nil {
			log.Debug().Err(err).Str("url", req.URL).Int("index", index).Msg("Page close failed")
		}
		metrics.OpenPages.Dec()
	}()

	navCtx, cancel := context.WithTimeout(ctx, w.navTimeout)
	defer cancel()

	if err := page.Navigate(navCtx, req.URL); err != nil {
		log.Warn().Err(err).Str("url", req.URL).Int("index", index).Msg("Navigation failed")
		return types.RenderResult{}
	}

	if err := page.WaitDOMReady(navCtx); err != nil {
		log.Warn().Err(err).Str("url", req.URL).Int("index", index).Msg("Document never became ready")
		return types.RenderResult{}
	}

	// Fixed settle delay for client-side hydration. The document is
	// parsed at this point; scripts still need a moment to fill it in.
	if w.settleDelay > 0 && !sleepWithContext(ctx, w.settleDelay) {
		log.Debug().Str("url", req.URL).Int("index", index).Msg("Settle delay interrupted")
		return types.RenderResult{}
	}

	html, err := page.HTML(ctx)
	if err != nil {
		log.Warn().Err(err).Str("url", req.URL).Int("index", index).Msg("Failed to capture html")
		return types.RenderResult{}
	}

	log.Debug().
		Str("url", req.URL).
		Int("index", index).
		Int("raw_bytes", len(html)).
		Dur("elapsed", time.Since(start)).
		Msg("Page rendered")

	return types.RenderResult{
		Data: w.rules.Get().Clean(html),
		OK:   true,
	}
}

// sleepWithContext sleeps for the specified duration or until the
// context is canceled. Returns true if the sleep completed normally.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
