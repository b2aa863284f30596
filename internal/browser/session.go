// Package browser manages the single shared browser process used by all
// render batches. The session is launched lazily on first use, reused
// across batches, and relaunched if the underlying process dies.
package browser

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog/log"

	"github.com/phoenixlabs/renderd/internal/config"
	"github.com/phoenixlabs/renderd/internal/metrics"
	"github.com/phoenixlabs/renderd/internal/types"
	"github.com/phoenixlabs/renderd/pkg/version"
)

// State describes the lifecycle of the shared browser session.
type State int32

// Session lifecycle states. The only transitions are
// Uninitialized -> Launching -> Ready and any state -> Closed;
// a dead Ready browser goes back through Launching on the next Ensure.
const (
	StateUninitialized State = iota
	StateLaunching
	StateReady
	StateClosed
)

// String returns a human-readable state name for logs and health output.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLaunching:
		return "launching"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Driver is the page factory the render layer depends on. The concrete
// implementation is Session; tests substitute fakes.
type Driver interface {
	// Ensure makes sure a live browser process exists, launching or
	// relaunching as needed. It must be called before NewPage.
	Ensure(ctx context.Context) error

	// NewPage opens a fresh tab. The caller owns the page and must
	// close it exactly once.
	NewPage(ctx context.Context) (Page, error)
}

// Page is one browser tab. Implementations wrap a CDP page; tests use
// in-memory fakes.
type Page interface {
	// Navigate starts loading the url.
	Navigate(ctx context.Context, url string) error

	// WaitDOMReady blocks until the document has finished parsing
	// (readyState interactive or complete). It does not wait for
	// subresources or network idle.
	WaitDOMReady(ctx context.Context) error

	// HTML returns the current serialized DOM.
	HTML(ctx context.Context) (string, error)

	// Close closes the tab. Must be called exactly once per page.
	Close() error
}

// Session owns the single shared browser process.
//
// All state transitions happen under mu. The launch itself also happens
// under mu: batches are serialized by the request gate, so there is no
// contention worth optimizing for, and holding the lock keeps the
// "at most one launch attempt at a time" invariant trivially true.
type Session struct {
	cfg *config.Config

	mu       sync.Mutex
	state    State
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// NewSession creates an unlaunched session. No browser process exists
// until the first Ensure call.
func NewSession(cfg *config.Config) *Session {
	return &Session{
		cfg:   cfg,
		state: StateUninitialized,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ensure guarantees a live browser process, launching on first use and
// relaunching if a previously Ready process has died. A launch failure
// leaves the session uninitialized so a later call may retry.
func (s *Session) Ensure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed:
		return types.ErrSessionClosed
	case StateReady:
		if s.probeLocked() {
			return nil
		}
		log.Warn().Msg("Browser process is not responding, relaunching")
		s.teardownLocked()
	}

	return s.launchLocked(ctx)
}

// NewPage opens a fresh stealth-patched tab with the standard viewport
// and user agent. Ensure must have succeeded first.
func (s *Session) NewPage(ctx context.Context) (Page, error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil, types.ErrSessionClosed
	}
	if s.state != StateReady {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: session is %s", types.ErrBrowserCrashed, s.state)
	}
	browser := s.browser
	s.mu.Unlock()

	page, err := stealth.Page(browser.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	if err := applyPageDefaults(page); err != nil {
		_ = page.Close()
		return nil, err
	}

	return &rodPage{page: page}, nil
}

// Warm launches the browser eagerly. Failures are logged, not fatal:
// the session launches lazily on the first batch instead.
func (s *Session) Warm(ctx context.Context) {
	if err := s.Ensure(ctx); err != nil {
		log.Warn().Err(err).Msg("Browser warm-up failed, will launch lazily on first batch")
		return
	}
	log.Info().Msg("Browser warmed up")
}

// Close shuts the browser down and marks the session closed. Safe to
// call multiple times; after Close every Ensure and NewPage fails with
// ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil
	}
	s.teardownLocked()
	s.state = StateClosed
	log.Info().Msg("Browser session closed")
	return nil
}

// launchLocked starts a new browser process. Must be called with mu
// held and no live browser.
func (s *Session) launchLocked(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.state = StateLaunching
	log.Info().
		Bool("headless", s.cfg.Headless).
		Str("browser_path", s.cfg.BrowserPath).
		Msg("Launching browser")

	// The browser outlives the triggering request, so it is deliberately
	// not bound to ctx; ctx only gates whether we start the launch.
	l := createLauncher(s.cfg)
	url, err := l.Launch()
	if err != nil {
		s.state = StateUninitialized
		metrics.BrowserLaunches.WithLabelValues("error").Inc()
		return types.NewLaunchError(fmt.Errorf("%w: %v", types.ErrBrowserLaunch, err))
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		l.Kill()
		s.state = StateUninitialized
		metrics.BrowserLaunches.WithLabelValues("error").Inc()
		return types.NewLaunchError(fmt.Errorf("%w: connect: %v", types.ErrBrowserLaunch, err))
	}

	s.launcher = l
	s.browser = browser
	s.state = StateReady
	metrics.BrowserLaunches.WithLabelValues("ok").Inc()

	log.Info().Str("control_url", url).Msg("Browser ready")
	return nil
}

// probeLocked checks that the browser process still answers CDP calls.
// Must be called with mu held and state Ready.
func (s *Session) probeLocked() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := proto.BrowserGetVersion{}.Call(s.browser.Context(ctx))
	if err != nil {
		log.Debug().Err(err).Msg("Browser liveness probe failed")
		return false
	}
	return true
}

// teardownLocked releases the current browser process, tolerating a
// process that is already gone. Must be called with mu held.
func (s *Session) teardownLocked() {
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			log.Debug().Err(err).Msg("Error closing browser, process may already be gone")
		}
		s.browser = nil
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
		s.launcher = nil
	}
	s.state = StateUninitialized
}

// createLauncher builds a launcher with flags tuned for running a
// client-rendering workload inside a container.
func createLauncher(cfg *config.Config) *launcher.Launcher {
	l := launcher.New()

	if cfg.BrowserPath != "" {
		l = l.Bin(cfg.BrowserPath)
	}

	if cfg.Headless {
		l = l.Set("headless", "new")
	} else {
		l = l.Headless(false)
	}

	// Container flags
	l = l.Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-gpu-sandbox")

	// Keep navigator.webdriver and the automation infobar off so
	// client-side frameworks render the same markup a real visitor gets.
	l = l.Set("disable-blink-features", "AutomationControlled")
	l = l.Delete("enable-automation")

	// Realistic browser behavior
	l = l.Set("accept-lang", "en-US,en;q=0.9").
		Set("window-size", "1920,1080").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-infobars").
		Set("disable-search-engine-choice-screen")

	// Stability for a long-lived shared process
	l = l.Set("disable-background-networking").
		Set("disable-default-apps").
		Set("disable-extensions").
		Set("disable-sync").
		Set("mute-audio").
		Set("disable-renderer-backgrounding").
		Set("js-flags", "--max-old-space-size=256")

	if isARM() {
		l = l.Set("disable-gpu-compositing")
	}

	return l
}

func isARM() bool {
	return runtime.GOARCH == "arm" || runtime.GOARCH == "arm64"
}

// applyPageDefaults sets the user agent and viewport before navigation
// so the first document request already carries them.
func applyPageDefaults(page *rod.Page) error {
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      version.UserAgent,
		AcceptLanguage: "en-US,en;q=0.9",
	}); err != nil {
		return fmt.Errorf("failed to set user agent: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1920,
		Height:            1080,
		DeviceScaleFactor: 1,
		Mobile:            false,
	}); err != nil {
		return fmt.Errorf("failed to set viewport: %w", err)
	}
	return nil
}
