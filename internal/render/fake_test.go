package render

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phoenixlabs/renderd/internal/browser"
	"github.com/phoenixlabs/renderd/internal/sanitize"
)

// fakeDriver implements browser.Driver in memory so the scheduler and
// worker can be tested without a browser process.
type fakeDriver struct {
	mu sync.Mutex

	ensureErr   error
	ensureCalls int
	pageErr     error

	// Per-url behaviors
	failNavigate map[string]bool
	failHTML     map[string]bool
	panicHTML    map[string]bool
	closeErr     error

	// Delay inside HTML so wave members actually overlap.
	renderDelay time.Duration

	opened  atomic.Int32
	closed  atomic.Int32
	open    atomic.Int32
	maxOpen atomic.Int32
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		failNavigate: make(map[string]bool),
		failHTML:     make(map[string]bool),
		panicHTML:    make(map[string]bool),
	}
}

func (d *fakeDriver) Ensure(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensureCalls++
	return d.ensureErr
}

func (d *fakeDriver) NewPage(ctx context.Context) (browser.Page, error) {
	if d.pageErr != nil {
		return nil, d.pageErr
	}
	d.opened.Add(1)
	now := d.open.Add(1)
	for {
		peak := d.maxOpen.Load()
		if now <= peak || d.maxOpen.CompareAndSwap(peak, now) {
			break
		}
	}
	return &fakePage{driver: d}, nil
}

func (d *fakeDriver) ensureCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ensureCalls
}

// fakePage implements browser.Page. Rendered html embeds the url so
// tests can verify result ordering.
type fakePage struct {
	driver *fakeDriver
	url    string
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.url = url
	if p.driver.failNavigate[url] {
		return fmt.Errorf("net::ERR_NAME_NOT_RESOLVED at %s", url)
	}
	return nil
}

func (p *fakePage) WaitDOMReady(ctx context.Context) error {
	return ctx.Err()
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	if d := p.driver.renderDelay; d > 0 {
		time.Sleep(d)
	}
	if p.driver.panicHTML[p.url] {
		panic("cdp connection lost")
	}
	if p.driver.failHTML[p.url] {
		return "", fmt.Errorf("page crashed at %s", p.url)
	}
	return fmt.Sprintf("<html><head></head><body><p>%s</p></body></html>", p.url), nil
}

func (p *fakePage) Close() error {
	p.driver.closed.Add(1)
	p.driver.open.Add(-1)
	return p.driver.closeErr
}

// testWorker wires a worker around the fake driver with the default
// sanitizer rules and no settle delay.
func testWorker(d *fakeDriver) *Worker {
	m, err := sanitize.NewManager("", false)
	if err != nil {
		panic(err)
	}
	return NewWorker(d, m, 5*time.Second, 0)
}
