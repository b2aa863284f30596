package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
)

// readyStatePollInterval is how often WaitDOMReady re-checks
// document.readyState.
const readyStatePollInterval = 100 * time.Millisecond

// rodPage adapts a CDP page to the Page interface.
type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	if err := p.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// WaitDOMReady polls document.readyState until the document has been
// parsed. "interactive" is enough: the DOM exists, even if images and
// other subresources are still loading.
func (p *rodPage) WaitDOMReady(ctx context.Context) error {
	for {
		res, err := p.page.Context(ctx).Eval(`() => document.readyState`)
		if err != nil {
			return fmt.Errorf("failed to read document.readyState: %w", err)
		}
		switch res.Value.Str() {
		case "interactive", "complete":
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readyStatePollInterval):
		}
	}
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("failed to capture page html: %w", err)
	}
	return html, nil
}

func (p *rodPage) Close() error {
	return p.page.Close()
}
