package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// ChromeOptions configures the headless browser session
type ChromeOptions struct {
	ExecPath  string
	Headless  bool
	Timeout   time.Duration
	Selectors Selectors
}

// ChromeBrowser is the chromedp-backed Browser
type ChromeBrowser struct {
	ctx         context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
	timeout     time.Duration
	sel         Selectors
	started     bool
	closed      bool
}

// NewChromeBrowser launches Chrome and waits for the session to come up.
// Any failure here is ErrEnvironment: without a browser there is no schedule.
func NewChromeBrowser(parent context.Context, opts ChromeOptions) (*ChromeBrowser, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRequestTimeout
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-infobars", true),
	)
	if !opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, allocOpts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx, chromedp.WithErrorf(log.Printf))

	b := &ChromeBrowser{
		ctx:         ctx,
		cancelCtx:   cancelCtx,
		cancelAlloc: cancelAlloc,
		timeout:     opts.Timeout,
		sel:         opts.Selectors,
	}

	// The first Run allocates the browser and must not carry a deadline,
	// otherwise the browser dies with it. Bound the wait from outside.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(ctx) }()

	select {
	case err := <-started:
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("%w: starting Chrome: %v", ErrEnvironment, err)
		}
	case <-time.After(opts.Timeout):
		b.Close()
		return nil, fmt.Errorf("%w: Chrome did not start within %s", ErrEnvironment, opts.Timeout)
	}
	b.started = true

	log.Printf("✅ Browser session started")
	return b, nil
}

// Navigate loads the lookup page
func (b *ChromeBrowser) Navigate(ctx context.Context, url string) error {
	if err := b.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("%w: loading %s: %v", ErrEnvironment, url, err)
	}
	return nil
}

// FindAndSelect types the address, waits for suggestions and clicks the
// single exact match
func (b *ChromeBrowser) FindAndSelect(ctx context.Context, addr Address) error {
	sel := b.sel
	err := b.run(ctx,
		chromedp.WaitVisible(sel.SearchInput, chromedp.ByQuery),
		chromedp.Clear(sel.SearchInput, chromedp.ByQuery),
		chromedp.SendKeys(sel.SearchInput, addr.Query(), chromedp.ByQuery),
		chromedp.WaitVisible(sel.Suggestion, chromedp.ByQuery),
	)
	if err != nil {
		return b.stepError("address search", err)
	}

	var nodes []*cdp.Node
	var texts []string
	err = b.run(ctx,
		chromedp.Nodes(sel.Suggestion, &nodes, chromedp.ByQueryAll),
		chromedp.Evaluate(suggestionTextsJS(sel.Suggestion), &texts),
	)
	if err != nil {
		return b.stepError("reading suggestions", err)
	}
	if len(nodes) != len(texts) {
		return fmt.Errorf("%w: suggestion list changed while reading (%d nodes, %d texts)", ErrScrapeStructure, len(nodes), len(texts))
	}

	idx, err := addr.PickSuggestion(texts)
	if err != nil {
		return err
	}
	log.Printf("Selecting suggestion %q", texts[idx])

	actions := []chromedp.Action{chromedp.MouseClickNode(nodes[idx])}
	if sel.Submit != "" {
		actions = append(actions, chromedp.Click(sel.Submit, chromedp.ByQuery, chromedp.NodeVisible))
	}
	if err := b.run(ctx, actions...); err != nil {
		return b.stepError("selecting address", err)
	}
	return nil
}

// ReadRows waits for the schedule and hands its HTML to ExtractRows
func (b *ChromeBrowser) ReadRows(ctx context.Context) ([]ScrapedRow, error) {
	var html string
	err := b.run(ctx,
		chromedp.WaitVisible(b.sel.Row, chromedp.ByQuery),
		chromedp.OuterHTML(b.sel.Results, &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, b.stepError("reading schedule", err)
	}
	return ExtractRows(html, b.sel)
}

// Close shuts Chrome down; safe to call more than once
func (b *ChromeBrowser) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true

	// chromedp.Cancel waits for a browser that never came up, so a
	// failed start only cancels the contexts
	var err error
	if b.started {
		err = chromedp.Cancel(b.ctx)
	}
	b.cancelCtx()
	b.cancelAlloc()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("closing browser: %w", err)
	}
	return nil
}

// run executes actions with the per-step timeout. ctx only contributes
// cancellation; the browser itself lives on b.ctx.
func (b *ChromeBrowser) run(ctx context.Context, actions ...chromedp.Action) error {
	stepCtx, cancel := context.WithTimeout(b.ctx, b.timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(stepCtx, actions...)
}

// stepError classifies a failed step: a selector that never appeared means
// the page changed, anything else is the browser's problem
func (b *ChromeBrowser) stepError(step string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: expected elements did not appear within %s", ErrScrapeStructure, step, b.timeout)
	}
	return fmt.Errorf("%w: %s: %v", ErrEnvironment, step, err)
}

func suggestionTextsJS(selector string) string {
	quoted, _ := json.Marshal(selector)
	return fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(e => e.textContent.trim())`, quoted)
}
