package cdp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/stealthbrowse/internal/browser"
)

// page is one tab, driven through its own chromedp context.
type page struct {
	owner  *browserContext
	id     target.ID
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	setupOnce sync.Mutex
	ready     bool
	closed    atomic.Bool
}

var _ browser.Page = (*page)(nil)

func (p *page) ID() string { return string(p.id) }

func (p *page) IsClosed() bool {
	return p.closed.Load() || p.ctx.Err() != nil
}

func (p *page) markClosed() { p.closed.Store(true) }

// ensureReady attaches to the tab and applies per-page setup the first time
// it is used.
func (p *page) ensureReady(ctx context.Context) error {
	p.setupOnce.Lock()
	defer p.setupOnce.Unlock()
	if p.ready {
		return nil
	}
	if err := runBounded(ctx, p.ctx, p.owner.setupActions(p.logger)...); err != nil {
		return fmt.Errorf("failed to prepare tab: %w", err)
	}
	p.ready = true
	return nil
}

// run executes actions on the tab, bounded by ctx. A done ctx takes priority
// over whatever error chromedp reports for the interrupted action.
func (p *page) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.IsClosed() {
		return browser.ErrPageClosed
	}
	if err := p.ensureReady(ctx); err != nil {
		return err
	}
	combined, cancel := CombineContext(p.ctx, ctx)
	defer cancel()

	err := chromedp.Run(combined, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *page) URL(ctx context.Context) (string, error) {
	var u string
	err := p.run(ctx, chromedp.Location(&u))
	return u, err
}

func (p *page) Title(ctx context.Context) (string, error) {
	var t string
	err := p.run(ctx, chromedp.Title(&t))
	return t, err
}

// Navigate returns once the new document is parsed and has a body. Slow
// subresources do not hold it up.
func (p *page) Navigate(ctx context.Context, url string) error {
	return p.run(ctx,
		navigateDOMReady(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// navigateDOMReady issues Page.navigate and waits for the DOMContentLoaded
// lifecycle event of the loader it started, instead of the load event
// chromedp.Navigate waits for.
func navigateDOMReady(url string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		w := newDOMReadyWaiter()
		lctx, cancel := context.WithCancel(ctx)
		defer cancel()
		chromedp.ListenTarget(lctx, w.observe)

		_, loader, errorText, _, err := cdppage.Navigate(url).Do(ctx)
		switch {
		case err != nil:
			return err
		case errorText != "":
			return fmt.Errorf("page load error %s", errorText)
		}
		w.expect(loader)

		select {
		case <-w.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// domReadyWaiter matches DOMContentLoaded events against one loader. Events
// can arrive before Page.navigate returns the loader id, so they are kept.
type domReadyWaiter struct {
	mu     sync.Mutex
	seen   map[cdp.LoaderID]bool
	loader cdp.LoaderID
	armed  bool
	once   sync.Once
	done   chan struct{}
}

func newDOMReadyWaiter() *domReadyWaiter {
	return &domReadyWaiter{seen: make(map[cdp.LoaderID]bool), done: make(chan struct{})}
}

func (w *domReadyWaiter) observe(ev interface{}) {
	e, ok := ev.(*cdppage.EventLifecycleEvent)
	if !ok || e.Name != "DOMContentLoaded" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seen[e.LoaderID] = true
	if w.armed && e.LoaderID == w.loader {
		w.finish()
	}
}

// expect arms the waiter. An empty loader is a same-document navigation,
// which has no new document to wait for.
func (w *domReadyWaiter) expect(loader cdp.LoaderID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loader, w.armed = loader, true
	if loader == "" || w.seen[loader] {
		w.finish()
	}
}

func (w *domReadyWaiter) finish() {
	w.once.Do(func() { close(w.done) })
}

func (p *page) Content(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *page) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	var buf []byte
	var action chromedp.Action
	if fullPage {
		// Quality 100 keeps the capture lossless PNG.
		action = chromedp.FullScreenshot(&buf, 100)
	} else {
		action = chromedp.CaptureScreenshot(&buf)
	}
	if err := p.run(ctx, action); err != nil {
		return nil, err
	}
	return buf, nil
}

// Evaluate runs script in the page and returns its value as JSON. Promises
// are awaited.
func (p *page) Evaluate(ctx context.Context, script string) (json.RawMessage, error) {
	var raw []byte
	err := p.run(ctx, chromedp.Evaluate(script, &raw, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithAwaitPromise(true).WithReturnByValue(true)
	}))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(raw), nil
}

func (p *page) WaitForSelector(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

const boundingBoxScript = `((sel) => {
  const el = document.querySelector(sel);
  if (!el) return { state: 'missing' };
  let r = el.getBoundingClientRect();
  if (r.bottom < 0 || r.right < 0 || r.top > window.innerHeight || r.left > window.innerWidth) {
    el.scrollIntoView({ block: 'center', inline: 'center' });
    r = el.getBoundingClientRect();
  }
  const style = window.getComputedStyle(el);
  if (r.width === 0 || r.height === 0 || style.visibility === 'hidden' || style.display === 'none') {
    return { state: 'hidden' };
  }
  return { state: 'visible', x: r.left, y: r.top, width: r.width, height: r.height };
})(%s)`

type boxResult struct {
	State string `json:"state"`
	browser.Box
}

// BoundingBox scrolls the element into view when needed and returns its box.
func (p *page) BoundingBox(ctx context.Context, selector string) (browser.Box, error) {
	arg, err := json.Marshal(selector)
	if err != nil {
		return browser.Box{}, err
	}
	raw, err := p.Evaluate(ctx, fmt.Sprintf(boundingBoxScript, arg))
	if err != nil {
		return browser.Box{}, err
	}
	var res boxResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return browser.Box{}, fmt.Errorf("failed to decode bounding box: %w", err)
	}
	switch res.State {
	case "visible":
		return res.Box, nil
	case "hidden":
		return browser.Box{}, fmt.Errorf("%w: %s", browser.ErrElementNotVisible, selector)
	default:
		return browser.Box{}, fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
}

const innerTextScript = `((sel) => {
  const el = document.querySelector(sel);
  return el ? { found: true, text: el.innerText } : { found: false };
})(%s)`

// InnerText reads the rendered text of the first match without waiting for it.
func (p *page) InnerText(ctx context.Context, selector string) (string, error) {
	arg, err := json.Marshal(selector)
	if err != nil {
		return "", err
	}
	raw, err := p.Evaluate(ctx, fmt.Sprintf(innerTextScript, arg))
	if err != nil {
		return "", err
	}
	var res struct {
		Found bool   `json:"found"`
		Text  string `json:"text"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", fmt.Errorf("failed to decode inner text: %w", err)
	}
	if !res.Found {
		return "", fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	return res.Text, nil
}

// Click waits for the element to be visible and clicks its center.
func (p *page) Click(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

// Upload intercepts the file chooser that clicking selector opens and sets
// files on its input.
func (p *page) Upload(ctx context.Context, selector string, files []string) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := cdppage.SetInterceptFileChooserDialog(true).Do(ctx); err != nil {
			return fmt.Errorf("failed to intercept file chooser: %w", err)
		}
		defer func() {
			_ = cdppage.SetInterceptFileChooserDialog(false).Do(ctx)
		}()

		opened := make(chan *cdppage.EventFileChooserOpened, 1)
		listenCtx, stopListening := context.WithCancel(ctx)
		defer stopListening()
		chromedp.ListenTarget(listenCtx, func(ev interface{}) {
			if e, ok := ev.(*cdppage.EventFileChooserOpened); ok {
				select {
				case opened <- e:
				default:
				}
			}
		})

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			select {
			case ev := <-opened:
				return dom.SetFileInputFiles(files).WithBackendNodeID(ev.BackendNodeID).Do(gctx)
			case <-gctx.Done():
				return gctx.Err()
			}
		})
		g.Go(func() error {
			return chromedp.Click(selector, chromedp.ByQuery).Do(gctx)
		})
		return g.Wait()
	}))
}

func (p *page) MouseMove(ctx context.Context, x, y float64) error {
	return p.run(ctx, input.DispatchMouseEvent(input.MouseMoved, x, y))
}

func (p *page) InsertText(ctx context.Context, text string) error {
	return p.run(ctx, input.InsertText(text))
}

// Press sends a single key or a chord like "Control+A".
func (p *page) Press(ctx context.Context, key string) error {
	k, mods, err := parseKey(key)
	if err != nil {
		return err
	}
	var opts []chromedp.KeyOption
	if len(mods) > 0 {
		opts = append(opts, chromedp.KeyModifiers(mods...))
	}
	return p.run(ctx, chromedp.KeyEvent(k, opts...))
}

func (p *page) TypeKeys(ctx context.Context, text string) error {
	return p.run(ctx, chromedp.KeyEvent(text))
}

func (p *page) BringToFront(ctx context.Context) error {
	return p.run(ctx, cdppage.BringToFront())
}

// Close closes the tab. The root tab's context carries the connection, so it
// is closed through the protocol instead of by canceling its context.
func (p *page) Close(ctx context.Context) error {
	if p.IsClosed() {
		return nil
	}
	err := p.run(ctx, cdppage.Close())
	p.markClosed()
	if p.cancel != nil {
		p.cancel()
	}
	if err != nil && !strings.Contains(err.Error(), "target closed") {
		return fmt.Errorf("failed to close tab: %w", err)
	}
	return nil
}
