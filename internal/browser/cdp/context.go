package cdp

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/browser"
	cdproto "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	ibrowser "github.com/xkilldash9x/stealthbrowse/internal/browser"
	"github.com/xkilldash9x/stealthbrowse/internal/browser/stealth"
)

// browserContext is one websocket connection to a browser and the pages
// reachable through it.
type browserContext struct {
	logger  *zap.Logger
	persona stealth.Persona
	opts    connectOptions

	// rootCtx owns the browser connection. It is never canceled except by
	// Close.
	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu     sync.Mutex
	pages  map[target.ID]*page
	order  []target.ID
	closed bool
}

var _ ibrowser.Context = (*browserContext)(nil)

func newBrowserContext(logger *zap.Logger, persona stealth.Persona, opts connectOptions, rootCtx context.Context, rootCancel context.CancelFunc) *browserContext {
	return &browserContext{
		logger:     logger,
		persona:    persona,
		opts:       opts,
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
		pages:      make(map[target.ID]*page),
	}
}

// adopt registers a page for id. cancel is nil for the root page, whose
// context must not be canceled without dropping the connection.
func (c *browserContext) adopt(id target.ID, tabCtx context.Context, cancel context.CancelFunc) *page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.adoptLocked(id, tabCtx, cancel)
}

func (c *browserContext) adoptLocked(id target.ID, tabCtx context.Context, cancel context.CancelFunc) *page {
	if p, ok := c.pages[id]; ok {
		return p
	}
	p := &page{
		owner:  c,
		id:     id,
		ctx:    tabCtx,
		cancel: cancel,
		logger: c.logger.With(zap.String("target", string(id))),
	}
	c.pages[id] = p
	c.order = append(c.order, id)
	return p
}

// Pages reconciles the known pages with the browser's targets: tabs closed
// elsewhere are dropped, tabs opened elsewhere are appended.
func (c *browserContext) Pages(ctx context.Context) ([]ibrowser.Page, error) {
	combined, cancel := CombineContext(c.rootCtx, ctx)
	defer cancel()

	infos, err := chromedp.Targets(combined)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}

	live := make(map[target.ID]bool, len(infos))
	for _, info := range infos {
		if info.Type == "page" {
			live[info.TargetID] = true
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.order[:0]
	for _, id := range c.order {
		p := c.pages[id]
		if live[id] && !p.IsClosed() {
			kept = append(kept, id)
			continue
		}
		p.markClosed()
		delete(c.pages, id)
	}
	c.order = kept

	for _, info := range infos {
		if info.Type != "page" {
			continue
		}
		if _, ok := c.pages[info.TargetID]; ok {
			continue
		}
		tabCtx, tabCancel := chromedp.NewContext(c.rootCtx, chromedp.WithTargetID(info.TargetID))
		c.adoptLocked(info.TargetID, tabCtx, tabCancel)
	}

	out := make([]ibrowser.Page, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.pages[id])
	}
	return out, nil
}

// NewPage opens a blank tab.
func (c *browserContext) NewPage(ctx context.Context) (ibrowser.Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(c.rootCtx)
	if err := runBounded(ctx, tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	t := chromedp.FromContext(tabCtx).Target
	if t == nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open tab: no target attached")
	}
	c.logger.Debug("Opened tab", zap.String("target", string(t.TargetID)))
	return c.adopt(t.TargetID, tabCtx, tabCancel), nil
}

// Close shuts the browser down.
func (c *browserContext) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pages := c.pages
	c.pages = make(map[target.ID]*page)
	c.order = nil
	c.mu.Unlock()

	for _, p := range pages {
		p.markClosed()
	}

	combined, cancel := CombineContext(c.rootCtx, ctx)
	defer cancel()
	err := browser.Close().Do(cdproto.WithExecutor(combined, chromedp.FromContext(combined).Browser))
	c.rootCancel()
	if err != nil {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}

// setupActions run once per page before its first use.
func (c *browserContext) setupActions(logger *zap.Logger) chromedp.Tasks {
	var tasks chromedp.Tasks
	if c.opts.stealth {
		tasks = append(tasks, stealth.Apply(c.persona, logger)...)
	}
	if c.opts.launched && c.opts.viewport.Width > 0 && c.opts.viewport.Height > 0 {
		tasks = append(tasks, emulation.SetDeviceMetricsOverride(int64(c.opts.viewport.Width), int64(c.opts.viewport.Height), 1, false))
	}
	return tasks
}
