// Package session owns the single long-lived browser session shared by every
// command: which browser context is active and which of its pages is current.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/stealthbrowse/internal/browser"
	"github.com/xkilldash9x/stealthbrowse/internal/config"
)

var (
	// ErrNoPage is returned when an operation needs a page and none is open.
	ErrNoPage = errors.New("No page open. Call open() first.")
	// ErrNoContext is returned by tab operations before any browser is open.
	ErrNoContext = errors.New("No browser open")
	// ErrNoTab is returned by CloseTab when there is no current tab.
	ErrNoTab = errors.New("No tab open")
	// ErrTabNotFound is returned by SwitchTab when nothing matches.
	ErrTabNotFound = errors.New("Tab not found")
	// ErrLaunch marks a failure to start a browser after attaching failed.
	// Unlike every other session error it is fatal to the caller.
	ErrLaunch = errors.New("failed to launch browser")
)

// Options tune how a browser is launched when none can be attached to.
type Options struct {
	Headless       bool
	ExecutablePath string
}

// Manager decides between attaching to a running browser and launching a
// persistent one, and tracks the current context and page.
//
// It is meant to be driven from one goroutine; the mutex only keeps
// accidental concurrent use from racing.
type Manager struct {
	driver browser.Driver
	cfg    config.BrowserConfig
	logger *zap.Logger

	mu      sync.Mutex
	context browser.Context
	page    browser.Page
}

// NewManager creates a manager with no session.
func NewManager(driver browser.Driver, cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	return &Manager{
		driver: driver,
		cfg:    cfg,
		logger: logger.Named("session"),
	}
}

// DefaultOptions are the launch options taken from configuration.
func (m *Manager) DefaultOptions() Options {
	return Options{Headless: m.cfg.Headless, ExecutablePath: m.cfg.ExecutablePath}
}

// Acquire returns a live page, reusing the current one when it is still open.
// Otherwise it attaches to the browser on the debug port, and launches a
// persistent browser when nothing is listening there. Only a launch failure
// is reported.
func (m *Manager) Acquire(ctx context.Context, opts Options) (browser.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquireLocked(ctx, opts)
}

func (m *Manager) acquireLocked(ctx context.Context, opts Options) (browser.Page, error) {
	if m.page != nil && !m.page.IsClosed() {
		return m.page, nil
	}

	// A context that survived closeTab only needs a page.
	if m.context != nil {
		p, err := firstOrNewPage(ctx, m.context)
		if err == nil {
			m.page = p
			return p, nil
		}
		m.logger.Debug("Current browser context is unusable, reconnecting", zap.Error(err))
		m.context = nil
		m.page = nil
	}

	bctx, err := m.connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	p, err := firstOrNewPage(ctx, bctx)
	if err != nil {
		_ = bctx.Close(ctx)
		return nil, fmt.Errorf("failed to get a page: %w", err)
	}

	m.context = bctx
	m.page = p
	return p, nil
}

func (m *Manager) connect(ctx context.Context, opts Options) (browser.Context, error) {
	endpoint := browser.EndpointURL(m.cfg.DebugHost, m.cfg.DebugPort)

	attachCtx := ctx
	if m.cfg.AttachTimeout > 0 {
		var cancel context.CancelFunc
		attachCtx, cancel = context.WithTimeout(ctx, m.cfg.AttachTimeout)
		defer cancel()
	}

	bctx, err := m.driver.Attach(attachCtx, endpoint)
	if err == nil {
		m.logger.Debug("Attached to running browser", zap.String("endpoint", endpoint))
		return bctx, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	m.logger.Debug("No browser to attach to, launching a new one",
		zap.String("endpoint", endpoint),
		zap.Error(err),
	)

	bctx, err = m.driver.Launch(ctx, browser.LaunchOptions{
		Headless:       opts.Headless,
		ExecutablePath: opts.ExecutablePath,
		ProfileDir:     m.cfg.ProfileDir,
		DebugHost:      m.cfg.DebugHost,
		DebugPort:      m.cfg.DebugPort,
		Viewport:       browser.Viewport{Width: m.cfg.Viewport.Width, Height: m.cfg.Viewport.Height},
		Args:           m.cfg.Args,
		Stealth:        m.cfg.Stealth,
		Timeout:        m.cfg.LaunchTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	m.logger.Info("Launched persistent browser", zap.String("profile", m.cfg.ProfileDir))
	return bctx, nil
}

func firstOrNewPage(ctx context.Context, bctx browser.Context) (browser.Page, error) {
	pages, err := bctx.Pages(ctx)
	if err != nil {
		return nil, err
	}
	if len(pages) > 0 {
		return pages[0], nil
	}
	return bctx.NewPage(ctx)
}

// Current returns the current page, or ErrNoPage when there is none or it
// has been closed.
func (m *Manager) Current() (browser.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.page == nil || m.page.IsClosed() {
		return nil, ErrNoPage
	}
	return m.page, nil
}

// Peek returns the current page without checking it, or nil.
func (m *Manager) Peek() browser.Page {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.page
}

// HasContext reports whether a browser context is held.
func (m *Manager) HasContext() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.context != nil
}

// NewTab opens a page in the current context, acquiring a session first if
// needed, and makes it current. A non-empty url is navigated to.
func (m *Manager) NewTab(ctx context.Context, url string, navTimeout time.Duration) (browser.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.context == nil {
		if _, err := m.acquireLocked(ctx, m.DefaultOptions()); err != nil {
			return nil, err
		}
	}

	p, err := m.context.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	m.page = p

	if url != "" {
		navCtx := ctx
		if navTimeout > 0 {
			var cancel context.CancelFunc
			navCtx, cancel = context.WithTimeout(ctx, navTimeout)
			defer cancel()
		}
		if err := p.Navigate(navCtx, url); err != nil {
			return p, fmt.Errorf("failed to navigate new tab to %s: %w", url, err)
		}
	}
	return p, nil
}

// SwitchTab makes another page current. x is read as a tab index when it
// starts with an integer, and as a URL substring otherwise.
func (m *Manager) SwitchTab(ctx context.Context, x string) (browser.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.context == nil {
		return nil, ErrNoContext
	}
	pages, err := m.context.Pages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tabs: %w", err)
	}

	var target browser.Page
	if idx, ok := leadingInt(x); ok {
		if idx >= 0 && idx < len(pages) {
			target = pages[idx]
		}
	} else {
		for _, p := range pages {
			u, err := p.URL(ctx)
			if err != nil {
				continue
			}
			if strings.Contains(u, x) {
				target = p
				break
			}
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: %s", ErrTabNotFound, x)
	}

	m.page = target
	m.logger.Debug("Switched tab", zap.String("query", x), zap.String("tab", target.ID()))
	if err := target.BringToFront(ctx); err != nil {
		return target, fmt.Errorf("failed to bring tab to front: %w", err)
	}
	return target, nil
}

// CloseTab closes the current page and promotes the last remaining one. It
// returns the new current page, or nil when no tabs are left.
func (m *Manager) CloseTab(ctx context.Context) (browser.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.page == nil {
		return nil, ErrNoTab
	}
	if err := m.page.Close(ctx); err != nil {
		return nil, err
	}
	m.page = nil

	if m.context == nil {
		return nil, nil
	}
	pages, err := m.context.Pages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tabs: %w", err)
	}
	if len(pages) == 0 {
		return nil, nil
	}
	m.page = pages[len(pages)-1]
	return m.page, nil
}

// Close ends the session. Errors from the browser are logged and dropped;
// the next Acquire starts from scratch.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.context != nil {
		if err := m.context.Close(ctx); err != nil {
			m.logger.Debug("Error closing browser context", zap.Error(err))
		}
	}
	m.context = nil
	m.page = nil
}

// leadingInt parses the integer prefix of s the way a lenient CLI reads a
// tab index: "2" and "2nd" are both 2, "docs" is not a number.
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
