package cdp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stealthbrowse/internal/browser"
	"github.com/xkilldash9x/stealthbrowse/internal/browser/stealth"
)

// ErrExecutableNotFound is returned by Launch when no Chrome or Chromium
// binary can be located.
var ErrExecutableNotFound = errors.New("no chrome or chromium executable found")

// executableCandidates are tried in order when no executable is configured.
var executableCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
	`C:\Program Files\Google\Chrome\Application\chrome.exe`,
	`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
}

// Driver implements browser.Driver over the Chrome DevTools Protocol.
type Driver struct {
	logger  *zap.Logger
	stealth bool
	persona stealth.Persona
	client  *http.Client

	lookPath     func(string) (string, error)
	startProcess func(*exec.Cmd) error
	pollInterval time.Duration
}

var _ browser.Driver = (*Driver)(nil)

// NewDriver creates a driver. useStealth controls whether the evasions are
// applied to pages of attached browsers; launched browsers follow
// LaunchOptions.Stealth.
func NewDriver(logger *zap.Logger, useStealth bool) *Driver {
	return &Driver{
		logger:       logger.Named("cdp"),
		stealth:      useStealth,
		persona:      stealth.DefaultPersona,
		client:       &http.Client{},
		lookPath:     exec.LookPath,
		startProcess: func(cmd *exec.Cmd) error { return cmd.Start() },
		pollInterval: 100 * time.Millisecond,
	}
}

// Attach connects to an already running browser. It fails fast when nothing
// listens on endpoint.
func (d *Driver) Attach(ctx context.Context, endpoint string) (browser.Context, error) {
	ec := newEndpointClient(endpoint, d.client)
	v, err := ec.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("no browser at %s: %w", endpoint, err)
	}
	return d.connect(ctx, ec, v, connectOptions{stealth: d.stealth})
}

// Launch starts a detached browser with a persistent profile and attaches to
// it. The process keeps running after the caller exits.
func (d *Driver) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Context, error) {
	exe, err := d.resolveExecutable(opts.ExecutablePath)
	if err != nil {
		return nil, err
	}

	profile, err := homedir.Expand(opts.ProfileDir)
	if err != nil {
		return nil, fmt.Errorf("failed to expand profile dir %q: %w", opts.ProfileDir, err)
	}
	if profile, err = filepath.Abs(profile); err != nil {
		return nil, fmt.Errorf("failed to resolve profile dir: %w", err)
	}
	if err := os.MkdirAll(profile, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create profile dir %s: %w", profile, err)
	}

	args := launchArgs(opts, profile)
	// Not CommandContext: the browser must outlive this invocation.
	cmd := exec.Command(exe, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	detachProcess(cmd)

	d.logger.Info("Launching browser",
		zap.String("executable", exe),
		zap.String("profile", profile),
		zap.Bool("headless", opts.Headless),
		zap.Int("port", opts.DebugPort),
	)
	if err := d.startProcess(cmd); err != nil {
		return nil, fmt.Errorf("failed to start browser %q: %w", exe, err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ec := newEndpointClient(browser.EndpointURL(opts.DebugHost, opts.DebugPort), d.client)
	v, err := waitForEndpoint(waitCtx, ec, d.pollInterval)
	if err != nil {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		return nil, fmt.Errorf("browser did not come up: %w", err)
	}
	if cmd.Process != nil {
		d.logger.Debug("Browser process started", zap.Int("pid", cmd.Process.Pid))
		_ = cmd.Process.Release()
	}

	return d.connect(ctx, ec, v, connectOptions{
		stealth:  opts.Stealth,
		viewport: opts.Viewport,
		launched: true,
	})
}

type connectOptions struct {
	stealth  bool
	viewport browser.Viewport
	launched bool
}

// connect opens the websocket connection, rooted on the first page target.
func (d *Driver) connect(ctx context.Context, ec *endpointClient, v versionInfo, opts connectOptions) (browser.Context, error) {
	targets, err := ec.Targets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	root, ok := firstPage(targets)
	if !ok {
		if root, err = ec.NewTarget(ctx, "about:blank"); err != nil {
			return nil, fmt.Errorf("failed to open a page: %w", err)
		}
	}

	d.logger.Debug("Connecting to browser",
		zap.String("browser", v.Browser),
		zap.String("websocket", v.WebSocketDebuggerURL),
		zap.String("target", root.ID),
	)

	sugar := d.logger.Sugar()
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(Detach(ctx), v.WebSocketDebuggerURL, chromedp.NoModifyURL)
	rootCtx, rootCancel := chromedp.NewContext(allocCtx,
		chromedp.WithTargetID(target.ID(root.ID)),
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	)

	// The first Run dials the websocket; its context must live as long as
	// the connection.
	if err := runBounded(ctx, rootCtx); err != nil {
		rootCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to connect to %s: %w", v.WebSocketDebuggerURL, err)
	}

	bc := newBrowserContext(d.logger, d.persona, opts, rootCtx, func() {
		rootCancel()
		allocCancel()
	})
	bc.adopt(target.ID(root.ID), rootCtx, nil)
	return bc, nil
}

// resolveExecutable returns the configured executable, or the first candidate
// found on this machine.
func (d *Driver) resolveExecutable(configured string) (string, error) {
	if configured != "" {
		path, err := homedir.Expand(configured)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("browser executable %q: %w", path, err)
		}
		return path, nil
	}
	if env := os.Getenv("CHROME_PATH"); env != "" {
		return env, nil
	}
	for _, name := range executableCandidates {
		if filepath.IsAbs(name) {
			if _, err := os.Stat(name); err == nil {
				return name, nil
			}
			continue
		}
		if path, err := d.lookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrExecutableNotFound
}

// launchArgs builds the browser command line.
func launchArgs(opts browser.LaunchOptions, profile string) []string {
	args := []string{
		"--remote-debugging-port=" + strconv.Itoa(opts.DebugPort),
		"--user-data-dir=" + profile,
	}
	if opts.Viewport.Width > 0 && opts.Viewport.Height > 0 {
		args = append(args, fmt.Sprintf("--window-size=%d,%d", opts.Viewport.Width, opts.Viewport.Height))
	}
	if opts.Headless {
		args = append(args, "--headless=new")
	}
	if opts.Stealth {
		args = append(args, stealth.LaunchFlags()...)
	} else {
		args = append(args, "--no-first-run", "--no-default-browser-check")
	}
	// Chrome refuses to start as root without it.
	if runtime.GOOS == "linux" && os.Geteuid() == 0 {
		args = append(args, "--no-sandbox")
	}
	for _, a := range opts.Args {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if !strings.HasPrefix(a, "-") {
			a = "--" + a
		}
		args = append(args, a)
	}
	return append(args, "about:blank")
}
