package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/stealthbrowse/internal/browser"
	"github.com/xkilldash9x/stealthbrowse/internal/session"
)

var (
	errElementNotFound   = errors.New("Element not found")
	errElementNotVisible = errors.New("Element not visible")
)

func (in *Interpreter) open(ctx context.Context, c Open) (Result, error) {
	p, err := in.sessions.Acquire(ctx, in.opts)
	if err != nil {
		if errors.Is(err, session.ErrLaunch) {
			return Result{}, err
		}
		return failure(err), nil
	}

	navCtx, cancel := withTimeout(ctx, in.cfg.NavigationTimeout)
	defer cancel()
	if err := p.Navigate(navCtx, c.URL); err != nil {
		if navCtx.Err() != nil && ctx.Err() == nil {
			return failuref("Navigation to %s timed out after %s", c.URL, in.cfg.NavigationTimeout), nil
		}
		return failure(err), nil
	}

	title, err := p.Title(ctx)
	if err != nil {
		return failure(err), nil
	}
	return Result{OK: true, URL: pageURL(ctx, p), Title: title}, nil
}

func (in *Interpreter) snapshot(ctx context.Context) Result {
	p, err := in.sessions.Current()
	if err != nil {
		return failure(err)
	}
	content, err := p.Content(ctx)
	if err != nil {
		return failure(err)
	}
	title, err := p.Title(ctx)
	if err != nil {
		return failure(err)
	}
	return Result{
		OK:      true,
		URL:     pageURL(ctx, p),
		Title:   title,
		Content: truncateRunes(content, in.cfg.SnapshotLimit),
	}
}

func (in *Interpreter) screenshot(ctx context.Context, c Screenshot) Result {
	p, err := in.sessions.Current()
	if err != nil {
		return failure(err)
	}
	img, err := p.Screenshot(ctx, c.FullPage)
	if err != nil {
		return failure(err)
	}
	path, err := homedir.Expand(c.Path)
	if err != nil {
		return failure(err)
	}
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return failuref("failed to write screenshot: %v", err)
	}
	return Result{OK: true, URL: pageURL(ctx, p), Screenshot: c.Path}
}

// click runs the shared locate, move, settle, click sequence. Under
// BestEffort the whole sequence shares one short deadline and any failure is
// reported without failing the step.
func (in *Interpreter) click(ctx context.Context, c Click) Result {
	timeout := in.cfg.SelectorTimeout
	opCtx := ctx
	if c.Policy == BestEffort {
		timeout = in.cfg.TryClickTimeout
		var cancel context.CancelFunc
		opCtx, cancel = withTimeout(ctx, timeout)
		defer cancel()
	}

	url, err := in.pointerClick(opCtx, c.Selector)
	if err != nil {
		if c.Policy == BestEffort {
			return Result{OK: true, Error: fmt.Sprintf("tryClick failed (ignored): %v", err)}
		}
		return failure(err)
	}
	return Result{OK: true, URL: url}
}

func (in *Interpreter) pointerClick(ctx context.Context, selector string) (string, error) {
	p, err := in.sessions.Current()
	if err != nil {
		return "", err
	}
	box, err := in.locate(ctx, p, selector)
	if err != nil {
		return "", err
	}

	x, y := box.Center()
	if err := in.motion.MoveTo(ctx, p, x, y); err != nil {
		return "", err
	}
	if err := in.motion.Settle(ctx); err != nil {
		return "", err
	}

	clickCtx, cancel := withTimeout(ctx, in.cfg.SelectorTimeout)
	defer cancel()
	if err := p.Click(clickCtx, selector); err != nil {
		return "", fmt.Errorf("click on %s failed: %w", selector, err)
	}
	return pageURL(ctx, p), nil
}

// locate waits for selector and returns its box. A wait that runs out is
// reported as not found.
func (in *Interpreter) locate(ctx context.Context, p browser.Page, selector string) (browser.Box, error) {
	waitCtx, cancel := withTimeout(ctx, in.cfg.SelectorTimeout)
	defer cancel()

	if err := p.WaitForSelector(waitCtx, selector); err != nil {
		if waitCtx.Err() != nil || errors.Is(err, browser.ErrElementNotFound) {
			return browser.Box{}, fmt.Errorf("%w: %s", errElementNotFound, selector)
		}
		return browser.Box{}, err
	}

	box, err := p.BoundingBox(waitCtx, selector)
	switch {
	case errors.Is(err, browser.ErrElementNotVisible):
		return browser.Box{}, fmt.Errorf("%w: %s", errElementNotVisible, selector)
	case errors.Is(err, browser.ErrElementNotFound):
		return browser.Box{}, fmt.Errorf("%w: %s", errElementNotFound, selector)
	case err != nil:
		return browser.Box{}, err
	}
	return box, nil
}

// typeText moves to the field when it has a box, clicks it for focus and
// inserts the text as one paste-like input.
func (in *Interpreter) typeText(ctx context.Context, c TypeText) Result {
	p, err := in.sessions.Current()
	if err != nil {
		return failure(err)
	}

	box, err := in.locate(ctx, p, c.Selector)
	switch {
	case err == nil:
		x, y := box.Center()
		if err := in.motion.MoveTo(ctx, p, x, y); err != nil {
			return failure(err)
		}
	case errors.Is(err, errElementNotVisible):
		// Hidden fields are still focused through the click below.
	default:
		return failure(err)
	}

	if err := in.motion.Settle(ctx); err != nil {
		return failure(err)
	}
	clickCtx, cancel := withTimeout(ctx, in.cfg.SelectorTimeout)
	defer cancel()
	if err := p.Click(clickCtx, c.Selector); err != nil {
		return failuref("failed to focus %s: %v", c.Selector, err)
	}
	if err := in.motion.Settle(ctx); err != nil {
		return failure(err)
	}
	if err := p.InsertText(ctx, c.Text); err != nil {
		return failure(err)
	}
	return Result{OK: true, URL: pageURL(ctx, p)}
}

func (in *Interpreter) getText(ctx context.Context, c GetText) Result {
	p, err := in.sessions.Current()
	if err != nil {
		return failure(err)
	}
	opCtx, cancel := withTimeout(ctx, in.cfg.SelectorTimeout)
	defer cancel()

	text, err := p.InnerText(opCtx, c.Selector)
	if err != nil {
		if errors.Is(err, browser.ErrElementNotFound) {
			return failuref("%v: %s", errElementNotFound, c.Selector)
		}
		return failure(err)
	}
	return Result{OK: true, Content: text}
}

func (in *Interpreter) press(ctx context.Context, c Press) Result {
	p, err := in.sessions.Current()
	if err != nil {
		return failure(err)
	}
	if err := p.Press(ctx, c.Key); err != nil {
		return failure(err)
	}
	return Result{OK: true, URL: pageURL(ctx, p)}
}

// keyboardType sends the text to whatever has focus, one key at a time with
// humanlike gaps between keys.
func (in *Interpreter) keyboardType(ctx context.Context, c KeyboardType) Result {
	p, err := in.sessions.Current()
	if err != nil {
		return failure(err)
	}
	text := []rune(c.Text)
	for i, r := range text {
		if err := in.motion.KeyPause(ctx, text, i); err != nil {
			return failure(err)
		}
		if err := p.TypeKeys(ctx, string(r)); err != nil {
			return failure(err)
		}
	}
	return Result{OK: true, URL: pageURL(ctx, p)}
}

func (in *Interpreter) newTab(ctx context.Context, c NewTab) (Result, error) {
	p, err := in.sessions.NewTab(ctx, c.URL, in.cfg.NavigationTimeout)
	if err != nil {
		if errors.Is(err, session.ErrLaunch) {
			return Result{}, err
		}
		return failure(err), nil
	}
	return Result{OK: true, URL: pageURL(ctx, p)}, nil
}

func (in *Interpreter) switchTab(ctx context.Context, c SwitchTab) Result {
	p, err := in.sessions.SwitchTab(ctx, c.Target)
	if err != nil {
		return failure(err)
	}
	title, err := p.Title(ctx)
	if err != nil {
		return failure(err)
	}
	return Result{OK: true, URL: pageURL(ctx, p), Title: title}
}

func (in *Interpreter) closeTab(ctx context.Context) Result {
	next, err := in.sessions.CloseTab(ctx)
	if err != nil {
		return failure(err)
	}
	if next == nil {
		return Result{OK: true, URL: AllTabsClosed}
	}
	return Result{OK: true, URL: pageURL(ctx, next)}
}

func (in *Interpreter) wait(ctx context.Context, c Wait) Result {
	d := c.Duration
	if c.UseDefault {
		d = in.cfg.DefaultWait
	}
	if err := in.sleep(ctx, d); err != nil {
		return failure(err)
	}
	res := Result{OK: true}
	if p := in.sessions.Peek(); p != nil && !p.IsClosed() {
		res.URL = pageURL(ctx, p)
	}
	return res
}

// evaluate reports script faults as a failing step like every other command.
func (in *Interpreter) evaluate(ctx context.Context, c Evaluate) Result {
	p, err := in.sessions.Current()
	if err != nil {
		return failure(err)
	}
	opCtx, cancel := withTimeout(ctx, in.cfg.NavigationTimeout)
	defer cancel()

	value, err := p.Evaluate(opCtx, c.Script)
	if err != nil {
		return failuref("Evaluation failed: %v", err)
	}
	return Result{OK: true, Result: value}
}

// upload subscribes to the file chooser before clicking, inside the page
// implementation. Every fault is reported as one combined message.
func (in *Interpreter) upload(ctx context.Context, c Upload) Result {
	res, err := in.doUpload(ctx, c)
	if err != nil {
		return failuref("Upload failed: %v", err)
	}
	return res
}

func (in *Interpreter) doUpload(ctx context.Context, c Upload) (Result, error) {
	p, err := in.sessions.Current()
	if err != nil {
		return Result{}, err
	}
	path, err := homedir.Expand(c.Path)
	if err != nil {
		return Result{}, err
	}
	if path, err = filepath.Abs(path); err != nil {
		return Result{}, err
	}
	if _, err := os.Stat(path); err != nil {
		return Result{}, err
	}

	opCtx, cancel := withTimeout(ctx, in.cfg.NavigationTimeout)
	defer cancel()
	if err := p.Upload(opCtx, c.Selector, []string{path}); err != nil {
		return Result{}, err
	}
	return Result{OK: true, URL: pageURL(ctx, p)}, nil
}

// pageURL is best effort; a page that cannot report its url reports none.
func pageURL(ctx context.Context, p browser.Page) string {
	u, err := p.URL(ctx)
	if err != nil {
		return ""
	}
	return u
}

// truncateRunes cuts s to at most n characters. n <= 0 disables the cut.
func truncateRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
