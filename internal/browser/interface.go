package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/json-iterator/go"
)

var (
	// ErrElementNotFound is returned when a selector matches nothing.
	ErrElementNotFound = errors.New("element not found")
	// ErrElementNotVisible is returned when a selector matches an element
	// that has no rendered box.
	ErrElementNotVisible = errors.New("element not visible")
	// ErrPageClosed is returned by operations on a closed page.
	ErrPageClosed = errors.New("page closed")
)

// Box is an element's border box in CSS pixels, relative to the viewport.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of the box.
func (b Box) Center() (x, y float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// EndpointURL is the debug endpoint address for host and port. An empty
// host means the loopback address.
func EndpointURL(host string, port int) string {
	if host == "" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}

// Viewport is a window size in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

// LaunchOptions configures a freshly started browser process.
type LaunchOptions struct {
	Headless       bool
	ExecutablePath string
	// ProfileDir holds the persistent user data (cookies, storage, cache).
	ProfileDir string
	DebugHost  string
	DebugPort  int
	Viewport   Viewport
	Args       []string
	Stealth    bool
	// Timeout bounds how long to wait for the debug endpoint to come up.
	Timeout time.Duration
}

// Driver creates browser contexts, either by attaching to a running browser
// or by starting a new one.
type Driver interface {
	// Attach connects to the browser whose debug endpoint is at endpoint
	// (e.g. "http://127.0.0.1:9222").
	Attach(ctx context.Context, endpoint string) (Context, error)
	// Launch starts a browser process that outlives the caller and attaches to it.
	Launch(ctx context.Context, opts LaunchOptions) (Context, error)
}

// Context is a browsing context: a browser connection and its set of pages.
type Context interface {
	// Pages lists the open pages in a stable order, oldest first.
	Pages(ctx context.Context) ([]Page, error)
	NewPage(ctx context.Context) (Page, error)
	Close(ctx context.Context) error
}

// Page is a single tab.
type Page interface {
	ID() string
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)

	// Navigate loads url and waits for the DOM to be ready.
	Navigate(ctx context.Context, url string) error
	// Content returns the serialized document markup.
	Content(ctx context.Context) (string, error)
	// Screenshot captures the viewport, or the whole page when fullPage is set, as PNG.
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	Evaluate(ctx context.Context, script string) (json.RawMessage, error)

	// WaitForSelector blocks until selector matches an element or ctx is done.
	WaitForSelector(ctx context.Context, selector string) error
	// BoundingBox returns the box of the first match, ErrElementNotFound or
	// ErrElementNotVisible.
	BoundingBox(ctx context.Context, selector string) (Box, error)
	InnerText(ctx context.Context, selector string) (string, error)

	Click(ctx context.Context, selector string) error
	// Upload clicks selector and feeds files to the file chooser it opens.
	Upload(ctx context.Context, selector string, files []string) error

	MouseMove(ctx context.Context, x, y float64) error
	// InsertText inserts text at the focus as a single input, like a paste.
	InsertText(ctx context.Context, text string) error
	// Press sends one key or chord, e.g. "Enter" or "Control+A".
	Press(ctx context.Context, key string) error
	// TypeKeys sends text key by key.
	TypeKeys(ctx context.Context, text string) error

	BringToFront(ctx context.Context) error
	Close(ctx context.Context) error
	IsClosed() bool
}
