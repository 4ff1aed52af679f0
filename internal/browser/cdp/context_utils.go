// internal/browser/cdp/context_utils.go
package cdp

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
)

// CombineContext creates a new context derived from ctx1 that is canceled
// when either ctx1 or ctx2 is canceled. It inherits values from ctx1, which
// is how chromedp finds the tab to talk to, while ctx2 carries the
// operation's deadline.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(ctx1)

	go func() {
		select {
		case <-ctx2.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}

// valueOnlyContext keeps its parent's values but none of its cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context that inherits values from ctx but is not canceled
// when ctx is. Browser connections are rooted here so that finishing a
// command does not close the tabs it opened.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}

// runBounded runs actions on a chromedp context whose lifetime must not be
// tied to ctx, and stops waiting once ctx is done. The first Run on a
// chromedp context binds the target's event loop to the context it is given,
// so it cannot simply be run under a combined context.
func runBounded(ctx, tabCtx context.Context, actions ...chromedp.Action) error {
	errc := make(chan error, 1)
	go func() { errc <- chromedp.Run(tabCtx, actions...) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
