package batch

import "time"

// Policy decides whether a failing click halts the batch.
type Policy int

const (
	// Strict reports failures as ok=false.
	Strict Policy = iota
	// BestEffort always reports ok=true and records the failure in the error field.
	BestEffort
)

// Command is one parsed batch step. The set of implementations is closed.
type Command interface {
	// Name is the command's name in batch input.
	Name() string
	isCommand()
}

type (
	// Open navigates the current page, acquiring a session first.
	Open struct{ URL string }
	// Snapshot returns the current page's url, title and markup.
	Snapshot struct{}
	// Screenshot writes a PNG of the current page to Path.
	Screenshot struct {
		Path     string
		FullPage bool
	}
	// Click clicks the element matched by Selector after moving the pointer to it.
	Click struct {
		Selector string
		Policy   Policy
	}
	// TypeText focuses Selector by clicking it and inserts Text in one go.
	TypeText struct {
		Selector string
		Text     string
	}
	// GetText reads the rendered text of Selector.
	GetText struct{ Selector string }
	// Press sends a key or chord.
	Press struct{ Key string }
	// KeyboardType types Text key by key at the current focus.
	KeyboardType struct{ Text string }
	// NewTab opens a tab, optionally navigating it to URL.
	NewTab struct{ URL string }
	// SwitchTab selects a tab by index or URL substring.
	SwitchTab struct{ Target string }
	// CloseTab closes the current tab.
	CloseTab struct{}
	// CloseSession closes the browser context.
	CloseSession struct{}
	// Wait sleeps. A zero Duration with UseDefault set waits the configured default.
	Wait struct {
		Duration   time.Duration
		UseDefault bool
	}
	// Evaluate runs Script in the page.
	Evaluate struct{ Script string }
	// Upload clicks Selector and feeds Path to the file chooser it opens.
	Upload struct {
		Selector string
		Path     string
	}
	// Comment does nothing.
	Comment struct{ Text string }
)

func (Open) Name() string       { return "open" }
func (Snapshot) Name() string   { return "snapshot" }
func (Screenshot) Name() string { return "screenshot" }
func (c Click) Name() string {
	if c.Policy == BestEffort {
		return "tryClick"
	}
	return "click"
}
func (TypeText) Name() string     { return "type" }
func (GetText) Name() string      { return "getText" }
func (Press) Name() string        { return "press" }
func (KeyboardType) Name() string { return "keyboardType" }
func (NewTab) Name() string       { return "newTab" }
func (SwitchTab) Name() string    { return "switchTab" }
func (CloseTab) Name() string     { return "closeTab" }
func (CloseSession) Name() string { return "close" }
func (Wait) Name() string         { return "wait" }
func (Evaluate) Name() string     { return "evaluate" }
func (Upload) Name() string       { return "upload" }
func (Comment) Name() string      { return "comment" }

func (Open) isCommand()         {}
func (Snapshot) isCommand()     {}
func (Screenshot) isCommand()   {}
func (Click) isCommand()        {}
func (TypeText) isCommand()     {}
func (GetText) isCommand()      {}
func (Press) isCommand()        {}
func (KeyboardType) isCommand() {}
func (NewTab) isCommand()       {}
func (SwitchTab) isCommand()    {}
func (CloseTab) isCommand()     {}
func (CloseSession) isCommand() {}
func (Wait) isCommand()         {}
func (Evaluate) isCommand()     {}
func (Upload) isCommand()       {}
func (Comment) isCommand()      {}

// needsPage reports whether c acts on the current page, and so triggers
// session acquisition when auto-acquire is on.
func needsPage(c Command) bool {
	switch c.(type) {
	case Comment, Wait, CloseSession, NewTab:
		return false
	}
	return true
}
