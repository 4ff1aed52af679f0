package cdp

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp/kb"
)

// namedKeys maps the key names used in commands (DOM KeyboardEvent.key
// values) to the sequences chromedp dispatches.
var namedKeys = map[string]string{
	"enter":      kb.Enter,
	"tab":        kb.Tab,
	"escape":     kb.Escape,
	"esc":        kb.Escape,
	"backspace":  kb.Backspace,
	"delete":     kb.Delete,
	"insert":     kb.Insert,
	"space":      " ",
	"arrowup":    kb.ArrowUp,
	"arrowdown":  kb.ArrowDown,
	"arrowleft":  kb.ArrowLeft,
	"arrowright": kb.ArrowRight,
	"home":       kb.Home,
	"end":        kb.End,
	"pageup":     kb.PageUp,
	"pagedown":   kb.PageDown,
	"f1":         kb.F1,
	"f2":         kb.F2,
	"f3":         kb.F3,
	"f4":         kb.F4,
	"f5":         kb.F5,
	"f6":         kb.F6,
	"f7":         kb.F7,
	"f8":         kb.F8,
	"f9":         kb.F9,
	"f10":        kb.F10,
	"f11":        kb.F11,
	"f12":        kb.F12,
}

var modifierKeys = map[string]input.Modifier{
	"control": input.ModifierCtrl,
	"ctrl":    input.ModifierCtrl,
	"shift":   input.ModifierShift,
	"alt":     input.ModifierAlt,
	"option":  input.ModifierAlt,
	"meta":    input.ModifierMeta,
	"command": input.ModifierMeta,
	"cmd":     input.ModifierMeta,
}

// parseKey resolves a key such as "Enter", "a" or "Control+Shift+ArrowLeft"
// into the key sequence and modifiers to press it with.
func parseKey(combo string) (string, []input.Modifier, error) {
	if combo == "" {
		return "", nil, fmt.Errorf("empty key")
	}

	parts := strings.Split(combo, "+")
	// "Control++" presses the plus key.
	if strings.HasSuffix(combo, "++") {
		parts = append(parts[:len(parts)-2], "+")
	} else if combo == "+" {
		parts = []string{"+"}
	}

	var mods []input.Modifier
	for _, p := range parts[:len(parts)-1] {
		m, ok := modifierKeys[strings.ToLower(p)]
		if !ok {
			return "", nil, fmt.Errorf("unknown modifier %q in key %q", p, combo)
		}
		mods = append(mods, m)
	}

	name := parts[len(parts)-1]
	if utf8.RuneCountInString(name) == 1 {
		return name, mods, nil
	}
	if k, ok := namedKeys[strings.ToLower(name)]; ok {
		return k, mods, nil
	}
	return "", nil, fmt.Errorf("unknown key %q", name)
}
