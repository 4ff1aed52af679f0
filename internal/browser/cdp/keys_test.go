package cdp

import (
	"testing"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp/kb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		combo string
		key  string
		mods []input.Modifier
	}{
		{combo: "a", key: "a"},
		{combo: "Enter", key: kb.Enter},
		{combo: "enter", key: kb.Enter},
		{combo: "Escape", key: kb.Escape},
		{combo: "ArrowLeft", key: kb.ArrowLeft},
		{combo: "Space", key: " "},
		{combo: "+", key: "+"},
		{combo: "Control+a", key: "a", mods: []input.Modifier{input.ModifierCtrl}},
		{combo: "Control+Shift+ArrowLeft", key: kb.ArrowLeft, mods: []input.Modifier{input.ModifierCtrl, input.ModifierShift}},
		{combo: "Meta++", key: "+", mods: []input.Modifier{input.ModifierMeta}},
		{combo: "é", key: "é"},
	}
	for _, tt := range tests {
		t.Run(tt.combo, func(t *testing.T) {
			key, mods, err := parseKey(tt.combo)
			require.NoError(t, err)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.mods, mods)
		})
	}
}

func TestParseKey_Errors(t *testing.T) {
	for _, combo := range []string{"", "NoSuchKey", "Hyper+a"} {
		_, _, err := parseKey(combo)
		assert.Error(t, err, combo)
	}
}
