package stealth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestScript_BindsPersona(t *testing.T) {
	script, err := Script(Persona{Platform: "Win32", Languages: []string{"de-DE", "de"}})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(script, `const __persona = {"platform":"Win32","languages":["de-DE","de"]};`))
	assert.Contains(t, script, "webdriver")
	assert.Contains(t, script, evasionsScript)
}

func TestApply(t *testing.T) {
	t.Run("default persona", func(t *testing.T) {
		core, logs := observer.New(zap.DebugLevel)
		tasks := Apply(DefaultPersona, zap.New(core))

		// Script injection, locale and Accept-Language.
		assert.Len(t, tasks, 3)
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "Applying browser stealth persona", logs.All()[0].Message)
	})

	t.Run("full persona", func(t *testing.T) {
		p := Persona{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
			Platform:  "Win32",
			Languages: []string{"en-US", "en"},
			Timezone:  "America/Los_Angeles",
			Locale:    "en-US",
		}
		assert.Len(t, Apply(p, zap.NewNop()), 5)
	})

	t.Run("empty persona only injects the script", func(t *testing.T) {
		assert.Len(t, Apply(Persona{}, zap.NewNop()), 1)
	})
}

func TestAcceptLanguage(t *testing.T) {
	assert.Equal(t, "", acceptLanguage(nil))
	assert.Equal(t, "en-US", acceptLanguage([]string{"en-US"}))
	assert.Equal(t, "en-US,en;q=0.9,fr;q=0.8", acceptLanguage([]string{"en-US", "en", "fr"}))
}

func TestLaunchFlags(t *testing.T) {
	assert.Contains(t, LaunchFlags(), "--disable-blink-features=AutomationControlled")
}
