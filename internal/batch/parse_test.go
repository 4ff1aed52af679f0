package batch

import (
	"errors"
	"testing"
	"time"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	raw := `[
		["comment", "log in first"],
		["open", "https://example.com/login"],
		["type", "#user", "jane", "doe"],
		["tryClick", "#cookie-banner .accept"],
		["click", "button[type=submit]"],
		["wait", 1500],
		["wait"],
		["screenshot"],
		["screenshot", "/tmp/full.png", true],
		["press", "Enter"],
		["keyboardType", "hello", "world"],
		["getText", "h1"],
		["newTab"],
		["newTab", "https://example.org"],
		["switchTab", 2],
		["closeTab"],
		["evaluate", "document.title"],
		["upload", "#file", "~/cv.pdf"],
		["snapshot"],
		["close"]
	]`

	cmds, err := Parse([]byte(raw))
	require.NoError(t, err)

	want := []Command{
		Comment{Text: "log in first"},
		Open{URL: "https://example.com/login"},
		TypeText{Selector: "#user", Text: "jane doe"},
		Click{Selector: "#cookie-banner .accept", Policy: BestEffort},
		Click{Selector: "button[type=submit]", Policy: Strict},
		Wait{Duration: 1500 * time.Millisecond},
		Wait{UseDefault: true},
		Screenshot{Path: DefaultScreenshotPath},
		Screenshot{Path: "/tmp/full.png", FullPage: true},
		Press{Key: "Enter"},
		KeyboardType{Text: "hello world"},
		GetText{Selector: "h1"},
		NewTab{},
		NewTab{URL: "https://example.org"},
		SwitchTab{Target: "2"},
		CloseTab{},
		Evaluate{Script: "document.title"},
		Upload{Selector: "#file", Path: "~/cv.pdf"},
		Snapshot{},
		CloseSession{},
	}
	if diff := cmp.Diff(want, cmds); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{"unknown command", `[["open","https://a.test"],["fly","away"]]`, "Unknown batch command: fly"},
		{"not an array", `{"open":"x"}`, "batch must be a JSON array"},
		{"step not an array", `["open"]`, "command 0: must be an array"},
		{"empty step", `[[]]`, "command 0: empty command"},
		{"name not a string", `[[1, "x"]]`, "command 0: name must be a string"},
		{"missing url", `[["open"]]`, `command 0: open: missing argument "url"`},
		{"missing upload path", `[["upload", "#f"]]`, `command 0: upload: missing argument "file path"`},
		{"null selector", `[["comment"],["click", null]]`, `command 1: click: missing argument "selector"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds, err := Parse([]byte(tt.raw))
			require.Error(t, err)
			assert.Nil(t, cmds)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := Parse([]byte(`[["fly"]]`))
	assert.True(t, errors.Is(err, ErrUnknownCommand))
	assert.EqualError(t, err, "Unknown batch command: fly")
}

func TestParse_EmptyBatch(t *testing.T) {
	cmds, err := Parse([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, cmds)
}

func TestCoerce(t *testing.T) {
	assert.Equal(t, "", coerce(nil))
	assert.Equal(t, "x", coerce("x"))
	assert.Equal(t, "true", coerce(true))
	assert.Equal(t, "2", coerce(float64(2)))
	assert.Equal(t, "1.5", coerce(1.5))
	assert.Equal(t, `{"a":1}`, coerce(map[string]interface{}{"a": float64(1)}))
	assert.Equal(t, `[1,"b"]`, coerce([]interface{}{float64(1), "b"}))
}

func TestParseWait(t *testing.T) {
	tests := []struct {
		in   string
		want Wait
	}{
		{"", Wait{UseDefault: true}},
		{"abc", Wait{UseDefault: true}},
		{"0", Wait{}},
		{"250", Wait{Duration: 250 * time.Millisecond}},
		{"250ms", Wait{Duration: 250 * time.Millisecond}},
		{" 40 ", Wait{Duration: 40 * time.Millisecond}},
		{"-5", Wait{}},
		{"99999999999999999999", Wait{UseDefault: true}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseWait(tt.in), tt.in)
	}
}

func TestCommandNames(t *testing.T) {
	for _, name := range []string{
		"open", "snapshot", "screenshot", "click", "tryClick", "type", "getText",
		"press", "keyboardType", "newTab", "switchTab", "closeTab", "close",
		"wait", "evaluate", "upload", "comment",
	} {
		cmd, err := ParseCommand(name, []string{"a", "b"})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func FuzzParse(f *testing.F) {
	f.Add([]byte(`[["open","https://example.com"],["click","#a"]]`))
	f.Add([]byte(`[["wait", 10], ["comment"]]`))
	f.Add([]byte(`[["type", "#q", 1, true, null, {"x": [1]}]]`))
	f.Add([]byte(`[[]]`))

	f.Fuzz(func(t *testing.T, data []byte) {
		cmds, err := Parse(data)
		if err != nil {
			assert.Nil(t, cmds)
			return
		}
		for _, c := range cmds {
			assert.NotNil(t, c)
			assert.NotEmpty(t, c.Name())
		}
	})
}

func FuzzParseCommand_Structured(f *testing.F) {
	f.Fuzz(func(t *testing.T, data []byte) {
		var in struct {
			Name string
			Args []string
		}
		consumer := fuzz.NewConsumer(data)
		if err := consumer.GenerateStruct(&in); err != nil {
			return
		}

		cmd, err := ParseCommand(in.Name, in.Args)
		if err != nil {
			assert.Nil(t, cmd)
			return
		}
		// Every accepted command round-trips its name.
		assert.Equal(t, in.Name, cmd.Name())
	})
}
