package batch

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	json "github.com/json-iterator/go"
)

// ErrUnknownCommand is returned for names outside the vocabulary.
var ErrUnknownCommand = errors.New("Unknown batch command")

// DefaultScreenshotPath is used when screenshot is given no path.
const DefaultScreenshotPath = "screenshot.png"

// Parse decodes a batch: a JSON array of [name, ...args] arrays. Arguments
// of any JSON type are accepted and read as strings.
func Parse(raw []byte) ([]Command, error) {
	var steps []json.RawMessage
	if err := json.Unmarshal(raw, &steps); err != nil {
		return nil, fmt.Errorf("batch must be a JSON array of commands: %w", err)
	}

	cmds := make([]Command, 0, len(steps))
	for i, step := range steps {
		var parts []interface{}
		if err := json.Unmarshal(step, &parts); err != nil {
			return nil, fmt.Errorf("command %d: must be an array like [\"open\", \"https://...\"]", i)
		}
		if len(parts) == 0 {
			return nil, fmt.Errorf("command %d: empty command", i)
		}
		name, ok := parts[0].(string)
		if !ok {
			return nil, fmt.Errorf("command %d: name must be a string", i)
		}

		args := make([]string, 0, len(parts)-1)
		for _, p := range parts[1:] {
			args = append(args, coerce(p))
		}

		cmd, err := ParseCommand(name, args)
		if err != nil {
			if errors.Is(err, ErrUnknownCommand) {
				return nil, err
			}
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// ParseCommand builds one command from its name and string arguments.
func ParseCommand(name string, args []string) (Command, error) {
	cmd, err := parseCommand(name, args)
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

func parseCommand(name string, args []string) (Command, error) {
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}
	required := func(i int, what string) (string, error) {
		if v := arg(i); v != "" {
			return v, nil
		}
		return "", fmt.Errorf("%s: missing argument %q", name, what)
	}

	switch name {
	case "open":
		u, err := required(0, "url")
		return Open{URL: u}, err
	case "snapshot":
		return Snapshot{}, nil
	case "screenshot":
		path := arg(0)
		if path == "" {
			path = DefaultScreenshotPath
		}
		return Screenshot{Path: path, FullPage: arg(1) == "true"}, nil
	case "click", "tryClick":
		sel, err := required(0, "selector")
		policy := Strict
		if name == "tryClick" {
			policy = BestEffort
		}
		return Click{Selector: sel, Policy: policy}, err
	case "type":
		sel, err := required(0, "selector")
		var text string
		if len(args) > 1 {
			text = strings.Join(args[1:], " ")
		}
		return TypeText{Selector: sel, Text: text}, err
	case "getText":
		sel, err := required(0, "selector")
		return GetText{Selector: sel}, err
	case "press":
		key, err := required(0, "key")
		return Press{Key: key}, err
	case "keyboardType":
		return KeyboardType{Text: strings.Join(args, " ")}, nil
	case "newTab":
		return NewTab{URL: arg(0)}, nil
	case "switchTab":
		target, err := required(0, "index or url")
		return SwitchTab{Target: target}, err
	case "closeTab":
		return CloseTab{}, nil
	case "close":
		return CloseSession{}, nil
	case "wait":
		return parseWait(arg(0)), nil
	case "evaluate":
		script, err := required(0, "script")
		return Evaluate{Script: script}, err
	case "upload":
		sel, err := required(0, "selector")
		if err != nil {
			return nil, err
		}
		path, err := required(1, "file path")
		return Upload{Selector: sel, Path: path}, err
	case "comment":
		return Comment{Text: strings.Join(args, " ")}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
}

// parseWait reads the leading integer of ms the way a lenient script
// interpreter would. Anything unparseable waits the default.
func parseWait(ms string) Wait {
	s := strings.TrimSpace(ms)
	// A negative delay is no delay.
	if len(s) > 1 && s[0] == '-' && s[1] >= '0' && s[1] <= '9' {
		return Wait{}
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return Wait{UseDefault: true}
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil || n > math.MaxInt64/int64(time.Millisecond) {
		return Wait{UseDefault: true}
	}
	return Wait{Duration: time.Duration(n) * time.Millisecond}
}

// coerce renders a decoded JSON value as a string argument.
func coerce(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
