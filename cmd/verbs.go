package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/stealthbrowse/internal/batch"
)

// verb maps a CLI subcommand onto a batch command name.
type verb struct {
	use     string
	name    string
	short   string
	args    cobra.PositionalArgs
	aliases []string
}

var verbs = []verb{
	{"open <url>", "open", "Open a url in the current tab", cobra.ExactArgs(1), nil},
	{"snapshot", "snapshot", "Print the url, title and markup of the current tab", cobra.NoArgs, nil},
	{"screenshot [path] [fullPage]", "screenshot", "Save a PNG of the current tab", cobra.MaximumNArgs(2), nil},
	{"click <selector>", "click", "Move the pointer to an element and click it", cobra.ExactArgs(1), nil},
	{"try-click <selector>", "tryClick", "Click an element if it shows up, ignoring failures", cobra.ExactArgs(1), []string{"tryClick"}},
	{"type <selector> <text...>", "type", "Focus an element and insert text", cobra.MinimumNArgs(2), nil},
	{"get-text <selector>", "getText", "Print the rendered text of an element", cobra.ExactArgs(1), []string{"getText"}},
	{"press <key>", "press", "Press a key or chord such as Enter or Control+a", cobra.ExactArgs(1), nil},
	{"keyboard-type <text...>", "keyboardType", "Type text key by key at the current focus", cobra.MinimumNArgs(1), []string{"keyboardType"}},
	{"new-tab [url]", "newTab", "Open a new tab", cobra.MaximumNArgs(1), []string{"newTab"}},
	{"switch-tab <index|url>", "switchTab", "Switch to a tab by index or url substring", cobra.ExactArgs(1), []string{"switchTab"}},
	{"close-tab", "closeTab", "Close the current tab", cobra.NoArgs, []string{"closeTab"}},
	{"close", "close", "Close the browser session", cobra.NoArgs, nil},
	{"wait [ms]", "wait", "Wait a number of milliseconds", cobra.MaximumNArgs(1), nil},
	{"evaluate <script>", "evaluate", "Evaluate a script in the current tab", cobra.MinimumNArgs(1), nil},
	{"upload <selector> <file>", "upload", "Click a file input and supply a file", cobra.ExactArgs(2), nil},
}

func newVerbCmd(a *app, v verb) *cobra.Command {
	return &cobra.Command{
		Use:     v.use,
		Aliases: v.aliases,
		Short:   v.short,
		Args:    v.args,
		RunE: func(cmd *cobra.Command, args []string) error {
			if v.name == "evaluate" {
				args = []string{strings.Join(args, " ")}
			}
			return a.runSingle(cmd, v.name, args)
		},
	}
}

// runSingle executes one command and reports its own Result rather than an
// aggregate.
func (a *app) runSingle(cmd *cobra.Command, name string, args []string) error {
	ctx := cmd.Context()
	inv := a.newInvocation()
	inv.commands = 1

	var res batch.Result
	c, err := batch.ParseCommand(name, args)
	if err != nil {
		res = batch.Result{OK: false, Error: err.Error()}
	} else {
		exec, err := a.deps.newExecutor(ctx, a.cfg, inv.logger)
		if err != nil {
			return err
		}
		if res, err = exec.Execute(ctx, c); err != nil {
			return err
		}
	}
	return a.finish(cmd, inv, []batch.Result{res}, res)
}
