// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stealthbrowse/internal/batch"
	"github.com/xkilldash9x/stealthbrowse/internal/config"
	"github.com/xkilldash9x/stealthbrowse/internal/mocks"
	"github.com/xkilldash9x/stealthbrowse/internal/observability"
	"github.com/xkilldash9x/stealthbrowse/internal/results"
	"github.com/xkilldash9x/stealthbrowse/internal/session"
	"github.com/xkilldash9x/stealthbrowse/internal/store"
)

// -- Fakes --

type fakeExecutor struct {
	trace  []batch.Result
	single batch.Result
	err    error

	ran      [][]batch.Command
	executed []batch.Command
}

func (f *fakeExecutor) RunTrace(ctx context.Context, cmds []batch.Command) ([]batch.Result, error) {
	f.ran = append(f.ran, cmds)
	return f.trace, f.err
}

func (f *fakeExecutor) Execute(ctx context.Context, cmd batch.Command) (batch.Result, error) {
	f.executed = append(f.executed, cmd)
	return f.single, f.err
}

type fakeHistory struct {
	saved   []store.Run
	runs    []store.Run
	limits  []int
	saveErr error
	closed  int
}

func (f *fakeHistory) SaveRun(ctx context.Context, r store.Run) error {
	f.saved = append(f.saved, r)
	return f.saveErr
}

func (f *fakeHistory) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	f.limits = append(f.limits, limit)
	return f.runs, nil
}

// -- Helpers --

type testEnv struct {
	exec       *fakeExecutor
	history    *fakeHistory
	dir        string
	resultFile string
	logFile    string
	configFile string
}

func newTestEnv(t *testing.T, databaseURL string) *testEnv {
	t.Helper()
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("BROWSE_DATABASE_URL", "")

	dir := t.TempDir()
	env := &testEnv{
		exec:       &fakeExecutor{},
		history:    &fakeHistory{},
		dir:        dir,
		resultFile: filepath.Join(dir, "last_result.json"),
		logFile:    filepath.Join(dir, "browse.log"),
	}
	env.configFile = createTempConfig(t, fmt.Sprintf(`
logger:
  level: fatal
  log_file: %q
batch:
  result_file: %q
database:
  url: %q
`, env.logFile, env.resultFile, databaseURL))
	return env
}

func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (e *testEnv) deps() dependencies {
	return dependencies{
		newExecutor: func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Executor, error) {
			return e.exec, nil
		},
		openHistory: func(ctx context.Context, url string, logger *zap.Logger) (History, func(), error) {
			return e.history, func() { e.history.closed++ }, nil
		},
	}
}

func (e *testEnv) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(e.deps())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", e.configFile}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func decodeResult(t *testing.T, s string) batch.Result {
	t.Helper()
	var r batch.Result
	require.NoError(t, batch.Unmarshal([]byte(s), &r))
	return r
}

// -- Tests --

func TestRunCmd_PrintsAndStoresAggregate(t *testing.T) {
	env := newTestEnv(t, "")
	env.exec.trace = []batch.Result{
		{OK: true, URL: "https://example.com/", Title: "Example"},
		{OK: false, Error: "Element not found: #nope"},
	}

	out, err := env.execute(t, "run", `[["open","https://example.com"],["click","#nope"],["snapshot"]]`)
	require.NoError(t, err)

	require.Len(t, env.exec.ran, 1)
	assert.Len(t, env.exec.ran[0], 3)

	got := decodeResult(t, out)
	assert.True(t, got.OK)
	assert.Equal(t, `[{"ok":true,"url":"https://example.com/","title":"Example"},{"ok":false,"error":"Element not found: #nope"}]`, got.Content)
	assert.Contains(t, out, "\n  \"ok\": true", "stdout is indented")

	stored, err := results.Read(env.resultFile)
	require.NoError(t, err)
	assert.Equal(t, got, stored)
	assert.Empty(t, env.history.saved, "no database configured")
}

func TestRunCmd_MalformedBatchIsReported(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.execute(t, "run", `[["open","https://example.com"],["fly"]]`)
	require.NoError(t, err)

	assert.Empty(t, env.exec.ran, "nothing runs when the batch does not parse")
	got := decodeResult(t, out)
	assert.True(t, got.OK)
	assert.Equal(t, `[{"ok":false,"error":"Unknown batch command: fly"}]`, got.Content)
}

func TestRunCmd_LaunchFailureIsFatal(t *testing.T) {
	env := newTestEnv(t, "")
	env.exec.err = fmt.Errorf("%w: %w", session.ErrLaunch, errors.New("no browser executable found"))

	out, err := env.execute(t, "run", `[["open","https://example.com"]]`)
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrLaunch)
	assert.Empty(t, out)
	assert.NoFileExists(t, env.resultFile)
}

func TestRunFileCmd(t *testing.T) {
	env := newTestEnv(t, "")
	env.exec.trace = []batch.Result{{OK: true}}
	path := filepath.Join(env.dir, "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(`[["comment","hi"]]`), 0o644))

	out, err := env.execute(t, "run-file", path)
	require.NoError(t, err)
	assert.Equal(t, []batch.Command{batch.Comment{Text: "hi"}}, env.exec.ran[0])
	assert.Equal(t, `[{"ok":true}]`, decodeResult(t, out).Content)

	_, err = env.execute(t, "run-file", filepath.Join(env.dir, "missing.json"))
	assert.ErrorContains(t, err, "failed to read batch file")
}

func TestVerbCommands(t *testing.T) {
	tests := []struct {
		args []string
		want batch.Command
	}{
		{[]string{"open", "https://example.com"}, batch.Open{URL: "https://example.com"}},
		{[]string{"click", "#go"}, batch.Click{Selector: "#go", Policy: batch.Strict}},
		{[]string{"try-click", "#go"}, batch.Click{Selector: "#go", Policy: batch.BestEffort}},
		{[]string{"tryClick", "#go"}, batch.Click{Selector: "#go", Policy: batch.BestEffort}},
		{[]string{"type", "#q", "hello", "world"}, batch.TypeText{Selector: "#q", Text: "hello world"}},
		{[]string{"keyboard-type", "a", "b"}, batch.KeyboardType{Text: "a b"}},
		{[]string{"screenshot"}, batch.Screenshot{Path: batch.DefaultScreenshotPath}},
		{[]string{"screenshot", "x.png", "true"}, batch.Screenshot{Path: "x.png", FullPage: true}},
		{[]string{"switch-tab", "1"}, batch.SwitchTab{Target: "1"}},
		{[]string{"wait"}, batch.Wait{UseDefault: true}},
		{[]string{"evaluate", "1", "+", "1"}, batch.Evaluate{Script: "1 + 1"}},
		{[]string{"upload", "#f", "cv.pdf"}, batch.Upload{Selector: "#f", Path: "cv.pdf"}},
		{[]string{"close"}, batch.CloseSession{}},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			env := newTestEnv(t, "")
			env.exec.single = batch.Result{OK: true, URL: "https://example.com/"}

			out, err := env.execute(t, tt.args...)
			require.NoError(t, err)
			require.Len(t, env.exec.executed, 1)
			assert.Equal(t, tt.want, env.exec.executed[0])
			assert.Equal(t, env.exec.single, decodeResult(t, out))
		})
	}
}

func TestVerbCommands_ArgumentValidation(t *testing.T) {
	env := newTestEnv(t, "")
	_, err := env.execute(t, "click")
	assert.Error(t, err)
	_, err = env.execute(t, "upload", "#f")
	assert.Error(t, err)
	assert.Empty(t, env.exec.executed)
}

func TestFlagOverrides(t *testing.T) {
	env := newTestEnv(t, "")
	other := filepath.Join(env.dir, "other.json")
	var seen *config.Config
	deps := env.deps()
	deps.newExecutor = func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Executor, error) {
		seen = cfg
		return env.exec, nil
	}

	root := newRootCommand(deps)
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", env.configFile, "--headless", "--executable-path", "/opt/chrome", "--result-file", other, "snapshot"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	require.NotNil(t, seen)
	assert.True(t, seen.Browser().Headless)
	assert.Equal(t, "/opt/chrome", seen.Browser().ExecutablePath)
	assert.FileExists(t, other)
	assert.NoFileExists(t, env.resultFile)
}

func TestApplyFlagOverrides_OnlyChangedFlags(t *testing.T) {
	c := &cobra.Command{Use: "overrides"}
	c.Flags().Bool("headless", true, "")
	c.Flags().String("executable-path", "", "")
	c.Flags().String("result-file", "", "")
	require.NoError(t, c.Flags().Parse([]string{"--headless=false", "--result-file", "out.json"}))

	cfg := new(mocks.MockConfig)
	cfg.On("SetBrowserHeadless", false).Once()
	cfg.On("SetBatchResultFile", "out.json").Once()

	applyFlagOverrides(c, cfg)

	cfg.AssertExpectations(t)
	cfg.AssertNotCalled(t, "SetBrowserExecutablePath", mock.Anything)
}

func TestShell_SharesOneExecutorAcrossLines(t *testing.T) {
	env := newTestEnv(t, "")
	deps := env.deps()
	builds := 0
	build := deps.newExecutor
	deps.newExecutor = func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Executor, error) {
		builds++
		return build(ctx, cfg, logger)
	}
	shell := newShell(deps)

	for _, args := range [][]string{
		{"new-tab", "https://a.test"},
		{"switch-tab", "0"},
		{"run", `[["snapshot"]]`},
	} {
		root := shell.NewRootCommand()
		root.SetOut(&bytes.Buffer{})
		root.SetArgs(append([]string{"--config", env.configFile}, args...))
		require.NoError(t, root.ExecuteContext(context.Background()), args[0])
	}

	assert.Equal(t, 1, builds)
	assert.Len(t, env.exec.executed, 2)
	assert.Len(t, env.exec.ran, 1)
}

func TestShell_RetriesFailedBuild(t *testing.T) {
	env := newTestEnv(t, "")
	deps := env.deps()
	attempts := 0
	deps.newExecutor = func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Executor, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("no driver")
		}
		return env.exec, nil
	}
	shell := newShell(deps)

	run := func() error {
		root := shell.NewRootCommand()
		root.SetOut(&bytes.Buffer{})
		root.SetArgs([]string{"--config", env.configFile, "snapshot"})
		return root.ExecuteContext(context.Background())
	}
	assert.Error(t, run())
	require.NoError(t, run())
	require.NoError(t, run())
	assert.Equal(t, 2, attempts)
}

func TestRun_RecordsHistory(t *testing.T) {
	env := newTestEnv(t, "postgres://u:p@localhost/browse")
	env.exec.trace = []batch.Result{{OK: true}, {OK: false, Error: "x"}}

	before := time.Now()
	_, err := env.execute(t, "run", `[["comment"],["snapshot"],["snapshot"]]`)
	require.NoError(t, err)

	require.Len(t, env.history.saved, 1)
	run := env.history.saved[0]
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, 3, run.Commands)
	assert.Equal(t, 2, run.Steps)
	assert.True(t, run.Failed)
	assert.False(t, run.StartedAt.Before(before))
	assert.False(t, run.FinishedAt.Before(run.StartedAt))
	assert.True(t, json.Valid(run.Result))
	assert.Equal(t, 1, env.history.closed)
}

func TestRun_HistoryFailureDoesNotFailTheRun(t *testing.T) {
	env := newTestEnv(t, "postgres://u:p@localhost/browse")
	env.exec.trace = []batch.Result{{OK: true}}
	env.history.saveErr = errors.New("connection reset")

	_, err := env.execute(t, "run", `[["comment"]]`)
	require.NoError(t, err)
	assert.FileExists(t, env.resultFile)
}

func TestHistoryCmd(t *testing.T) {
	t.Run("requires a database", func(t *testing.T) {
		env := newTestEnv(t, "")
		_, err := env.execute(t, "history")
		assert.ErrorIs(t, err, errNoDatabase)
	})

	t.Run("lists runs", func(t *testing.T) {
		env := newTestEnv(t, "postgres://u:p@localhost/browse")
		env.history.runs = []store.Run{{ID: "r1", Commands: 2, Steps: 2, Result: json.RawMessage(`{"ok":true}`)}}

		out, err := env.execute(t, "history", "--limit", "5")
		require.NoError(t, err)
		assert.Equal(t, []int{5}, env.history.limits)
		assert.Contains(t, out, `"id": "r1"`)
		assert.Contains(t, out, `"commands": 2`)
	})
}

func TestLogsCmd(t *testing.T) {
	env := newTestEnv(t, "")
	require.NoError(t, os.WriteFile(env.logFile, []byte("{\"msg\":\"one\"}\n{\"msg\":\"two\"}\n"), 0o644))

	out, err := env.execute(t, "logs")
	require.NoError(t, err)
	assert.Equal(t, "{\"msg\":\"one\"}\n{\"msg\":\"two\"}\n", out)
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t, "")
	out, err := env.execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "browse version "+Version+"\n", out)

	out, err = env.execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "browse version "+Version+"\n", out)
}

func TestInvalidConfigIsFatal(t *testing.T) {
	observability.ResetForTest()
	path := createTempConfig(t, "browser:\n  debug_port: 0\n")

	root := newRootCommand(dependencies{})
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", path, "snapshot"})
	err := root.ExecuteContext(context.Background())
	assert.ErrorContains(t, err, "browser.debug_port")
}
