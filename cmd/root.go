// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stealthbrowse/internal/config"
	"github.com/xkilldash9x/stealthbrowse/internal/observability"
)

// app is the state shared by one command tree: a private viper instance,
// the resolved configuration and the injected runtime factories.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
	deps    dependencies
}

// NewRootCommand builds a fresh command tree wired to a real browser.
func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultDependencies())
}

func newRootCommand(deps dependencies) *cobra.Command {
	a := &app{v: viper.New(), deps: deps}

	rootCmd := &cobra.Command{
		Use:   "browse",
		Short: "Drive a persistent browser session with human-like input.",
		Long: `browse attaches to the browser listening on the debug port, or launches a
persistent one, and runs commands against it. Every invocation prints the
result as JSON and stores it in the result file.`,
		// Version is dynamically set at build time. See cmd/version.go.
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			observability.Sync()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	flags.Bool("headless", false, "launch the browser without a window (only when no browser is attached)")
	flags.String("executable-path", "", "browser executable to launch")
	flags.String("result-file", "", "where to store the last result")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	rootCmd.AddCommand(
		newRunCmd(a),
		newRunFileCmd(a),
		newHistoryCmd(a),
		newLogsCmd(a),
		newVersionCmd(),
	)
	for _, verb := range verbs {
		rootCmd.AddCommand(newVerbCmd(a, verb))
	}
	return rootCmd
}

// setup resolves configuration and logging before any subcommand runs.
func (a *app) setup(cmd *cobra.Command) error {
	if err := initializeConfig(a.v, a.cfgFile); err != nil {
		return err
	}
	if err := a.v.BindPFlag("logger.level", cmd.Flags().Lookup("log-level")); err != nil {
		return err
	}

	cfg, err := config.NewConfigFromViper(a.v)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, cfg)
	a.cfg = cfg

	observability.InitializeLogger(cfg.Logger())
	a.logger = observability.GetLogger()
	a.logger.Debug("Starting browse", zap.String("version", Version), zap.String("command", cmd.Name()))
	return nil
}

func applyFlagOverrides(cmd *cobra.Command, cfg config.Interface) {
	flags := cmd.Flags()
	if flags.Changed("headless") {
		v, _ := flags.GetBool("headless")
		cfg.SetBrowserHeadless(v)
	}
	if flags.Changed("executable-path") {
		v, _ := flags.GetString("executable-path")
		cfg.SetBrowserExecutablePath(v)
	}
	if flags.Changed("result-file") {
		v, _ := flags.GetString("result-file")
		cfg.SetBatchResultFile(v)
	}
}

// initializeConfig reads in config file and ENV variables if set.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("BROWSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars
	}
	return nil
}

// Execute runs the command tree for os.Args. Fatal errors are reported on
// stderr and returned so main can pick the exit code.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Fatal error:", err)
		}
		return err
	}
	return nil
}
