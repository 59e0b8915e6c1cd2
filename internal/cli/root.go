package cli

import (
	"errors"
	"io"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/example/ipacheck/internal/config"
	"github.com/example/ipacheck/internal/logging"
	"github.com/example/ipacheck/internal/version"
	"github.com/example/ipacheck/internal/wire"
)

// ErrIssuesFound is returned by check when --fail-on-issues is set and a check failed.
var ErrIssuesFound = errors.New("consistency issues found")

// envFiles are loaded after the config file when present in the working directory.
var envFiles = []string{".env", ".env.local"}

var (
	configPath string
	logOpts    logging.Options
	noColor    bool

	loaded    *config.Result
	logger    logrus.FieldLogger = logging.Discard()
	logCloser io.Closer
)

// RootCmd returns the ipacheck root command with all subcommands attached.
func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "ipacheck",
		Short:   "Consistency checks across FreeIPA directory servers",
		Version: version.String(),
		Long: `ipacheck queries every server of a FreeIPA domain and compares what they hold:
users, groups, hosts, rules, certificates, replication status and more.

Configuration is read from ~/.config/ipacheck/config.yaml, then .env files,
then IPACHECK_* environment variables; command line flags win over all of them.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "config file (default ~/.config/ipacheck/config.yaml)")
	flags.BoolVar(&logOpts.Debug, "debug", false, "debug logging")
	flags.BoolVarP(&logOpts.Verbose, "verbose", "v", false, "verbose logging")
	flags.BoolVarP(&logOpts.Quiet, "quiet", "q", false, "no log output on the console")
	flags.StringVarP(&logOpts.File, "log-file", "l", "", "append JSON logs to this file")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(InitCmd())
	rootCmd.AddCommand(CheckCmd())
	rootCmd.AddCommand(RunsCmd())
	rootCmd.AddCommand(ShowCmd())
	rootCmd.AddCommand(CatalogCmd())

	return rootCmd
}

// setup loads configuration and logging before any subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	if noColor {
		color.NoColor = true
	}

	res, err := config.Load(configPath, envFiles...)
	if err != nil {
		return err
	}
	loaded = res

	if logOpts.File == "" {
		logOpts.File = res.Config.Log.File
	}
	l, closer, err := logging.New(logOpts)
	if err != nil {
		return err
	}
	logger, logCloser = l, closer

	if res.Created {
		logger.WithField("path", res.Path).Warn("created config file from template, edit it before the next run")
	}

	wire.Configure(res.Config, logger)
	return nil
}

// currentConfig returns the loaded configuration, or defaults when setup did not run.
func currentConfig() *config.Config {
	if loaded == nil {
		return config.Defaults()
	}
	return loaded.Config
}

// Shutdown flushes the log file and closes the history database.
func Shutdown() {
	if err := wire.Close(); err != nil {
		logger.WithError(err).Warn("failed to close database")
	}
	if logCloser != nil {
		logCloser.Close()
	}
}
