package cli

import (
	"log/slog"

	"github.com/me/cpsync/internal/config"
	"github.com/me/cpsync/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagConfig    string
	flagEnvFile   string
	flagDebug     bool
	flagQuiet     bool
	flagVerbose   bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the cpsync CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cpsync",
		Short: "cpsync: mirror accepted Codeforces and SPOJ solutions",
		Long: "cpsync downloads the source code of your submissions on Codeforces and SPOJ " +
			"into a local folder tree and remembers what it already fetched.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			v := logging.Verbosity{
				Debug:   flagDebug,
				Quiet:   flagQuiet,
				Verbose: flagVerbose,
			}
			if cmd.Flags().Changed("log-level") {
				v.Level = flagLogLevel
			}
			logger = logging.NewLoggerWithWriter(v.Resolve(), flagLogFormat, cmd.ErrOrStderr())
		},
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "YAML config file")
	pf.StringVar(&flagEnvFile, "env-file", ".env", "dotenv file with CPSYNC_* credentials")
	pf.BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "Only log warnings and errors")
	pf.BoolVarP(&flagVerbose, "verbose", "v", true, "Log every skip and download")
	pf.StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newSyncCmd(),
		newLoginCmd(),
		newStatusCmd(),
		newHistoryCmd(),
	)

	return root
}

// reconfigureLogger rebuilds the logger once the config file is known.
// Flags set on the command line still win over file values.
func reconfigureLogger(cmd *cobra.Command, cfg config.Config) {
	changed := cmd.Flags().Changed
	v := logging.Verbosity{Debug: flagDebug, Quiet: flagQuiet, Verbose: cfg.Verbose}
	switch {
	case changed("log-level"):
		v.Level = flagLogLevel
	case cfg.LogLevel != "":
		v.Level = cfg.LogLevel
	}
	format := flagLogFormat
	if !changed("log-format") && cfg.LogFormat != "" {
		format = cfg.LogFormat
	}
	logger = logging.NewLoggerWithWriter(v.Resolve(), format, cmd.ErrOrStderr())
}
