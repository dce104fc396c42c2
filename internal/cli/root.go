package cli

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"coopsched/internal/logging"
	"coopsched/internal/sched"
)

var (
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string
	flagConfig    string

	logger = zap.NewNop()
)

// defaultConfigPath returns the scheduler config path, checking COOPSCHED_CONFIG first.
func defaultConfigPath() string {
	if p := os.Getenv("COOPSCHED_CONFIG"); p != "" {
		return p
	}
	return "config.yml"
}

// NewRootCmd creates the root cobra command for the coopsched CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "coopsched",
		Short: "Cooperative priority task scheduler",
		Long: "coopsched runs work in small chunks across four priority queues,\n" +
			"promoting waiting tasks over time and draining idle work when nothing else runs.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(flagLogLevel), flagLogFormat, cmd.ErrOrStderr())
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging and scheduler debug mode")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")
	root.PersistentFlags().StringVar(&flagConfig, "config", defaultConfigPath(), "Scheduler config file (or COOPSCHED_CONFIG env)")

	root.AddCommand(
		newServeCmd(),
		newWatchCmd(),
		newDemoCmd(),
	)

	return root
}

// loadSchedConfig reads the scheduler config and applies --debug.
func loadSchedConfig() sched.Config {
	cfg := sched.Load(flagConfig)
	if flagDebug {
		cfg.DebugMode = true
	}
	return cfg
}
