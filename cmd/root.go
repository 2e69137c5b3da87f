package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	configCmd "github.com/sidkik/rmasync/cmd/config"
	"github.com/sidkik/rmasync/cmd/dirs"
	"github.com/sidkik/rmasync/cmd/download"
	"github.com/sidkik/rmasync/cmd/slice"
	"github.com/sidkik/rmasync/cmd/util"
	"github.com/sidkik/rmasync/cmd/version"
	"github.com/sidkik/rmasync/pkg/metrics"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged regardless of the
// verbosity flags.
const verboseLogKey = "RMA_LOG_VERBOSE"

// Execute runs the main CLI process.
func Execute() {
	log.AddHook(metrics.Default.LogHook())

	var verbose, quiet int
	rootCmd := &cobra.Command{
		Use:   "rma",
		Short: "Download MarketPsych Indices from the Refinitiv SFTP server",
		Long: "rma finds and downloads the MarketPsych analytics files that\n" +
			"cover a time range, reading each period once from the broadest\n" +
			"bucket that has it.",
		SilenceUsage: true,

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			log.SetLevel(logLevel(verbose, quiet, os.Getenv(verboseLogKey) == "true"))
		},
	}
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v",
		"Log more. May be repeated.")
	rootCmd.PersistentFlags().CountVarP(&quiet, "quiet", "q",
		"Log less. May be repeated.")

	rootCmd.AddCommand(
		configCmd.New(),
		dirs.New(),
		download.New(),
		slice.New(),
		version.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		util.HandleFatalError(err)
	}
}

// logLevel starts from Warn, and moves one level per -v or -q. It stops at
// Debug.
func logLevel(verbose, quiet int, forceDebug bool) log.Level {
	if forceDebug {
		return log.DebugLevel
	}

	level := int(log.WarnLevel) + verbose - quiet
	switch {
	case level < int(log.PanicLevel):
		level = int(log.PanicLevel)
	case level > int(log.DebugLevel):
		level = int(log.DebugLevel)
	}
	return log.Level(level)
}
