package util

import (
	"fmt"
	"os"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/rmasync/pkg/config"
	"github.com/sidkik/rmasync/pkg/errors"
	"github.com/sidkik/rmasync/pkg/keys"
	"github.com/sidkik/rmasync/pkg/layout"
	"github.com/sidkik/rmasync/pkg/metrics"
	"github.com/sidkik/rmasync/pkg/remote"
	"github.com/sidkik/rmasync/pkg/sync"
)

// Mocked out for unit testing.
var (
	exit            = os.Exit
	parseUserConfig = config.ParseUserOrDefault
)

// HandleFatalError prints err and exits. Errors with a friendly message are
// printed without their debugging context.
func HandleFatalError(err error) {
	log.WithError(err).Debug("Fatal error")
	fmt.Fprintln(os.Stderr, errors.GetPrintableMessage(err))
	exit(1)
}

// HandlePanic logs and exits if the calling goroutine is panicking. It
// should be deferred.
func HandlePanic() {
	if r := recover(); r != nil {
		log.WithField("panic", r).WithField("stack", string(debug.Stack())).
			Error("Unexpected panic")
		fmt.Fprintf(os.Stderr, "rma crashed unexpectedly: %v\n", r)
		exit(1)
	}
}

// ServerFlags are the flags shared by the commands that read from the
// server. Unset flags fall back to the user config.
type ServerFlags struct {
	Key         string
	Host        string
	KnownHosts  string
	Mirror      string
	CacheDir    string
	Prefix      string
	Template    string
	Detect      bool
	Trial       bool
	MetricsFile string
}

// Register adds the flags to cmd.
func (f *ServerFlags) Register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.Key, "key", "k", "",
		"Private key file. Defaults to "+keys.KeyDir+"/USER.")
	flags.StringVar(&f.Host, "host", "",
		"SFTP server. Defaults to "+remote.DefaultHost+".")
	flags.StringVar(&f.KnownHosts, "known-hosts", "",
		"known_hosts file used to verify the server. The server isn't verified if it's not set.")
	flags.StringVar(&f.Mirror, "mirror", "",
		"Read from a local copy of the server's tree instead of connecting.")
	flags.StringVar(&f.CacheDir, "cache-dir", "",
		"Directory that downloaded files are cached in. Defaults to "+sync.DefaultCacheDir+".")
	flags.StringVar(&f.Prefix, "prefix", "",
		"Root directory on the server. Defaults to "+layout.DefaultPrefix+".")
	flags.StringVar(&f.Template, "template", "",
		"Directory layout on the server, using {prefix}, {asset_class}, {frequency} and {bucket}. "+
			"Defaults to "+layout.DefaultTemplate+".")
	flags.BoolVar(&f.Detect, "detect", false,
		"Detect the directory layout from the server's root directory.")
	flags.BoolVar(&f.Trial, "trial", false,
		"Use the directories of trial accounts.")
	flags.StringVar(&f.MetricsFile, "metrics-file", "",
		"Write transfer metrics to this file in the Prometheus text format.")
}

// Resolved is the result of merging ServerFlags with the user config.
type Resolved struct {
	User     string
	Prefix   string
	Template string
	Trial    bool
	Connect  sync.ConnectOptions
}

// Resolve parses the optional leading USER argument, and merges the flags
// with the user config. The user may be omitted from args if it's set in
// the config, in which case args starts with the asset class.
func (f ServerFlags) Resolve(args []string) (Resolved, []string, error) {
	cfg, err := parseUserConfig()
	if err != nil {
		return Resolved{}, nil, errors.WithContext(err, "read config")
	}

	user := cfg.User
	if len(args) > 0 {
		if _, err := layout.ParseAssetClass(args[0]); err != nil {
			user, args = args[0], args[1:]
		}
	}
	if user == "" && f.Mirror == "" {
		return Resolved{}, nil, errors.NewFriendlyError(
			"No user was given. Pass it as the first argument, or run `rma config --user USER`.")
	}

	template := firstNonEmpty(f.Template, cfg.Template, layout.DefaultTemplate)
	if f.Detect {
		template = ""
	}

	return Resolved{
		User:     user,
		Prefix:   firstNonEmpty(f.Prefix, cfg.Prefix),
		Template: template,
		Trial:    f.Trial || cfg.Trial,
		Connect: sync.ConnectOptions{
			User:       user,
			KeyPath:    firstNonEmpty(f.Key, cfg.Key),
			Host:       firstNonEmpty(f.Host, cfg.Host),
			KnownHosts: firstNonEmpty(f.KnownHosts, cfg.KnownHosts),
			Mirror:     f.Mirror,
			CacheDir:   firstNonEmpty(f.CacheDir, cfg.CacheDir),
		},
	}, args, nil
}

// WriteMetrics writes the collected metrics if a metrics file was
// requested.
func (f ServerFlags) WriteMetrics() {
	if f.MetricsFile == "" {
		return
	}

	if err := metrics.WriteTextfile(f.MetricsFile, metrics.Registry); err != nil {
		log.WithError(err).Warn("Failed to write metrics")
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
