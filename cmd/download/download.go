package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/rmasync/cmd/util"
	"github.com/sidkik/rmasync/pkg/errors"
	"github.com/sidkik/rmasync/pkg/layout"
	"github.com/sidkik/rmasync/pkg/output"
	"github.com/sidkik/rmasync/pkg/period"
	"github.com/sidkik/rmasync/pkg/sync"
)

// Mocked out for unit testing.
var (
	stdout  io.Writer = os.Stdout
	clock             = clockwork.NewRealClock()
	connect           = sync.Connect
)

type options struct {
	server  util.ServerFlags
	output  string
	ls      bool
	buckets []string
	assets  []string
	sources []string
	dedupe  bool
}

// New creates a new `download` command.
func New() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "download [USER] ASSET_CLASS FREQUENCY [START [END]]",
		Short: "Download the analytics files covering a time range",
		Long: "Download the analytics files covering a time range.\n\n" +
			"START and END are dates of the form " + period.DateFormat + ". START\n" +
			"defaults to today, and END defaults to the end of START, so `2021`\n" +
			"downloads the whole year.\n\n" +
			"By default, the files are concatenated to stdout. Use --output to\n" +
			"write them to a file, or to a directory if the path ends with a\n" +
			"slash. Use --output " + output.TableSelector + " to filter the rows by --assets\n" +
			"and --sources, and print the result.",
		Args: cobra.RangeArgs(2, 5),
		Run: func(_ *cobra.Command, args []string) {
			defer opts.server.WriteMetrics()
			if err := run(args, opts); err != nil {
				util.HandleFatalError(err)
			}
		},
	}

	opts.server.Register(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "",
		"Where to write the files: a file, a directory ending with a slash, or "+
			output.TableSelector+". Defaults to stdout.")
	cmd.Flags().BoolVar(&opts.ls, "ls", false,
		"List the matching files without downloading them.")
	cmd.Flags().StringSliceVarP(&opts.buckets, "buckets", "b", nil,
		"Only search these buckets (monthly, daily, hourly, minutely). Defaults to all.")
	cmd.Flags().StringSliceVar(&opts.assets, "assets", nil,
		"Only keep rows for these asset codes. Requires --output "+output.TableSelector+".")
	cmd.Flags().StringSliceVar(&opts.sources, "sources", nil,
		"Only keep rows for these data types. Requires --output "+output.TableSelector+".")
	cmd.Flags().BoolVar(&opts.dedupe, "dedupe", false,
		"Remove duplicate rows. Requires --output "+output.TableSelector+".")
	return cmd
}

func run(args []string, opts options) error {
	resolved, args, err := opts.server.Resolve(args)
	if err != nil {
		return err
	}

	req, err := parseRequest(args, opts, clock.Now())
	if err != nil {
		return err
	}
	req.Prefix = resolved.Prefix
	req.Template = resolved.Template
	req.Trial = resolved.Trial

	selector := opts.output
	if opts.ls {
		selector = output.ListSelector
	}

	planner, err := connect(resolved.Connect)
	if err != nil {
		return errors.WithContext(err, "connect")
	}
	defer planner.Close()

	log.WithFields(log.Fields{
		"assetClass": req.AssetClass,
		"frequency":  req.Frequency,
		"period":     req.Period,
	}).Debug("Downloading")
	res, err := planner.Download(context.Background(), req, selector)
	if err != nil {
		return errors.WithContext(err, "download")
	}

	if res.Table != nil {
		if err := res.Table.WriteTSV(stdout); err != nil {
			return errors.WithContext(err, "print table")
		}
	}
	if len(res.Written) > 0 {
		fmt.Fprintf(stdout, "Wrote %d files\n", len(res.Written))
	}
	return nil
}

// parseRequest parses the positional arguments after the user. It fails
// before anything is read from the server.
func parseRequest(args []string, opts options, now time.Time) (sync.Request, error) {
	if len(args) < 2 {
		return sync.Request{}, errors.NewFriendlyError(
			"Expected ASSET_CLASS and FREQUENCY arguments")
	}
	if len(args) > 4 {
		return sync.Request{}, errors.NewFriendlyError(
			"Too many arguments. Expected ASSET_CLASS FREQUENCY [START [END]]")
	}

	assetClass, err := layout.ParseAssetClass(args[0])
	if err != nil {
		return sync.Request{}, err
	}

	frequency, err := layout.ParseFrequency(args[1])
	if err != nil {
		return sync.Request{}, err
	}

	start := now.UTC().Format("2006-01-02")
	var end string
	if len(args) > 2 {
		start = args[2]
	}
	if len(args) > 3 {
		end = args[3]
	}
	p, err := period.Parse(start, end)
	if err != nil {
		return sync.Request{}, err
	}

	var buckets []layout.Bucket
	for _, name := range opts.buckets {
		bucket, err := layout.ParseBucket(name)
		if err != nil {
			return sync.Request{}, err
		}
		buckets = append(buckets, bucket)
	}

	if opts.output != output.TableSelector &&
		(len(opts.assets) > 0 || len(opts.sources) > 0 || opts.dedupe) {
		log.Warn("--assets, --sources and --dedupe only apply to --output " + output.TableSelector)
	}

	return sync.Request{
		AssetClass: assetClass,
		Frequency:  frequency,
		Period:     p,
		Assets:     opts.assets,
		Sources:    opts.sources,
		Buckets:    buckets,
		Dedupe:     opts.dedupe,
	}, nil
}
