package slice

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sidkik/rmasync/cmd/util"
	"github.com/sidkik/rmasync/pkg/cache"
	"github.com/sidkik/rmasync/pkg/errors"
	"github.com/sidkik/rmasync/pkg/table"
)

// Mocked out for unit testing.
var (
	fs               = afero.NewOsFs()
	stdout io.Writer = os.Stdout
)

// The selections used when a flag isn't set, if the table has them.
const (
	preferredDataType = "News_Social"
	preferredAnalytic = "sentiment"
)

type options struct {
	dataType string
	asset    string
	analytic string
	window   int
	describe bool
}

// New creates a new `slice` command.
func New() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "slice FILE...",
		Short: "Print one analytic of one asset from downloaded files",
		Long: "Print the values of one analytic for one data type and asset,\n" +
			"ordered by time, alongside their rolling mean. The files are\n" +
			"tab-separated, as written by `rma download`, and may be zipped\n" +
			"or gzipped.",
		Args: cobra.MinimumNArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			if err := run(args, opts); err != nil {
				util.HandleFatalError(err)
			}
		},
	}

	cmd.Flags().StringVar(&opts.dataType, "data-type", "",
		"Data type to select. Defaults to "+preferredDataType+", or the first data type.")
	cmd.Flags().StringVar(&opts.asset, "asset", "",
		"Asset code to select. Defaults to the first asset of the data type.")
	cmd.Flags().StringVar(&opts.analytic, "analytic", "",
		"Analytic to print. Defaults to "+preferredAnalytic+", or the first analytic.")
	cmd.Flags().IntVar(&opts.window, "window", 1,
		"Number of values in the rolling mean.")
	cmd.Flags().BoolVar(&opts.describe, "describe", false,
		"Print the data types, assets and analytics in the files instead.")
	return cmd
}

func run(paths []string, opts options) error {
	if opts.window < 1 {
		return errors.NewFriendlyError("The rolling window must be at least 1, got %d", opts.window)
	}

	t := table.New()
	for _, path := range paths {
		fileTable, err := readFile(path)
		if err != nil {
			return errors.WithContext(err, "read "+path)
		}
		t.Append(fileTable)
	}

	if opts.describe {
		fmt.Fprintf(stdout, "Data types: %s\n", strings.Join(t.DataTypes(), ", "))
		fmt.Fprintf(stdout, "Assets: %s\n", strings.Join(t.Assets(), ", "))
		fmt.Fprintf(stdout, "Analytics: %s\n", strings.Join(t.Analytics(), ", "))
		return nil
	}

	dataType := choose(opts.dataType, t.DataTypes(), preferredDataType)
	asset := choose(opts.asset, t.AssetsFor(dataType), "")
	analytic := choose(opts.analytic, t.Analytics(), preferredAnalytic)
	if dataType == "" || asset == "" || analytic == "" {
		return errors.NewFriendlyError("The files don't contain any analytics")
	}

	log.WithFields(log.Fields{
		"dataType": dataType,
		"asset":    asset,
		"analytic": analytic,
	}).Debug("Slicing")
	series, err := t.Series(dataType, asset, analytic)
	if err != nil {
		return errors.WithContext(err, "select series")
	}
	means := table.RollingMean(series, opts.window, table.DefaultMinPeriods(opts.window))

	fmt.Fprintf(stdout, "%s\t%s\tmean\n", table.TimestampColumn, analytic)
	for i, point := range series {
		fmt.Fprintf(stdout, "%s\t%s\t%s\n", point.Time.Format("2006-01-02T15:04:05Z"),
			formatFloat(point.Value), formatFloat(means[i].Value))
	}
	return nil
}

func readFile(path string) (*table.Table, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var t *table.Table
	err = cache.Decompress(f, path, func(r io.Reader, _ string) error {
		t, err = table.Read(r)
		return err
	})
	return t, err
}

// choose returns selected if it's set, otherwise preferred if it's one of
// the options, otherwise the first option.
func choose(selected string, options []string, preferred string) string {
	if selected != "" {
		return selected
	}
	for _, option := range options {
		if option == preferred {
			return option
		}
	}
	if len(options) > 0 {
		return options[0]
	}
	return ""
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
