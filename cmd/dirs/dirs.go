package dirs

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sidkik/rmasync/cmd/util"
	"github.com/sidkik/rmasync/pkg/errors"
	"github.com/sidkik/rmasync/pkg/layout"
	"github.com/sidkik/rmasync/pkg/sync"
)

// Mocked out for unit testing.
var (
	stdout  io.Writer = os.Stdout
	connect           = sync.Connect
)

// New creates a new `dirs` command.
func New() *cobra.Command {
	var server util.ServerFlags
	var buckets []string
	cmd := &cobra.Command{
		Use:   "dirs [USER] ASSET_CLASS FREQUENCY",
		Short: "Print the remote directories that are searched for an asset class",
		Long: "Print the remote directories that are searched for an asset class\n" +
			"and frequency, broadest bucket first. The server is only contacted\n" +
			"if --detect is set.",
		Args: cobra.RangeArgs(2, 3),
		Run: func(_ *cobra.Command, args []string) {
			if err := run(args, server, buckets); err != nil {
				util.HandleFatalError(err)
			}
		},
	}

	server.Register(cmd)
	cmd.Flags().StringSliceVarP(&buckets, "buckets", "b", nil,
		"Only print these buckets (monthly, daily, hourly, minutely). Defaults to all.")
	return cmd
}

func run(args []string, server util.ServerFlags, bucketNames []string) error {
	resolved, args, err := server.Resolve(args)
	if err != nil {
		return err
	}
	if len(args) != 2 {
		return errors.NewFriendlyError("Expected ASSET_CLASS and FREQUENCY arguments")
	}

	req := sync.Request{
		Prefix:   resolved.Prefix,
		Template: resolved.Template,
		Trial:    resolved.Trial,
	}
	if req.AssetClass, err = layout.ParseAssetClass(args[0]); err != nil {
		return err
	}
	if req.Frequency, err = layout.ParseFrequency(args[1]); err != nil {
		return err
	}
	for _, name := range bucketNames {
		bucket, err := layout.ParseBucket(name)
		if err != nil {
			return err
		}
		req.Buckets = append(req.Buckets, bucket)
	}

	var dirs []string
	if req.Template == "" {
		planner, err := connect(resolved.Connect)
		if err != nil {
			return errors.WithContext(err, "connect")
		}
		defer planner.Close()

		if dirs, err = planner.ListDirectories(req); err != nil {
			return errors.WithContext(err, "list directories")
		}
	} else {
		dirs = sync.Directories(req, req.Template)
	}

	for _, dir := range dirs {
		fmt.Fprintln(stdout, dir)
	}
	return nil
}
