package version

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/sidkik/rmasync/pkg/version"
)

// Mocked out for unit testing.
var stdout io.Writer = os.Stdout

// New creates a new `version` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of rma.",
		Long: "Print the version of rma, as a git tag or commit hash,\n" +
			"and the Go runtime it was built with.",
		Run: func(_ *cobra.Command, _ []string) {
			run()
		},
	}
}

func run() {
	fmt.Fprintf(stdout, "rma version: %s\n", version.String())
	fmt.Fprintf(stdout, "go version:  %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
