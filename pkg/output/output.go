// Package output implements the destinations that matched remote files are
// written to. The set of sinks is closed: RawConcat, DirectoryCopy,
// TabularAccumulate and Listing.
package output

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/rmasync/pkg/errors"
	"github.com/sidkik/rmasync/pkg/remote"
	"github.com/sidkik/rmasync/pkg/table"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

const (
	// TableSelector selects the in-memory table sink.
	TableSelector = "table://"

	// ListSelector selects the listing sink, which transfers nothing.
	ListSelector = "ls://"
)

// Opener opens remote files. It's implemented by the cache transport.
type Opener interface {
	Open(remotePath string) (afero.File, error)
}

// Sink consumes matched remote files. CopyFile returns the partial result
// for one file, which the caller merges into its running Result.
type Sink interface {
	CopyFile(f remote.File) (Result, error)

	// Empty returns the result of a request that matched no files.
	Empty() Result

	Close() error

	// sink restricts implementations to this package.
	sink()
}

// Result is the aggregated outcome of a request.
type Result struct {
	// Files is the number of remote files handed to the sink.
	Files int

	// Bytes is the number of bytes written to the sink's destination.
	Bytes int64

	// Written are the local files created by DirectoryCopy.
	Written []string

	// Table holds the rows collected by TabularAccumulate.
	Table *table.Table

	// Listing holds the files reported by Listing.
	Listing []remote.File
}

// Merge returns r combined with partial. r's table is extended in place, so
// r shouldn't be used afterwards.
func (r Result) Merge(partial Result) Result {
	merged := Result{
		Files:   r.Files + partial.Files,
		Bytes:   r.Bytes + partial.Bytes,
		Written: append(r.Written, partial.Written...),
		Listing: append(r.Listing, partial.Listing...),
		Table:   r.Table,
	}

	if partial.Table != nil {
		if merged.Table == nil {
			merged.Table = table.New()
		}
		merged.Table.Append(partial.Table)
	}
	return merged
}

// Name returns the name of the sink, for logging and metrics.
func Name(s Sink) string {
	switch s.(type) {
	case *RawConcat:
		return "concat"
	case *DirectoryCopy:
		return "directory"
	case *TabularAccumulate:
		return "table"
	case *Listing:
		return "listing"
	default:
		panic("unknown sink")
	}
}

// ParseSelector creates the sink addressed by selector. An empty selector
// concatenates to stdout, TableSelector accumulates the rows that match
// filter, and ListSelector lists matched files to stdout. A path ending in a
// separator, or "." or "..", copies files into that directory. Any other path
// concatenates into that file. Parent directories of local destinations are
// created.
func ParseSelector(selector string, opener Opener, stdout io.Writer, filter Filter) (Sink, error) {
	switch selector {
	case "":
		return NewRawConcat(opener, stdout), nil
	case TableSelector:
		return NewTabularAccumulate(opener, filter), nil
	case ListSelector:
		return NewListing(stdout), nil
	}

	log.WithField("path", selector).Debug("Creating parent directory")
	if err := fs.MkdirAll(filepath.Dir(selector), 0755); err != nil {
		return nil, errors.WithContext(err, "create parent directory")
	}

	if isDirectory(selector) {
		if err := fs.MkdirAll(selector, 0755); err != nil {
			return nil, errors.WithContext(err, "create output directory")
		}
		return NewDirectoryCopy(opener, selector), nil
	}

	f, err := fs.Create(selector)
	if err != nil {
		return nil, errors.WithContext(err, "create output file")
	}
	return newFileConcat(opener, f), nil
}

func isDirectory(selector string) bool {
	return strings.HasSuffix(selector, "/") ||
		strings.HasSuffix(selector, string(os.PathSeparator)) ||
		selector == "." || selector == ".."
}
