package output

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/rmasync/pkg/errors"
	"github.com/sidkik/rmasync/pkg/period"
	"github.com/sidkik/rmasync/pkg/remote"
	"github.com/sidkik/rmasync/pkg/table"
)

// windowLayout is the prefix of the ISO-8601 timestamps that's compared
// against the window bounds.
const windowLayout = "2006-01-02T15:04"

// Filter selects the rows collected by TabularAccumulate.
type Filter struct {
	// Assets and Sources restrict the assetCode and dataType columns. An
	// empty set matches everything.
	Assets  []string
	Sources []string

	// Window is the inclusive time range of the windowTimestamp column.
	Window period.Period
}

func (f Filter) hasColumnFilters() bool {
	return len(f.Assets) > 0 || len(f.Sources) > 0
}

// TabularAccumulate parses matching rows into a table.
type TabularAccumulate struct {
	opener Opener
	filter Filter
}

// NewTabularAccumulate creates a TabularAccumulate that keeps the rows
// matching filter.
func NewTabularAccumulate(opener Opener, filter Filter) *TabularAccumulate {
	return &TabularAccumulate{opener: opener, filter: filter}
}

// CopyFile parses the rows of f that match the filter.
func (s *TabularAccumulate) CopyFile(f remote.File) (Result, error) {
	var result Result
	err := openDecompressed(s.opener, f, func(r io.Reader, _ string) error {
		// If the file lies inside the window and there are no column
		// filters, every row matches.
		inWindow := s.filter.Window.Contains(f.Period)
		if !inWindow || s.filter.hasColumnFilters() {
			filtered, err := s.filterRows(r, !inWindow)
			if err != nil {
				return errors.WithContext(err, "filter "+f.Path)
			}
			r = filtered
		}

		t, err := table.Read(r)
		if err != nil {
			return errors.WithContext(err, "parse "+f.Path)
		}

		log.WithFields(log.Fields{
			"path":    f.Path,
			"records": t.Len(),
		}).Debug("Appending records")
		result = Result{Files: 1, Table: t}
		return nil
	})
	return result, err
}

// rowMatcher holds the column positions that the filters apply to. A
// negative position disables that filter.
type rowMatcher struct {
	assetIndex, sourceIndex, timeIndex int
	assets, sources                    map[string]bool
	from, to                           string
}

func (m rowMatcher) match(fields []string) bool {
	if m.assetIndex >= 0 && !m.assets[field(fields, m.assetIndex)] {
		return false
	}
	if m.sourceIndex >= 0 && !m.sources[field(fields, m.sourceIndex)] {
		return false
	}
	if m.timeIndex >= 0 {
		ts := windowKey(field(fields, m.timeIndex))
		if ts < m.from || ts > m.to {
			return false
		}
	}
	return true
}

// windowKey converts a timestamp cell to the windowLayout form so that it
// can be compared as text. Date-only values are midnight, and a space may
// separate the date and time.
func windowKey(ts string) string {
	const dateLen = len("2006-01-02")
	if len(ts) == dateLen {
		return ts + "T00:00"
	}
	if len(ts) > dateLen && ts[dateLen] == ' ' {
		ts = ts[:dateLen] + "T" + ts[dateLen+1:]
	}
	if len(ts) > len(windowLayout) {
		ts = ts[:len(windowLayout)]
	}
	return ts
}

func field(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

// filterRows returns the header of r followed by the rows that match the
// filter. Rows are compared as text so that rejected rows are never parsed.
func (s *TabularAccumulate) filterRows(r io.Reader, checkWindow bool) (io.Reader, error) {
	in := bufio.NewReader(r)
	header, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, errors.WithContext(err, "read header")
	}

	columns := strings.Split(strings.TrimRight(header, "\r\n"), "\t")
	indexOf := func(name string) int {
		for i, col := range columns {
			if col == name {
				return i
			}
		}
		log.WithField("column", name).Warn("Column is missing, so it can't be filtered on")
		return -1
	}

	matcher := rowMatcher{assetIndex: -1, sourceIndex: -1, timeIndex: -1}
	if len(s.filter.Assets) > 0 {
		matcher.assetIndex = indexOf(table.AssetColumn)
		matcher.assets = toSet(s.filter.Assets)
	}
	if len(s.filter.Sources) > 0 {
		matcher.sourceIndex = indexOf(table.SourceColumn)
		matcher.sources = toSet(s.filter.Sources)
	}
	if checkWindow {
		matcher.timeIndex = indexOf(table.TimestampColumn)
		matcher.from = s.filter.Window.Start.UTC().Format(windowLayout)
		matcher.to = s.filter.Window.End.UTC().Format(windowLayout)
	}

	var out bytes.Buffer
	out.WriteString(header)
	for {
		line, err := in.ReadString('\n')
		if line != "" {
			fields := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
			if matcher.match(fields) {
				out.WriteString(line)
			}
		}

		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.WithContext(err, "read row")
		}
	}
	return &out, nil
}

func toSet(values []string) map[string]bool {
	set := map[string]bool{}
	for _, v := range values {
		set[v] = true
	}
	return set
}

// Empty returns a Result with an empty table.
func (s *TabularAccumulate) Empty() Result {
	return Result{Table: table.New()}
}

// Close is a no-op.
func (s *TabularAccumulate) Close() error {
	return nil
}

func (s *TabularAccumulate) sink() {}
