// Package table holds analytics records parsed from tab-separated files.
package table

import (
	"encoding/csv"
	"io"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/rmasync/pkg/errors"
)

// Well-known columns of the analytics files.
const (
	IDColumn            = "id"
	AssetColumn         = "assetCode"
	TimestampColumn     = "windowTimestamp"
	SourceColumn        = "dataType"
	SystemVersionColumn = "systemVersion"
	TickerColumn        = "ticker"
)

// metadataColumns are the columns that aren't analytics values.
var metadataColumns = map[string]bool{
	IDColumn:            true,
	AssetColumn:         true,
	TimestampColumn:     true,
	SourceColumn:        true,
	SystemVersionColumn: true,
	TickerColumn:        true,
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Table is an in-memory set of records. Times holds the parsed
// TimestampColumn of each row, or the zero time if the column is absent.
type Table struct {
	Columns []string
	Rows    [][]string
	Times   []time.Time
}

// New returns an empty table.
func New() *Table {
	return &Table{}
}

// Read parses tab-separated records. The first line is the header.
func Read(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return New(), nil
	} else if err != nil {
		return nil, errors.WithContext(err, "read header")
	}

	t := &Table{Columns: header}
	tsIndex := t.ColumnIndex(TimestampColumn)
	var truncated int
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.WithContext(err, "read record")
		}

		row := make([]string, len(header))
		if copy(row, record) < len(record) {
			truncated++
		}

		var ts time.Time
		if tsIndex >= 0 && row[tsIndex] != "" {
			ts, err = ParseTimestamp(row[tsIndex])
			if err != nil {
				return nil, err
			}
		}

		t.Rows = append(t.Rows, row)
		t.Times = append(t.Times, ts)
	}

	if truncated > 0 {
		log.WithFields(log.Fields{
			"rows":    truncated,
			"columns": len(header),
		}).Warn("Dropped fields beyond the header's columns")
	}
	return t, nil
}

// ParseTimestamp parses an ISO-8601 timestamp. Timestamps without a zone
// are in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, errors.ParseError{Input: s, Expected: "an ISO-8601 timestamp"}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, col := range t.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// Column returns the values of the named column, or nil if there's no such
// column.
func (t *Table) Column(name string) []string {
	i := t.ColumnIndex(name)
	if i < 0 {
		return nil
	}

	values := make([]string, len(t.Rows))
	for j, row := range t.Rows {
		values[j] = row[i]
	}
	return values
}

// Append adds the rows of other to t. Columns are matched by name, and
// columns missing from either table are filled with empty values.
func (t *Table) Append(other *Table) {
	if other == nil || len(other.Columns) == 0 {
		return
	}

	for _, col := range other.Columns {
		if t.ColumnIndex(col) < 0 {
			t.Columns = append(t.Columns, col)
			for i := range t.Rows {
				t.Rows[i] = append(t.Rows[i], "")
			}
		}
	}

	positions := make([]int, len(other.Columns))
	for i, col := range other.Columns {
		positions[i] = t.ColumnIndex(col)
	}

	for i, otherRow := range other.Rows {
		row := make([]string, len(t.Columns))
		for j, value := range otherRow {
			row[positions[j]] = value
		}
		t.Rows = append(t.Rows, row)
		t.Times = append(t.Times, other.Times[i])
	}
}

// Dedupe removes rows that are identical to an earlier row, and returns the
// number of rows removed. Overlapping files can contain the same records.
func (t *Table) Dedupe() int {
	seen := map[string]bool{}
	var rows [][]string
	var times []time.Time
	for i, row := range t.Rows {
		key := strings.Join(row, "\x00")
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, row)
		times = append(times, t.Times[i])
	}

	removed := len(t.Rows) - len(rows)
	t.Rows, t.Times = rows, times
	return removed
}

// WriteTSV writes the table in the same format that Read parses.
func (t *Table) WriteTSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	writer.Comma = '\t'

	if err := writer.Write(t.Columns); err != nil {
		return errors.WithContext(err, "write header")
	}
	if err := writer.WriteAll(t.Rows); err != nil {
		return errors.WithContext(err, "write rows")
	}
	return nil
}

// DataTypes returns the distinct sources in the table.
func (t *Table) DataTypes() []string {
	return t.distinct(SourceColumn)
}

// Assets returns the distinct asset codes in the table.
func (t *Table) Assets() []string {
	return t.distinct(AssetColumn)
}

// AssetsFor returns the distinct asset codes in the rows of the given data
// type.
func (t *Table) AssetsFor(dataType string) []string {
	sources, assets := t.Column(SourceColumn), t.Column(AssetColumn)
	if sources == nil || assets == nil {
		return nil
	}

	set := map[string]bool{}
	for i, source := range sources {
		if source == dataType {
			set[assets[i]] = true
		}
	}
	return sortedKeys(set)
}

// Analytics returns the names of the analytics value columns.
func (t *Table) Analytics() []string {
	var analytics []string
	for _, col := range t.Columns {
		if !metadataColumns[col] {
			analytics = append(analytics, col)
		}
	}
	sort.Strings(analytics)
	return analytics
}

func (t *Table) distinct(column string) []string {
	set := map[string]bool{}
	for _, value := range t.Column(column) {
		set[value] = true
	}

	return sortedKeys(set)
}

func sortedKeys(set map[string]bool) []string {
	var values []string
	for value := range set {
		values = append(values, value)
	}
	sort.Strings(values)
	return values
}
