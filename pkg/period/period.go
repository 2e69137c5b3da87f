// Package period implements the closed time intervals used to decide which
// remote files cover a requested time range.
package period

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sidkik/rmasync/pkg/errors"
)

// DateFormat describes the partial dates accepted by ParseDate.
const DateFormat = "yyyy(-?mm(-?dd(-?HHMM)?)?)?"

// Separators between components are optional and may be any single
// non-digit. Anything after the minutes (seconds, zone) is ignored.
var datePattern = regexp.MustCompile(
	`^(\d{4})(?:\D?(\d{2})(?:\D?(\d{2})(?:\D?(\d{2})\D?(\d{2})(?:\D.*)?)?)?)?$`)

// A Period is a closed interval [Start, End] with minute resolution.
type Period struct {
	Start time.Time
	End   time.Time
}

// New returns the period [start, end].
func New(start, end time.Time) Period {
	return Period{Start: start, End: end}
}

// IsZero returns whether p is the zero Period.
func (p Period) IsZero() bool {
	return p.Start.IsZero() && p.End.IsZero()
}

// Contains returns whether inner lies entirely within p.
func (p Period) Contains(inner Period) bool {
	return !inner.Start.Before(p.Start) && !inner.End.After(p.End)
}

func (p Period) String() string {
	const layout = "2006-01-02 15:04"
	return fmt.Sprintf("%s to %s", p.Start.Format(layout), p.End.Format(layout))
}

// ParseDate parses a partial date of the form yyyy[-mm[-dd[-HHMM]]].
// Missing components default to the start of the period, or to its end
// (December, last day of month, 23:59) when isRangeEnd is set. The day is
// clamped to the length of the resolved month.
func ParseDate(text string, isRangeEnd bool) (time.Time, error) {
	match := datePattern.FindStringSubmatch(text)
	if match == nil {
		return time.Time{}, errors.ParseError{Input: text, Expected: "format: " + DateFormat}
	}

	defaults := [4]int{1, 1, 0, 0}
	if isRangeEnd {
		defaults = [4]int{12, 31, 23, 59}
	}

	year, _ := strconv.Atoi(match[1])
	var parts [4]int
	for i, group := range match[2:] {
		parts[i] = defaults[i]
		if group != "" {
			parts[i], _ = strconv.Atoi(group)
		}
	}
	month, day, hour, minute := parts[0], parts[1], parts[2], parts[3]

	if month < 1 || month > 12 || hour > 23 || minute > 59 || day < 1 {
		return time.Time{}, errors.ParseError{Input: text, Expected: "a valid calendar date"}
	}

	if last := daysIn(year, time.Month(month)); day > last {
		day = last
	}
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC), nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Parse parses a period from its start and end texts. If end is empty, the
// period spans the whole of start, e.g. "2021-01" is all of January.
func Parse(start, end string) (Period, error) {
	if end == "" {
		end = start
	}

	startTime, err := ParseDate(start, false)
	if err != nil {
		return Period{}, err
	}

	endTime, err := ParseDate(end, true)
	if err != nil {
		return Period{}, err
	}

	if startTime.After(endTime) {
		return Period{}, errors.ParseError{
			Input:    start + "-" + end,
			Expected: "start before end",
		}
	}
	return Period{Start: startTime, End: endTime}, nil
}

// Overlaps returns whether the two periods intersect.
func Overlaps(a, b Period) bool {
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	return !start.After(end)
}

// IsSubperiod returns whether inner lies entirely within outer.
func IsSubperiod(inner, outer Period) bool {
	return outer.Contains(inner)
}

// Union returns the bounding envelope of the given periods. Zero periods are
// skipped. The boolean is false if there was nothing to bound.
func Union(periods ...Period) (Period, bool) {
	var envelope Period
	found := false
	for _, p := range periods {
		if p.IsZero() {
			continue
		}

		if !found {
			envelope, found = p, true
			continue
		}

		if p.Start.Before(envelope.Start) {
			envelope.Start = p.Start
		}
		if p.End.After(envelope.End) {
			envelope.End = p.End
		}
	}
	return envelope, found
}

// Layouts for each precision of the filename token, coarsest first.
var tokenLayouts = []string{"2006", "200601", "20060102", "200601021504"}

// ParseToken parses the period field of a remote filename, which is either
// a single partial date ("202101") or a range ("20210110-20210112").
func ParseToken(token string) (Period, error) {
	start, end := token, ""
	if i := strings.IndexByte(token, '-'); i >= 0 {
		start, end = token[:i], token[i+1:]
	}
	return Parse(start, end)
}

// FormatToken is the inverse of ParseToken. It uses the coarsest precision
// that reproduces p exactly.
func FormatToken(p Period) string {
	for _, layout := range tokenLayouts {
		if s := p.Start.Format(layout); roundTrips(s, p) {
			return s
		}
	}

	for _, layout := range tokenLayouts {
		start, end := p.Start.Format(layout), p.End.Format(layout)
		parsed, err := Parse(start, end)
		if err == nil && parsed.Start.Equal(p.Start) && parsed.End.Equal(p.End) {
			return start + "-" + end
		}
	}

	last := tokenLayouts[len(tokenLayouts)-1]
	return p.Start.Format(last) + "-" + p.End.Format(last)
}

func roundTrips(token string, p Period) bool {
	parsed, err := Parse(token, "")
	return err == nil && parsed.Start.Equal(p.Start) && parsed.End.Equal(p.End)
}
