package table

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/sidkik/rmasync/pkg/errors"
)

// Point is one value of a time series.
type Point struct {
	Time  time.Time
	Value float64
}

// Series returns the values of analytic for one source and asset, ordered
// by timestamp. Empty values are skipped.
func (t *Table) Series(dataType, asset, analytic string) ([]Point, error) {
	sourceIndex := t.ColumnIndex(SourceColumn)
	assetIndex := t.ColumnIndex(AssetColumn)
	valueIndex := t.ColumnIndex(analytic)
	for _, col := range []struct {
		name  string
		index int
	}{
		{SourceColumn, sourceIndex},
		{AssetColumn, assetIndex},
		{analytic, valueIndex},
	} {
		if col.index < 0 {
			return nil, errors.NewFriendlyError("The table has no %q column", col.name)
		}
	}

	var series []Point
	for i, row := range t.Rows {
		if row[sourceIndex] != dataType || row[assetIndex] != asset || row[valueIndex] == "" {
			continue
		}

		value, err := strconv.ParseFloat(row[valueIndex], 64)
		if err != nil {
			return nil, errors.WithContext(err, "parse "+analytic)
		}
		series = append(series, Point{Time: t.Times[i], Value: value})
	}

	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Time.Before(series[j].Time)
	})
	return series, nil
}

// DefaultMinPeriods returns the number of values a rolling window needs
// before it produces a mean.
func DefaultMinPeriods(window int) int {
	if window < 10 {
		return window
	}
	return 10
}

// RollingMean returns the trailing mean of the last window points at each
// point. Points with fewer than minPeriods values in their window are NaN.
func RollingMean(series []Point, window, minPeriods int) []Point {
	if window < 1 {
		window = 1
	}

	means := make([]Point, len(series))
	var sum float64
	for i, point := range series {
		sum += point.Value
		if i >= window {
			sum -= series[i-window].Value
		}

		count := i + 1
		if count > window {
			count = window
		}

		mean := math.NaN()
		if count >= minPeriods {
			mean = sum / float64(count)
		}
		means[i] = Point{Time: point.Time, Value: mean}
	}
	return means
}
