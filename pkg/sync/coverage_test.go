package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/rmasync/pkg/period"
)

func mustParse(t *testing.T, start, end string) period.Period {
	p, err := period.Parse(start, end)
	require.NoError(t, err)
	return p
}

func TestCoverage(t *testing.T) {
	var empty Coverage
	assert.False(t, empty.Covers(mustParse(t, "2021-01-10", "")))
	_, ok := empty.Envelope()
	assert.False(t, ok)

	// Extending with nothing leaves the coverage empty.
	assert.Equal(t, empty, empty.Extend())

	january := empty.Extend(mustParse(t, "2021-01", ""))
	assert.True(t, january.Covers(mustParse(t, "2021-01-10", "")))
	assert.True(t, january.Covers(mustParse(t, "2021-01", "")))
	assert.False(t, january.Covers(mustParse(t, "2021-01-31", "2021-02-01")))

	// The envelope spans the gap between January and March.
	withMarch := january.Extend(mustParse(t, "2021-03", ""))
	assert.True(t, withMarch.Covers(mustParse(t, "2021-02-15", "")))

	envelope, ok := withMarch.Envelope()
	require.True(t, ok)
	assert.Equal(t, mustParse(t, "2021-01", "2021-03"), envelope)
}
