package sync

import (
	"github.com/sidkik/rmasync/pkg/period"
)

// Coverage is the envelope of the periods that have been fetched so far. The
// zero Coverage covers nothing.
type Coverage struct {
	envelope period.Period
	set      bool
}

// Covers returns whether p lies entirely within the envelope.
func (c Coverage) Covers(p period.Period) bool {
	return c.set && period.IsSubperiod(p, c.envelope)
}

// Extend returns the envelope of c and periods.
func (c Coverage) Extend(periods ...period.Period) Coverage {
	envelope, ok := period.Union(append([]period.Period{c.envelope}, periods...)...)
	if !ok {
		return c
	}
	return Coverage{envelope: envelope, set: true}
}

// Envelope returns the covered period, and false if nothing is covered.
func (c Coverage) Envelope() (period.Period, bool) {
	return c.envelope, c.set
}
