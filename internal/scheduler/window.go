package scheduler

import (
	"time"

	"github.com/rgoswami/findata/internal/model"
)

// Cadence is the refresh period for a domain.
type Cadence int

const (
	CadenceDaily Cadence = iota
	CadenceMonthly
	CadenceQuarterly
)

// DomainCadence maps each domain to its natural refresh period: prices
// arrive daily, indicators monthly, statements quarterly.
func DomainCadence(domain model.Domain) Cadence {
	switch domain {
	case model.DomainStatements:
		return CadenceQuarterly
	case model.DomainIndicators:
		return CadenceMonthly
	default:
		return CadenceDaily
	}
}

// periodStart floors t to the start of its cadence period in UTC.
func periodStart(c Cadence, t time.Time) time.Time {
	t = t.UTC()
	switch c {
	case CadenceMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case CadenceQuarterly:
		q := (int(t.Month()) - 1) / 3
		return time.Date(t.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// NextWindow computes the window [lastEnd, boundary] a domain is due for at
// now. The boundary is the start of the current period, so a window only
// opens once at least one full period has completed. Consecutive windows
// share the boundary day; the freshness guard makes re-ingesting it a no-op.
// An empty window means the domain is up to date.
//
// When lastEnd is zero the domain has never run and the window is
// bootstrapped to cover lookback before the boundary.
func NextWindow(domain model.Domain, lastEnd, now time.Time, lookback time.Duration) model.Window {
	boundary := periodStart(DomainCadence(domain), now)
	if lastEnd.IsZero() {
		return model.Window{Start: boundary.Add(-lookback), End: boundary}
	}
	if !lastEnd.Before(boundary) {
		return model.Window{}
	}
	return model.Window{Start: lastEnd, End: boundary}
}
