package model

import (
	"fmt"
	"time"
)

// Domain discriminates the three record variants.
type Domain string

const (
	DomainPrices     Domain = "prices"
	DomainStatements Domain = "statements"
	DomainIndicators Domain = "indicators"
)

// Domains returns all known domains in a stable order.
func Domains() []Domain {
	return []Domain{DomainPrices, DomainStatements, DomainIndicators}
}

// Valid reports whether d is a known domain.
func (d Domain) Valid() bool {
	switch d {
	case DomainPrices, DomainStatements, DomainIndicators:
		return true
	}
	return false
}

// DateFormat is the wire/key format for daily-resolution dates.
const DateFormat = "2006-01-02"

// Window is an inclusive date interval [Start, End] over which a cycle runs.
// Consecutive scheduler windows share their boundary day; re-ingesting it is
// a no-op under the freshness guard.
type Window struct {
	Start time.Time
	End   time.Time
}

// Empty reports whether the window covers no time. A single-day window
// (Start == End) is not empty.
func (w Window) Empty() bool {
	return w.End.Before(w.Start) || (w.Start.IsZero() && w.End.IsZero())
}

// Contains reports whether t falls inside the window, both ends inclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w Window) String() string {
	return w.Start.Format(DateFormat) + ".." + w.End.Format(DateFormat)
}

// -----------------------------------------------------------------------------
// Record Variants
// -----------------------------------------------------------------------------

// PriceRecord is one daily OHLCV bar.
type PriceRecord struct {
	Symbol        string    // Key part 1 (e.g., "HSBA.L")
	Date          time.Time // Key part 2, UTC midnight
	Open          float64
	High          float64
	Low           float64
	Close         float64
	AdjustedClose float64
	Volume        int64     // Must be >= 0
	LastUpdated   time.Time // Upstream refresh time, conflict authority
}

// StatementRecord is one reported financial statement.
// Optional payload fields are nil when the upstream omits them.
type StatementRecord struct {
	Symbol             string    // Key part 1
	FiscalDateEnding   time.Time // Key part 2, UTC midnight
	ReportType         string    // Key part 3: "annual" or "quarterly"
	Revenue            *float64
	GrossProfit        *float64
	NetIncome          *float64
	EPS                *float64
	EBITDA             *float64
	TotalAssets        *float64
	TotalLiabilities   *float64
	TotalEquity        *float64
	OperatingCashFlow  *float64
	CapitalExpenditure *float64
	DateReported       time.Time // When the statement was published
	LastUpdated        time.Time // Conflict authority (tracks DateReported)
}

// Report types for StatementRecord.
const (
	ReportAnnual    = "annual"
	ReportQuarterly = "quarterly"
)

// IndicatorRecord is one economic indicator observation.
type IndicatorRecord struct {
	IndicatorID string    // Key part 1 (e.g., "CPI")
	Date        time.Time // Key part 2, UTC midnight
	Value       float64
	Unit        string
	Source      string
	LastUpdated time.Time // Conflict authority
}

// -----------------------------------------------------------------------------
// Tagged Variant
// -----------------------------------------------------------------------------

// Record is the tagged-variant shape shared by the extract/validate/load
// pipeline. Exactly one of the pointer fields is set, matching Domain.
// Flags carries soft-validation annotations; flagged records are still loaded.
type Record struct {
	Domain    Domain
	Price     *PriceRecord
	Statement *StatementRecord
	Indicator *IndicatorRecord
	Flags     []string
}

// NewPrice wraps a PriceRecord.
func NewPrice(p PriceRecord) Record {
	return Record{Domain: DomainPrices, Price: &p}
}

// NewStatement wraps a StatementRecord.
func NewStatement(s StatementRecord) Record {
	return Record{Domain: DomainStatements, Statement: &s}
}

// NewIndicator wraps an IndicatorRecord.
func NewIndicator(i IndicatorRecord) Record {
	return Record{Domain: DomainIndicators, Indicator: &i}
}

// Key returns the composite natural key as a stable string.
func (r Record) Key() string {
	switch r.Domain {
	case DomainPrices:
		if r.Price == nil {
			return ""
		}
		return r.Price.Symbol + "|" + r.Price.Date.Format(DateFormat)
	case DomainStatements:
		if r.Statement == nil {
			return ""
		}
		return r.Statement.Symbol + "|" + r.Statement.FiscalDateEnding.Format(DateFormat) + "|" + r.Statement.ReportType
	case DomainIndicators:
		if r.Indicator == nil {
			return ""
		}
		return r.Indicator.IndicatorID + "|" + r.Indicator.Date.Format(DateFormat)
	}
	return ""
}

// SeriesKey returns the key component that identifies the series a record
// belongs to (symbol or indicator id), used for range queries.
func (r Record) SeriesKey() string {
	switch r.Domain {
	case DomainPrices:
		if r.Price != nil {
			return r.Price.Symbol
		}
	case DomainStatements:
		if r.Statement != nil {
			return r.Statement.Symbol
		}
	case DomainIndicators:
		if r.Indicator != nil {
			return r.Indicator.IndicatorID
		}
	}
	return ""
}

// Timestamp returns the record's time dimension (the partition column).
func (r Record) Timestamp() time.Time {
	switch r.Domain {
	case DomainPrices:
		if r.Price != nil {
			return r.Price.Date
		}
	case DomainStatements:
		if r.Statement != nil {
			return r.Statement.FiscalDateEnding
		}
	case DomainIndicators:
		if r.Indicator != nil {
			return r.Indicator.Date
		}
	}
	return time.Time{}
}

// LastUpdated returns the conflict-resolution authority timestamp.
func (r Record) LastUpdated() time.Time {
	switch r.Domain {
	case DomainPrices:
		if r.Price != nil {
			return r.Price.LastUpdated
		}
	case DomainStatements:
		if r.Statement != nil {
			return r.Statement.LastUpdated
		}
	case DomainIndicators:
		if r.Indicator != nil {
			return r.Indicator.LastUpdated
		}
	}
	return time.Time{}
}

// WithFlags returns a copy of r carrying the given soft-validation flags.
func (r Record) WithFlags(flags ...string) Record {
	r.Flags = append(append([]string(nil), r.Flags...), flags...)
	return r
}

func (r Record) String() string {
	return fmt.Sprintf("%s/%s", r.Domain, r.Key())
}

// Date truncates t to UTC midnight.
func Date(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string to UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateFormat, s)
}
