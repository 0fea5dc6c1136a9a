// Package validate enforces domain invariants before records are loaded.
//
// Hard failures reject the record (routed to the dead-letter sink by the
// cycle runner); soft failures annotate the record with a flag and it is
// loaded anyway. One rejected record never fails the rest of the batch.
package validate

import (
	"fmt"
	"math"
	"sort"

	"github.com/rgoswami/findata/internal/model"
)

// Reason classifies a hard rejection.
type Reason string

const (
	ReasonMissingKeyField Reason = "MissingKeyField"
	ReasonFieldOutOfRange Reason = "FieldOutOfRange"
	ReasonNonNumericValue Reason = "NonNumericValue"
)

// Soft-flag names persisted with the record.
const (
	FlagBalanceMismatch  = "balance_identity_mismatch"
	FlagExtremeDailyMove = "extreme_daily_move"
)

// Config holds soft-check thresholds.
type Config struct {
	// BalanceTolerance is the relative tolerance for
	// total_assets ~ total_liabilities + total_equity.
	BalanceTolerance float64

	// MaxDailyMove is the relative day-over-day close move beyond which a
	// price bar is flagged.
	MaxDailyMove float64
}

// DefaultConfig returns the default soft-check thresholds.
func DefaultConfig() Config {
	return Config{
		BalanceTolerance: 0.01,
		MaxDailyMove:     0.5,
	}
}

// Result is the outcome of validating a single record.
type Result struct {
	OK     bool
	Reason Reason
	Detail string
	Flags  []string
}

// Rejected pairs a rejected record with its reason.
type Rejected struct {
	Record model.Record
	Reason Reason
	Detail string
}

// Validate checks a single record against its domain invariants.
func (c Config) Validate(rec model.Record) Result {
	switch rec.Domain {
	case model.DomainPrices:
		return c.validatePrice(rec.Price)
	case model.DomainStatements:
		return c.validateStatement(rec.Statement)
	case model.DomainIndicators:
		return c.validateIndicator(rec.Indicator)
	}
	return Result{Reason: ReasonMissingKeyField, Detail: fmt.Sprintf("unknown domain %q", rec.Domain)}
}

// ValidateBatch splits a batch into loadable records (soft flags applied) and
// rejections. Day-over-day price-move flags are computed within the batch so
// validation stays pure.
func (c Config) ValidateBatch(batch []model.Record) ([]model.Record, []Rejected) {
	valid := make([]model.Record, 0, len(batch))
	var rejected []Rejected

	for _, rec := range batch {
		res := c.Validate(rec)
		if !res.OK {
			rejected = append(rejected, Rejected{Record: rec, Reason: res.Reason, Detail: res.Detail})
			continue
		}
		valid = append(valid, rec.WithFlags(res.Flags...))
	}

	c.flagExtremeMoves(valid)
	return valid, rejected
}

func (c Config) validatePrice(p *model.PriceRecord) Result {
	if p == nil || p.Symbol == "" || p.Date.IsZero() {
		return Result{Reason: ReasonMissingKeyField, Detail: "price record requires symbol and date"}
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"open", p.Open},
		{"high", p.High},
		{"low", p.Low},
		{"close", p.Close},
		{"adjusted_close", p.AdjustedClose},
	} {
		if !isFinite(f.value) {
			return Result{Reason: ReasonNonNumericValue, Detail: f.name + " is not numeric"}
		}
	}
	if p.Volume < 0 {
		return Result{Reason: ReasonFieldOutOfRange, Detail: fmt.Sprintf("volume %d is negative", p.Volume)}
	}
	if p.High < p.Low {
		return Result{Reason: ReasonFieldOutOfRange, Detail: "high below low"}
	}
	if p.High < p.Open || p.High < p.Close {
		return Result{Reason: ReasonFieldOutOfRange, Detail: "high below open or close"}
	}
	return Result{OK: true}
}

func (c Config) validateStatement(s *model.StatementRecord) Result {
	if s == nil || s.Symbol == "" || s.FiscalDateEnding.IsZero() || s.ReportType == "" {
		return Result{Reason: ReasonMissingKeyField, Detail: "statement record requires symbol, fiscal_date_ending and report_type"}
	}
	for _, f := range []struct {
		name  string
		value *float64
	}{
		{"revenue", s.Revenue},
		{"gross_profit", s.GrossProfit},
		{"net_income", s.NetIncome},
		{"eps", s.EPS},
		{"ebitda", s.EBITDA},
		{"total_assets", s.TotalAssets},
		{"total_liabilities", s.TotalLiabilities},
		{"total_equity", s.TotalEquity},
		{"operating_cash_flow", s.OperatingCashFlow},
		{"capital_expenditure", s.CapitalExpenditure},
	} {
		if f.value != nil && !isFinite(*f.value) {
			return Result{Reason: ReasonNonNumericValue, Detail: f.name + " is not numeric"}
		}
	}

	res := Result{OK: true}

	// Balance-sheet identity is a soft check: flag, never reject.
	if s.TotalAssets != nil && s.TotalLiabilities != nil && s.TotalEquity != nil {
		assets := *s.TotalAssets
		sum := *s.TotalLiabilities + *s.TotalEquity
		if !withinTolerance(assets, sum, c.BalanceTolerance) {
			res.Flags = append(res.Flags, FlagBalanceMismatch)
		}
	}

	return res
}

func (c Config) validateIndicator(i *model.IndicatorRecord) Result {
	if i == nil || i.IndicatorID == "" || i.Date.IsZero() {
		return Result{Reason: ReasonMissingKeyField, Detail: "indicator record requires indicator_id and date"}
	}
	if !isFinite(i.Value) {
		return Result{Reason: ReasonNonNumericValue, Detail: "value is not numeric"}
	}
	return Result{OK: true}
}

// flagExtremeMoves annotates price bars whose close moved more than
// MaxDailyMove relative to the previous bar in the batch, per symbol.
func (c Config) flagExtremeMoves(batch []model.Record) {
	if c.MaxDailyMove <= 0 {
		return
	}

	bySymbol := make(map[string][]int)
	for idx, rec := range batch {
		if rec.Domain == model.DomainPrices {
			bySymbol[rec.Price.Symbol] = append(bySymbol[rec.Price.Symbol], idx)
		}
	}

	for _, idxs := range bySymbol {
		sort.Slice(idxs, func(a, b int) bool {
			return batch[idxs[a]].Price.Date.Before(batch[idxs[b]].Price.Date)
		})
		for i := 1; i < len(idxs); i++ {
			prev := batch[idxs[i-1]].Price.Close
			cur := batch[idxs[i]].Price.Close
			if prev == 0 {
				continue
			}
			if math.Abs(cur-prev)/math.Abs(prev) > c.MaxDailyMove {
				batch[idxs[i]] = batch[idxs[i]].WithFlags(FlagExtremeDailyMove)
			}
		}
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func withinTolerance(a, b, tolerance float64) bool {
	scale := math.Max(math.Abs(a), math.Abs(b))
	if scale == 0 {
		return true
	}
	return math.Abs(a-b)/scale <= tolerance
}
