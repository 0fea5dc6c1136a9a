package source

import (
	"context"
	"net/url"

	"github.com/rgoswami/findata/internal/model"
)

// statementReport mirrors one annual or quarterly report in the financial
// statements payload. Numerics are string-encoded; absent values are "None".
type statementReport struct {
	FiscalDateEnding    string `json:"fiscalDateEnding"`
	ReportedDate        string `json:"reportedDate"`
	TotalRevenue        string `json:"totalRevenue"`
	GrossProfit         string `json:"grossProfit"`
	NetIncome           string `json:"netIncome"`
	ReportedEPS         string `json:"reportedEPS"`
	EBITDA              string `json:"ebitda"`
	TotalAssets         string `json:"totalAssets"`
	TotalLiabilities    string `json:"totalLiabilities"`
	TotalEquity         string `json:"totalShareholderEquity"`
	OperatingCashflow   string `json:"operatingCashflow"`
	CapitalExpenditures string `json:"capitalExpenditures"`
}

type statementsResponse struct {
	Symbol           string            `json:"symbol"`
	AnnualReports    []statementReport `json:"annualReports"`
	QuarterlyReports []statementReport `json:"quarterlyReports"`
}

// Statements fetches the full statement history for one symbol and filters to
// reports whose fiscal period ends inside the window. The upstream has no
// range parameter; it always returns the full history.
func (c *Client) Statements(ctx context.Context, symbol string, window model.Window) ([]model.Record, error) {
	query := url.Values{}
	query.Set("function", "FINANCIAL_STATEMENTS")
	query.Set("symbol", symbol)

	var resp statementsResponse
	if err := c.get(ctx, query, &resp); err != nil {
		return nil, err
	}

	var records []model.Record
	for _, r := range resp.AnnualReports {
		if rec, ok := toStatement(symbol, model.ReportAnnual, r, window); ok {
			records = append(records, rec)
		}
	}
	for _, r := range resp.QuarterlyReports {
		if rec, ok := toStatement(symbol, model.ReportQuarterly, r, window); ok {
			records = append(records, rec)
		}
	}

	c.logger.Debug("fetched statements",
		"symbol", symbol,
		"window", window.String(),
		"records", len(records),
	)

	return records, nil
}

func toStatement(symbol, reportType string, r statementReport, window model.Window) (model.Record, bool) {
	fiscalEnd := parseDay(r.FiscalDateEnding)
	if !fiscalEnd.IsZero() && !window.Contains(fiscalEnd) {
		return model.Record{}, false
	}

	reported := parseDay(r.ReportedDate)

	// The reported date is the freshness authority: a restatement carries a
	// newer reported date and overwrites; a stale re-fetch is a no-op.
	return model.NewStatement(model.StatementRecord{
		Symbol:             symbol,
		FiscalDateEnding:   fiscalEnd,
		ReportType:         reportType,
		Revenue:            parseOptionalFloat(r.TotalRevenue),
		GrossProfit:        parseOptionalFloat(r.GrossProfit),
		NetIncome:          parseOptionalFloat(r.NetIncome),
		EPS:                parseOptionalFloat(r.ReportedEPS),
		EBITDA:             parseOptionalFloat(r.EBITDA),
		TotalAssets:        parseOptionalFloat(r.TotalAssets),
		TotalLiabilities:   parseOptionalFloat(r.TotalLiabilities),
		TotalEquity:        parseOptionalFloat(r.TotalEquity),
		OperatingCashFlow:  parseOptionalFloat(r.OperatingCashflow),
		CapitalExpenditure: parseOptionalFloat(r.CapitalExpenditures),
		DateReported:       reported,
		LastUpdated:        reported,
	}), true
}
