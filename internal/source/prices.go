package source

import (
	"context"
	"net/url"
	"time"

	"github.com/rgoswami/findata/internal/model"
)

// dailySeriesResponse mirrors the daily adjusted time-series payload.
type dailySeriesResponse struct {
	MetaData map[string]string            `json:"Meta Data"`
	Series   map[string]map[string]string `json:"Time Series (Daily)"`
}

// DailyPrices fetches daily price bars for one symbol and returns the bars
// falling inside the window. The response-level refresh time becomes each
// record's LastUpdated, so re-fetching an unchanged series produces records
// the loader skips.
func (c *Client) DailyPrices(ctx context.Context, symbol string, window model.Window) ([]model.Record, error) {
	query := url.Values{}
	query.Set("function", "TIME_SERIES_DAILY_ADJUSTED")
	query.Set("symbol", symbol)
	query.Set("outputsize", "full")

	var resp dailySeriesResponse
	if err := c.get(ctx, query, &resp); err != nil {
		return nil, err
	}

	refreshed := parseDay(resp.MetaData["3. Last Refreshed"])
	if refreshed.IsZero() {
		refreshed = model.Date(time.Now())
	}

	records := make([]model.Record, 0, len(resp.Series))
	for day, fields := range resp.Series {
		d := parseDay(day)
		if d.IsZero() || !window.Contains(d) {
			continue
		}
		records = append(records, model.NewPrice(model.PriceRecord{
			Symbol:        symbol,
			Date:          d,
			Open:          parseFloat(fields["1. open"]),
			High:          parseFloat(fields["2. high"]),
			Low:           parseFloat(fields["3. low"]),
			Close:         parseFloat(fields["4. close"]),
			AdjustedClose: parseFloat(fields["5. adjusted close"]),
			Volume:        parseVolume(fields["6. volume"]),
			LastUpdated:   refreshed,
		}))
	}

	c.logger.Debug("fetched daily prices",
		"symbol", symbol,
		"window", window.String(),
		"records", len(records),
	)

	return records, nil
}
