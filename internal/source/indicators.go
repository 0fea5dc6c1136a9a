package source

import (
	"context"
	"net/url"
	"time"

	"github.com/rgoswami/findata/internal/model"
)

type indicatorPoint struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

type indicatorResponse struct {
	Name     string           `json:"name"`
	Interval string           `json:"interval"`
	Unit     string           `json:"unit"`
	Source   string           `json:"source"`
	Data     []indicatorPoint `json:"data"`
}

// Indicator fetches one economic indicator series and returns the
// observations falling inside the window. The series' latest observation date
// stands in for LastUpdated (the upstream carries no per-point revision
// timestamp), keeping re-fetches of an unchanged series idempotent.
func (c *Client) Indicator(ctx context.Context, indicatorID string, window model.Window) ([]model.Record, error) {
	query := url.Values{}
	query.Set("function", indicatorID)

	var resp indicatorResponse
	if err := c.get(ctx, query, &resp); err != nil {
		return nil, err
	}

	latest := parseLatest(resp.Data)

	records := make([]model.Record, 0, len(resp.Data))
	for _, p := range resp.Data {
		d := parseDay(p.Date)
		if d.IsZero() || !window.Contains(d) {
			continue
		}
		records = append(records, model.NewIndicator(model.IndicatorRecord{
			IndicatorID: indicatorID,
			Date:        d,
			Value:       parseFloat(p.Value),
			Unit:        resp.Unit,
			Source:      resp.Source,
			LastUpdated: latest,
		}))
	}

	c.logger.Debug("fetched indicator",
		"indicator", indicatorID,
		"window", window.String(),
		"records", len(records),
	)

	return records, nil
}

func parseLatest(points []indicatorPoint) (latest time.Time) {
	for _, p := range points {
		if d := parseDay(p.Date); d.After(latest) {
			latest = d
		}
	}
	return latest
}
