package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rgoswami/findata/internal/model"
)

func date(s string) time.Time {
	t, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("https://source.example.com/query", "test-key")

		if c.baseURL != "https://source.example.com/query" {
			t.Errorf("baseURL = %q", c.baseURL)
		}
		if c.apiKey != "test-key" {
			t.Errorf("apiKey = %q, want %q", c.apiKey, "test-key")
		}
		if c.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 30*time.Second)
		}
		if c.maxRetries != 3 {
			t.Errorf("maxRetries = %d, want 3", c.maxRetries)
		}
	})

	t.Run("with options", func(t *testing.T) {
		c := NewClient("https://source.example.com/query", "",
			WithTimeout(5*time.Second),
			WithRetries(5, 2*time.Second),
		)
		if c.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 5*time.Second)
		}
		if c.maxRetries != 5 {
			t.Errorf("maxRetries = %d, want 5", c.maxRetries)
		}
		if c.retryBackoff != 2*time.Second {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, 2*time.Second)
		}
	})
}

func TestAPIErrorClassification(t *testing.T) {
	tests := []struct {
		code      int
		throttled bool
		retryable bool
	}{
		{500, false, true},
		{503, false, true},
		{429, false, true},
		{200, true, true},
		{400, false, false},
		{401, false, false},
		{403, false, false},
		{404, false, false},
	}

	for _, tt := range tests {
		err := &APIError{StatusCode: tt.code, Throttled: tt.throttled}
		if got := err.IsRetryable(); got != tt.retryable {
			t.Errorf("IsRetryable() for status %d throttled=%v = %v, want %v",
				tt.code, tt.throttled, got, tt.retryable)
		}
		if got := IsFatal(err); got != !tt.retryable {
			t.Errorf("IsFatal() for status %d throttled=%v = %v, want %v",
				tt.code, tt.throttled, got, !tt.retryable)
		}
	}
}

func TestIsFatalNonAPIError(t *testing.T) {
	if IsFatal(errors.New("dial tcp: connection refused")) {
		t.Error("plain network error classified fatal; should be retryable")
	}
	if IsFatal(context.DeadlineExceeded) {
		t.Error("deadline classified fatal; should be retryable")
	}
}

const dailyPayload = `{
	"Meta Data": {
		"2. Symbol": "HSBA.L",
		"3. Last Refreshed": "2023-01-05"
	},
	"Time Series (Daily)": {
		"2023-01-05": {"1. open": "612.0", "2. high": "618.5", "3. low": "610.1", "4. close": "617.2", "5. adjusted close": "601.4", "6. volume": "20731337"},
		"2023-01-04": {"1. open": "607.9", "2. high": "613.0", "3. low": "605.2", "4. close": "611.8", "5. adjusted close": "596.1", "6. volume": "18244190"},
		"2022-12-30": {"1. open": "590.0", "2. high": "595.0", "3. low": "588.0", "4. close": "592.0", "5. adjusted close": "577.0", "6. volume": "9000000"}
	}
}`

func TestDailyPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("function"); got != "TIME_SERIES_DAILY_ADJUSTED" {
			t.Errorf("function = %q", got)
		}
		if got := r.URL.Query().Get("apikey"); got != "k" {
			t.Errorf("apikey = %q, want k", got)
		}
		w.Write([]byte(dailyPayload))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	window := model.Window{Start: date("2023-01-01"), End: date("2023-01-05")}

	records, err := c.DailyPrices(context.Background(), "HSBA.L", window)
	if err != nil {
		t.Fatalf("DailyPrices failed: %v", err)
	}

	// 2022-12-30 is outside the window.
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	for _, r := range records {
		if r.Domain != model.DomainPrices {
			t.Errorf("Domain = %q, want prices", r.Domain)
		}
		if r.Price.Symbol != "HSBA.L" {
			t.Errorf("Symbol = %q", r.Price.Symbol)
		}
		if !r.Price.LastUpdated.Equal(date("2023-01-05")) {
			t.Errorf("LastUpdated = %v, want 2023-01-05", r.Price.LastUpdated)
		}
	}
}

const statementsPayload = `{
	"symbol": "HSBA.L",
	"annualReports": [
		{
			"fiscalDateEnding": "2022-12-31",
			"reportedDate": "2023-02-01",
			"totalRevenue": "51727000000",
			"grossProfit": "None",
			"netIncome": "14822000000",
			"reportedEPS": "0.72",
			"ebitda": "None",
			"totalAssets": "2966530000000",
			"totalLiabilities": "2766593000000",
			"totalShareholderEquity": "199937000000",
			"operatingCashflow": "39000000000",
			"capitalExpenditures": "2000000000"
		}
	],
	"quarterlyReports": [
		{
			"fiscalDateEnding": "2021-03-31",
			"reportedDate": "2021-04-27",
			"totalRevenue": "12500000000"
		}
	]
}`

func TestStatements(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(statementsPayload))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	window := model.Window{Start: date("2022-01-01"), End: date("2023-01-01")}

	records, err := c.Statements(context.Background(), "HSBA.L", window)
	if err != nil {
		t.Fatalf("Statements failed: %v", err)
	}

	// The quarterly report's fiscal period is outside the window.
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	s := records[0].Statement
	if s.ReportType != model.ReportAnnual {
		t.Errorf("ReportType = %q, want annual", s.ReportType)
	}
	if s.GrossProfit != nil {
		t.Errorf("GrossProfit = %v, want nil for \"None\"", *s.GrossProfit)
	}
	if s.Revenue == nil || *s.Revenue != 51727000000 {
		t.Errorf("Revenue = %v, want 51727000000", s.Revenue)
	}
	if !s.DateReported.Equal(date("2023-02-01")) {
		t.Errorf("DateReported = %v, want 2023-02-01", s.DateReported)
	}
	if !s.LastUpdated.Equal(s.DateReported) {
		t.Errorf("LastUpdated = %v, want DateReported %v", s.LastUpdated, s.DateReported)
	}
}

const indicatorPayload = `{
	"name": "Consumer Price Index",
	"interval": "monthly",
	"unit": "index 1982-1984=100",
	"source": "BLS",
	"data": [
		{"date": "2023-02-01", "value": "300.84"},
		{"date": "2023-01-01", "value": "299.17"},
		{"date": "2022-12-01", "value": "296.80"}
	]
}`

func TestIndicator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("function"); got != "CPI" {
			t.Errorf("function = %q, want CPI", got)
		}
		w.Write([]byte(indicatorPayload))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	window := model.Window{Start: date("2022-12-15"), End: date("2023-02-28")}

	records, err := c.Indicator(context.Background(), "CPI", window)
	if err != nil {
		t.Fatalf("Indicator failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	for _, r := range records {
		if r.Indicator.Unit != "index 1982-1984=100" {
			t.Errorf("Unit = %q", r.Indicator.Unit)
		}
		if !r.Indicator.LastUpdated.Equal(date("2023-02-01")) {
			t.Errorf("LastUpdated = %v, want latest series date", r.Indicator.LastUpdated)
		}
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(indicatorPayload))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", WithRetries(3, time.Millisecond))
	window := model.Window{Start: date("2022-12-15"), End: date("2023-02-28")}

	if _, err := c.Indicator(context.Background(), "CPI", window); err != nil {
		t.Fatalf("Indicator failed after retries: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server called %d times, want 3", got)
	}
}

func TestRetryOnThrottleNote(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Write([]byte(`{"Note": "API call frequency exceeded"}`))
			return
		}
		w.Write([]byte(indicatorPayload))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", WithRetries(2, time.Millisecond))
	window := model.Window{Start: date("2022-12-15"), End: date("2023-02-28")}

	if _, err := c.Indicator(context.Background(), "CPI", window); err != nil {
		t.Fatalf("Indicator failed after throttle retry: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server called %d times, want 2", got)
	}
}

func TestRetryOnConnectionDrop(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// Kill the connection mid-flight so the client sees a
			// transport error rather than an HTTP status.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("response writer does not support hijacking")
				return
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Errorf("hijack: %v", err)
				return
			}
			conn.Close()
			return
		}
		w.Write([]byte(indicatorPayload))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", WithRetries(3, time.Millisecond))
	window := model.Window{Start: date("2022-12-15"), End: date("2023-02-28")}

	if _, err := c.Indicator(context.Background(), "CPI", window); err != nil {
		t.Fatalf("Indicator failed after connection drop: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server called %d times, want 2", got)
	}
}

func TestCancelledContextNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(indicatorPayload))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", WithRetries(3, time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	window := model.Window{Start: date("2022-12-15"), End: date("2023-02-28")}
	_, err := c.Indicator(ctx, "CPI", window)
	if err == nil {
		t.Fatal("expected error on cancelled context")
	}
	if got := calls.Load(); got > 1 {
		t.Errorf("server called %d times, want at most 1 (no retries)", got)
	}
}

func TestFatalErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"Error Message": "Invalid API call. Unknown symbol NOPE.X"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", WithRetries(3, time.Millisecond))
	window := model.Window{Start: date("2023-01-01"), End: date("2023-01-05")}

	_, err := c.DailyPrices(context.Background(), "NOPE.X", window)
	if err == nil {
		t.Fatal("expected error for unknown symbol")
	}
	if !IsFatal(err) {
		t.Errorf("unknown-symbol error not classified fatal: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server called %d times, want 1 (no retries)", got)
	}
}

func TestMaxRetriesExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", WithRetries(2, time.Millisecond))
	window := model.Window{Start: date("2023-01-01"), End: date("2023-01-05")}

	_, err := c.DailyPrices(context.Background(), "HSBA.L", window)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if IsFatal(err) {
		t.Errorf("exhausted transient error classified fatal: %v", err)
	}
}
