// Package quotes pulls daily OHLCV and index data from the TWSE open
// endpoints and keeps per-code CSV history alongside the broker-flow data.
package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/minleu94/technical-analysis-sub001/internal/config"
	"github.com/minleu94/technical-analysis-sub001/pkg/contracts/domain"
)

const (
	defaultBaseURL = "https://www.twse.com.tw"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Client fetches market data from the TWSE exchange report endpoints. All
// requests go through a shared rate limiter so concurrent collectors never
// hammer the exchange.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	baseURL    string
}

// NewClient creates a TWSE client from the quotes configuration.
func NewClient(cfg config.QuotesConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		limiter:    rate.NewLimiter(rate.Every(cfg.RequestDelay), 1),
		logger:     logger,
		baseURL:    defaultBaseURL,
	}
}

// twseReport is the common envelope of the exchangeReport endpoints.
type twseReport struct {
	Stat   string     `json:"stat"`
	Date   string     `json:"date"`
	Fields []string   `json:"fields"`
	Data   [][]string `json:"data"`
}

// MonthlyQuotes returns the STOCK_DAY rows for the month containing the
// given date. TWSE serves this endpoint month-at-a-time; the day component
// only selects the month.
func (c *Client) MonthlyQuotes(ctx context.Context, code string, month time.Time) ([]domain.DailyQuote, error) {
	url := fmt.Sprintf("%s/exchangeReport/STOCK_DAY?response=json&date=%s&stockNo=%s",
		c.baseURL, month.Format("20060102"), code)

	report, err := c.fetchReport(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("stock %s: %w", code, err)
	}
	if report == nil {
		return nil, nil
	}

	quotes := make([]domain.DailyQuote, 0, len(report.Data))
	for _, row := range report.Data {
		// date, volume, turnover, open, high, low, close, change, txns
		if len(row) < 7 {
			continue
		}
		isoDate, err := rocToISO(row[0])
		if err != nil {
			c.logger.Debug("skipping quote row with bad date",
				"code", code, "raw_date", row[0])
			continue
		}
		quote := domain.DailyQuote{
			Date:   isoDate,
			Code:   code,
			Open:   parsePrice(row[3]),
			High:   parsePrice(row[4]),
			Low:    parsePrice(row[5]),
			Close:  parsePrice(row[6]),
			Volume: parseVolume(row[1]),
		}
		quotes = append(quotes, quote)
	}

	c.logger.Debug("fetched monthly quotes",
		"code", code, "month", month.Format("2006-01"), "rows", len(quotes))
	return quotes, nil
}

// DayIndices returns the closing index values for one trading day from the
// MI_INDEX report.
func (c *Client) DayIndices(ctx context.Context, date time.Time) ([]domain.IndexValue, error) {
	url := fmt.Sprintf("%s/exchangeReport/MI_INDEX?response=json&date=%s&type=IND",
		c.baseURL, date.Format("20060102"))

	report, err := c.fetchReport(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("indices %s: %w", date.Format("2006-01-02"), err)
	}
	if report == nil {
		return nil, nil
	}

	isoDate := date.Format("2006-01-02")
	values := make([]domain.IndexValue, 0, len(report.Data))
	for _, row := range report.Data {
		// category, close, direction, change, change pct
		if len(row) < 4 {
			continue
		}
		values = append(values, domain.IndexValue{
			Date:     isoDate,
			Category: strings.TrimSpace(row[0]),
			Value:    parsePrice(row[1]),
			Change:   parsePrice(row[3]),
		})
	}
	return values, nil
}

// fetchReport performs one rate-limited GET and decodes the common report
// envelope. A no-data day decodes to a nil report.
func (c *Client) fetchReport(ctx context.Context, url string) (*twseReport, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "zh-TW,zh;q=0.9,en;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("twse returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var report twseReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("decode twse response: %w", err)
	}
	if report.Stat != "OK" {
		// A no-rows day (e.g. market holiday) is not an error.
		if strings.Contains(report.Stat, "沒有符合條件") {
			return nil, nil
		}
		return nil, fmt.Errorf("twse stat %q", report.Stat)
	}
	return &report, nil
}

// rocToISO converts a Republic-of-China calendar date like "113/01/02" to
// the ISO form "2024-01-02".
func rocToISO(raw string) (string, error) {
	parts := strings.Split(strings.TrimSpace(raw), "/")
	if len(parts) != 3 {
		return "", fmt.Errorf("malformed ROC date %q", raw)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", fmt.Errorf("malformed ROC date %q", raw)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", fmt.Errorf("malformed ROC date %q", raw)
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", fmt.Errorf("malformed ROC date %q", raw)
	}
	return fmt.Sprintf("%04d-%02d-%02d", year+1911, month, day), nil
}

// parsePrice parses a TWSE numeric cell, tolerating thousands separators
// and placeholder dashes. Unparseable cells become zero.
func parsePrice(raw string) float64 {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" || cleaned == "--" || cleaned == "-" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseVolume(raw string) int64 {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	v, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
