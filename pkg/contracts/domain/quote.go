package domain

// DailyQuote is one OHLCV row for a stock on a trading day.
type DailyQuote struct {
	Date   string  `json:"date" csv:"date"`
	Code   string  `json:"code" csv:"code"`
	Open   float64 `json:"open" csv:"open"`
	High   float64 `json:"high" csv:"high"`
	Low    float64 `json:"low" csv:"low"`
	Close  float64 `json:"close" csv:"close"`
	Volume int64   `json:"volume" csv:"volume"`
}

// QuoteColumns is the fixed column order of quote history files.
var QuoteColumns = []string{"date", "code", "open", "high", "low", "close", "volume"}

// IndexValue is one market or industry index observation.
type IndexValue struct {
	Date     string  `json:"date" csv:"date"`
	Category string  `json:"category" csv:"category"`
	Value    float64 `json:"value" csv:"value"`
	Change   float64 `json:"change" csv:"change"`
}

// IndexColumns is the fixed column order of index history files.
var IndexColumns = []string{"date", "category", "value", "change"}
