package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/minleu94/technical-analysis-sub001/internal/config"
	"github.com/minleu94/technical-analysis-sub001/internal/store"
	"github.com/minleu94/technical-analysis-sub001/pkg/contracts/domain"
)

// FlowExporter generates reports from merged branch flow history.
type FlowExporter struct {
	paths     *config.Paths
	csvWriter *CSVWriter
	logger    *slog.Logger
}

// NewFlowExporter creates a flow report exporter.
func NewFlowExporter(paths *config.Paths, logger *slog.Logger) *FlowExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FlowExporter{
		paths:     paths,
		csvWriter: NewCSVWriter(logger),
		logger:    logger,
	}
}

// CounterpartySummary aggregates one counterparty's flow against a branch
// over the full history.
type CounterpartySummary struct {
	BrokerCode   string
	BrokerName   string
	TradingDays  int
	TotalBuyQty  float64
	TotalSellQty float64
	NetQty       float64
	FirstDate    string
	LastDate     string
}

// ExportCombined writes one CSV joining the merged history of the given
// branches, sorted by (branch, date, trade type, counterparty).
func (e *FlowExporter) ExportCombined(systemKeys []string, filename string) (string, error) {
	var combined []domain.DailyRecord
	for _, key := range systemKeys {
		records, err := e.readMerged(key)
		if err != nil {
			return "", err
		}
		combined = append(combined, records...)
	}

	sort.Slice(combined, func(i, j int) bool {
		a, b := combined[i], combined[j]
		if a.BranchSystemKey != b.BranchSystemKey {
			return a.BranchSystemKey < b.BranchSystemKey
		}
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.TradeType != b.TradeType {
			return a.TradeType < b.TradeType
		}
		return a.CounterpartyBrokerCode < b.CounterpartyBrokerCode
	})

	rows := make([][]string, 0, len(combined))
	for _, r := range combined {
		rows = append(rows, r.CSVRow())
	}

	path := e.paths.ReportPath(filename)
	if err := e.csvWriter.WriteCSV(path, WriteOptions{
		Headers:   domain.FlowColumns,
		Records:   rows,
		BOMPrefix: true,
	}); err != nil {
		return "", err
	}

	e.logger.Info("combined flow report written",
		"path", path, "branches", len(systemKeys), "rows", len(rows))
	return path, nil
}

// SummarizeCounterparties aggregates one branch's history per counterparty,
// sorted by absolute net quantity descending.
func (e *FlowExporter) SummarizeCounterparties(systemKey string) ([]CounterpartySummary, error) {
	records, err := e.readMerged(systemKey)
	if err != nil {
		return nil, err
	}

	type agg struct {
		summary CounterpartySummary
		days    map[string]struct{}
	}
	byCode := make(map[string]*agg)
	for _, r := range records {
		a, ok := byCode[r.CounterpartyBrokerCode]
		if !ok {
			a = &agg{
				summary: CounterpartySummary{
					BrokerCode: r.CounterpartyBrokerCode,
					BrokerName: r.CounterpartyBrokerName,
					FirstDate:  r.Date,
					LastDate:   r.Date,
				},
				days: make(map[string]struct{}),
			}
			byCode[r.CounterpartyBrokerCode] = a
		}
		a.days[r.Date] = struct{}{}
		a.summary.TotalBuyQty += r.BuyQty
		a.summary.TotalSellQty += r.SellQty
		a.summary.NetQty += r.NetQty
		if r.Date < a.summary.FirstDate {
			a.summary.FirstDate = r.Date
		}
		if r.Date > a.summary.LastDate {
			a.summary.LastDate = r.Date
			a.summary.BrokerName = r.CounterpartyBrokerName
		}
	}

	summaries := make([]CounterpartySummary, 0, len(byCode))
	for _, a := range byCode {
		a.summary.TradingDays = len(a.days)
		summaries = append(summaries, a.summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		ai, aj := abs(summaries[i].NetQty), abs(summaries[j].NetQty)
		if ai != aj {
			return ai > aj
		}
		return summaries[i].BrokerCode < summaries[j].BrokerCode
	})
	return summaries, nil
}

// ExportCounterpartySummary writes the per-counterparty aggregate of one
// branch as a CSV report and returns the file path.
func (e *FlowExporter) ExportCounterpartySummary(systemKey string) (string, error) {
	summaries, err := e.SummarizeCounterparties(systemKey)
	if err != nil {
		return "", err
	}

	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.BrokerCode,
			s.BrokerName,
			fmt.Sprintf("%d", s.TradingDays),
			domain.FormatQty(s.TotalBuyQty),
			domain.FormatQty(s.TotalSellQty),
			domain.FormatQty(s.NetQty),
			s.FirstDate,
			s.LastDate,
		})
	}

	path := e.paths.ReportPath(fmt.Sprintf("%s_counterparty_summary.csv", systemKey))
	headers := []string{
		"counterparty_broker_code", "counterparty_broker_name", "trading_days",
		"total_buy_qty", "total_sell_qty", "net_qty", "first_date", "last_date",
	}
	if err := e.csvWriter.WriteCSV(path, WriteOptions{
		Headers:   headers,
		Records:   rows,
		BOMPrefix: true,
	}); err != nil {
		return "", err
	}
	return path, nil
}

// readMerged loads a branch's merged history, returning an empty slice when
// the branch has no history yet.
func (e *FlowExporter) readMerged(systemKey string) ([]domain.DailyRecord, error) {
	path := e.paths.MergedCSVPath(systemKey)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	records, err := store.ReadFlowCSV(path)
	if err != nil {
		return nil, fmt.Errorf("read merged history for %s: %w", systemKey, err)
	}
	return records, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
