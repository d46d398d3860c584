package exporter

import (
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/minleu94/technical-analysis-sub001/internal/config"
	"github.com/minleu94/technical-analysis-sub001/pkg/contracts/domain"
)

// ExcelExporter renders one branch's flow history as an Excel workbook with
// separate buy and sell sheets plus a counterparty summary.
type ExcelExporter struct {
	paths  *config.Paths
	flows  *FlowExporter
	logger *slog.Logger
}

// NewExcelExporter creates an Excel workbook exporter.
func NewExcelExporter(paths *config.Paths, logger *slog.Logger) *ExcelExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExcelExporter{
		paths:  paths,
		flows:  NewFlowExporter(paths, logger),
		logger: logger,
	}
}

// ExportBranchWorkbook writes <systemKey>_flows.xlsx under the reports
// directory and returns its path.
func (e *ExcelExporter) ExportBranchWorkbook(systemKey string) (string, error) {
	records, err := e.flows.readMerged(systemKey)
	if err != nil {
		return "", err
	}
	summaries, err := e.flows.SummarizeCounterparties(systemKey)
	if err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := e.writeFlowSheet(f, "Buy", records, domain.TradeTypeBuy); err != nil {
		return "", err
	}
	if err := e.writeFlowSheet(f, "Sell", records, domain.TradeTypeSell); err != nil {
		return "", err
	}
	if err := e.writeSummarySheet(f, summaries); err != nil {
		return "", err
	}

	// Drop the default sheet last so the workbook is never empty.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", fmt.Errorf("delete default sheet: %w", err)
	}

	path := e.paths.ReportPath(fmt.Sprintf("%s_flows.xlsx", systemKey))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	e.logger.Info("branch workbook written",
		"system_key", systemKey, "path", path, "rows", len(records))
	return path, nil
}

func (e *ExcelExporter) writeFlowSheet(f *excelize.File, name string, records []domain.DailyRecord, tradeType domain.TradeType) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	headers := []interface{}{
		"Date", "Counterparty Code", "Counterparty Name",
		"Buy Qty", "Sell Qty", "Net Qty",
	}
	if err := f.SetSheetRow(name, "A1", &headers); err != nil {
		return err
	}

	rowNum := 2
	for _, r := range records {
		if r.TradeType != tradeType {
			continue
		}
		row := []interface{}{
			r.Date,
			r.CounterpartyBrokerCode,
			r.CounterpartyBrokerName,
			r.BuyQty,
			r.SellQty,
			r.NetQty,
		}
		cell := fmt.Sprintf("A%d", rowNum)
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return err
		}
		rowNum++
	}
	return nil
}

func (e *ExcelExporter) writeSummarySheet(f *excelize.File, summaries []CounterpartySummary) error {
	const name = "Summary"
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	headers := []interface{}{
		"Counterparty Code", "Counterparty Name", "Trading Days",
		"Total Buy Qty", "Total Sell Qty", "Net Qty", "First Date", "Last Date",
	}
	if err := f.SetSheetRow(name, "A1", &headers); err != nil {
		return err
	}

	for i, s := range summaries {
		row := []interface{}{
			s.BrokerCode,
			s.BrokerName,
			s.TradingDays,
			s.TotalBuyQty,
			s.TotalSellQty,
			s.NetQty,
			s.FirstDate,
			s.LastDate,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
